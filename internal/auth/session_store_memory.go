package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/repositories"
)

// NewInMemorySessionStore returns a session repository backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[uuid.UUID]models.Session)}
}

// InMemorySessionStore implements repositories.SessionRepository for tests.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.Session
}

// Create stores a new session. Duplicate ids or token hashes conflict.
func (s *InMemorySessionStore) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.sessions {
		if id == session.ID || existing.RefreshTokenHash == session.RefreshTokenHash {
			return repositories.ErrConflict
		}
	}
	s.sessions[session.ID] = session
	return nil
}

// FindByID retrieves a session by id.
func (s *InMemorySessionStore) FindByID(_ context.Context, id uuid.UUID) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, repositories.ErrNotFound
	}
	return session, nil
}

// FindByTokenHash retrieves a session by refresh-token hash.
func (s *InMemorySessionStore) FindByTokenHash(_ context.Context, tokenHash string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.RefreshTokenHash == tokenHash {
			return session, nil
		}
	}
	return models.Session{}, repositories.ErrNotFound
}

// ListByUserID returns the user's sessions, newest first.
func (s *InMemorySessionStore) ListByUserID(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Rotate mirrors the conditional update of the PostgreSQL repository.
func (s *InMemorySessionStore) Rotate(_ context.Context, session models.Session, previousHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok || stored.RefreshTokenHash != previousHash || !stored.ExpiresAt.After(now) {
		return repositories.ErrNotFound
	}
	stored.Rotate(session.RefreshTokenHash, session.ExpiresAt, session.UserAgent, session.IPAddress, now)
	s.sessions[session.ID] = stored
	return nil
}

// Delete removes a session by id.
func (s *InMemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// DeleteByUserID removes every session of the user.
func (s *InMemorySessionStore) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// DeleteExpired removes sessions whose expiry lies before now.
func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many sessions are stored. Useful for tests.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ repositories.SessionRepository = (*InMemorySessionStore)(nil)
