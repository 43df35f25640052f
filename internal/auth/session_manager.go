package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/logging"
	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/repositories"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to a session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session's refresh token is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// DefaultRefreshTTL is the session validity used when none is configured.
const DefaultRefreshTTL = 30 * 24 * time.Hour

// Manager manages the lifecycle of refresh-token sessions backed by a persistent store.
type Manager struct {
	store      repositories.SessionRepository
	hasher     *TokenHasher
	issuer     *AccessTokenIssuer
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAccessTokens makes the manager mint an access token alongside every refresh token.
func WithAccessTokens(issuer *AccessTokenIssuer) Option {
	return func(m *Manager) { m.issuer = issuer }
}

// NewManager constructs a Manager that issues refresh tokens valid for refreshTTL.
func NewManager(store repositories.SessionRepository, hasher *TokenHasher, refreshTTL time.Duration, opts ...Option) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if hasher == nil {
		hasher = NewTokenHasher("")
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	m := &Manager{
		store:      store,
		hasher:     hasher,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession starts a session for the user. The plaintext refresh token is only
// ever returned here and from RefreshSession.
func (m *Manager) CreateSession(ctx context.Context, userID, userAgent, ipAddress string) (models.SessionTokens, error) {
	if strings.TrimSpace(userID) == "" {
		return models.SessionTokens{}, apperr.InvalidRequest("user id must be provided", nil)
	}

	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("", fmt.Errorf("generate refresh token: %w", err))
	}

	now := m.now().UTC()
	session := models.Session{
		ID:               uuid.New(),
		UserID:           userID,
		RefreshTokenHash: m.hasher.Hash(refreshToken),
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		ExpiresAt:        now.Add(m.refreshTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.Create(ctx, session); err != nil {
		return models.SessionTokens{}, apperr.Internal("", fmt.Errorf("create session: %w", err))
	}

	logging.FromContext(ctx).InfoContext(ctx, "session created", "session_id", session.ID, "user_id", userID)
	return m.tokens(session, refreshToken, now)
}

// ValidateSession resolves a refresh token to its session.
func (m *Manager) ValidateSession(ctx context.Context, refreshToken string) (models.Session, error) {
	if refreshToken == "" {
		return models.Session{}, apperr.AuthenticationRequired("refresh token is invalid", ErrSessionNotFound)
	}

	session, err := m.store.FindByTokenHash(ctx, m.hasher.Hash(refreshToken))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Session{}, apperr.AuthenticationRequired("refresh token is invalid", ErrSessionNotFound)
		}
		return models.Session{}, apperr.Internal("", fmt.Errorf("find session: %w", err))
	}

	if !session.IsValid(m.now()) {
		return models.Session{}, apperr.AuthenticationRequired("refresh token has expired", ErrSessionExpired)
	}
	return session, nil
}

// CheckSession reports whether sessionID names a live session owned by userID. It backs
// the verification of access tokens, which outlive neither revocation nor expiry.
func (m *Manager) CheckSession(ctx context.Context, sessionID, userID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}
	session, err := m.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("find session: %w", err)
	}
	if session.UserID != userID {
		return ErrSessionNotFound
	}
	if !session.IsValid(m.now()) {
		return ErrSessionExpired
	}
	return nil
}

// RefreshSession exchanges a refresh token for a new one. The swap is a single
// conditional update, so the presented token stops validating the moment the new one
// is stored and two concurrent refreshes with the same token cannot both succeed.
func (m *Manager) RefreshSession(ctx context.Context, refreshToken, userAgent, ipAddress string) (models.SessionTokens, error) {
	session, err := m.ValidateSession(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	newToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("", fmt.Errorf("generate refresh token: %w", err))
	}

	now := m.now().UTC()
	previousHash := session.RefreshTokenHash
	session.Rotate(m.hasher.Hash(newToken), now.Add(m.refreshTTL), userAgent, ipAddress, now)

	if err := m.store.Rotate(ctx, session, previousHash, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.AuthenticationRequired("refresh token is invalid", ErrSessionNotFound)
		}
		return models.SessionTokens{}, apperr.Internal("", fmt.Errorf("rotate session: %w", err))
	}

	logging.FromContext(ctx).InfoContext(ctx, "session refreshed", "session_id", session.ID, "user_id", session.UserID)
	return m.tokens(session, newToken, now)
}

// RevokeSession deletes one session after checking the caller owns it.
func (m *Manager) RevokeSession(ctx context.Context, sessionID uuid.UUID, requestingUserID string) error {
	session, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("session not found", ErrSessionNotFound)
		}
		return apperr.Internal("", fmt.Errorf("find session: %w", err))
	}
	if session.UserID != requestingUserID {
		return apperr.Unauthorized("session belongs to another user")
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("session not found", ErrSessionNotFound)
		}
		return apperr.Internal("", fmt.Errorf("delete session: %w", err))
	}
	logging.FromContext(ctx).InfoContext(ctx, "session revoked", "session_id", sessionID)
	return nil
}

// RevokeAllSessions deletes every session of the user and returns how many went away.
func (m *Manager) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	removed, err := m.store.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("", fmt.Errorf("delete user sessions: %w", err))
	}
	logging.FromContext(ctx).InfoContext(ctx, "sessions revoked", "user_id", userID, "count", removed)
	return removed, nil
}

// ListSessions returns the user's sessions, newest first.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := m.store.ListByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("", fmt.Errorf("list sessions: %w", err))
	}
	return sessions, nil
}

// CleanupExpiredSessions deletes sessions whose expiry has passed.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return removed, nil
}

func (m *Manager) tokens(session models.Session, refreshToken string, now time.Time) (models.SessionTokens, error) {
	tokens := models.SessionTokens{
		SessionID:        session.ID.String(),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: session.ExpiresAt,
	}
	if m.issuer == nil {
		return tokens, nil
	}
	access, expiresAt, err := m.issuer.Issue(session.UserID, session.ID.String(), now)
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("", fmt.Errorf("issue access token: %w", err))
	}
	tokens.AccessToken = access
	tokens.AccessExpiresAt = expiresAt
	return tokens, nil
}
