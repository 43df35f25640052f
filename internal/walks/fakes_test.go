package walks

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/events"
	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/repositories"
)

type memoryWalks struct {
	mu    sync.Mutex
	walks map[uuid.UUID]models.Walk
	err   error
	// onUpdate runs once before the next Update, standing in for a concurrent request.
	onUpdate func()
}

func newMemoryWalks() *memoryWalks {
	return &memoryWalks{walks: make(map[uuid.UUID]models.Walk)}
}

func (m *memoryWalks) Create(_ context.Context, w models.Walk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.walks[w.ID]; ok {
		return repositories.ErrConflict
	}
	m.walks[w.ID] = w
	return nil
}

func (m *memoryWalks) FindByID(_ context.Context, id uuid.UUID) (models.Walk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Walk{}, m.err
	}
	w, ok := m.walks[id]
	if !ok {
		return models.Walk{}, repositories.ErrNotFound
	}
	return w, nil
}

func (m *memoryWalks) FindByUserID(_ context.Context, userID string, limit, offset int) ([]models.Walk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Walk
	for _, w := range m.walks {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Walk{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryWalks) Update(_ context.Context, w models.Walk, previous time.Time) error {
	if hook := m.onUpdate; hook != nil {
		m.onUpdate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.walks[w.ID]
	if !ok || !stored.UpdatedAt.Equal(previous) {
		return repositories.ErrConflict
	}
	m.walks[w.ID] = w
	return nil
}

func (m *memoryWalks) UpdateDistance(_ context.Context, id uuid.UUID, meters float64, updatedAt time.Time) (models.Walk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.walks[id]
	if !ok || !stored.Status.Active() {
		return models.Walk{}, repositories.ErrNotFound
	}
	stored.Distance = meters
	stored.UpdatedAt = updatedAt
	m.walks[id] = stored
	return stored, nil
}

func (m *memoryWalks) Upsert(_ context.Context, w models.Walk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.walks[w.ID]; ok && existing.UserID != w.UserID {
		return repositories.ErrConflict
	}
	m.walks[w.ID] = w
	return nil
}

func (m *memoryWalks) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.walks[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.walks, id)
	return nil
}

func (m *memoryWalks) Count(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.walks {
		if w.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memoryLocations struct {
	mu      sync.Mutex
	byWalk  map[uuid.UUID]map[int]models.WalkLocation
	batches int
	// onFind runs before FindByWalkID reads, standing in for a concurrent request.
	onFind func()
}

func newMemoryLocations() *memoryLocations {
	return &memoryLocations{byWalk: make(map[uuid.UUID]map[int]models.WalkLocation)}
}

func (m *memoryLocations) BatchCreate(_ context.Context, locations []models.WalkLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	for _, loc := range locations {
		if m.byWalk[loc.WalkID] == nil {
			m.byWalk[loc.WalkID] = make(map[int]models.WalkLocation)
		}
		m.byWalk[loc.WalkID][loc.SequenceNumber] = loc
	}
	return nil
}

func (m *memoryLocations) FindByWalkID(_ context.Context, walkID uuid.UUID) ([]models.WalkLocation, error) {
	if hook := m.onFind; hook != nil {
		m.onFind = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WalkLocation
	for _, loc := range m.byWalk[walkID] {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (m *memoryLocations) DeleteByWalkID(_ context.Context, walkID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.byWalk[walkID]))
	delete(m.byWalk, walkID)
	return n, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.WalkEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.WalkEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeThumbnails struct {
	body        []byte
	contentType string
	err         error
}

func (f *fakeThumbnails) PutThumbnail(_ context.Context, walkID uuid.UUID, contentType string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.contentType = contentType
	f.body, _ = io.ReadAll(body)
	return "https://cdn.example.com/thumbnails/" + walkID.String(), nil
}

var errBoom = errors.New("boom")

var (
	_ repositories.WalkRepository     = (*memoryWalks)(nil)
	_ repositories.LocationRepository = (*memoryLocations)(nil)
)
