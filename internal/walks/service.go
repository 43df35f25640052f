// Package walks implements the walk usecase: ownership checks, lifecycle transitions
// and location ingestion on top of the repositories.
package walks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/events"
	"github.com/walktrack/backend/internal/geo"
	"github.com/walktrack/backend/internal/logging"
	"github.com/walktrack/backend/internal/metrics"
	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/repositories"
	"github.com/walktrack/backend/internal/storage"
)

// Pagination bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of a user's walks.
type Page struct {
	Walks []models.Walk
	Page  int
	Limit int
	Total int
}

// CreateInput carries the fields accepted when creating a walk.
type CreateInput struct {
	ID          uuid.UUID
	Title       string
	Description string
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Distance    *float64
	Steps       *int
	Polyline    *string
}

// Service orchestrates walks for authenticated callers.
type Service struct {
	walks      repositories.WalkRepository
	locations  repositories.LocationRepository
	thumbnails storage.ThumbnailStore
	publisher  events.Publisher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithThumbnailStore sets the blob store used by SetThumbnail.
func WithThumbnailStore(store storage.ThumbnailStore) Option {
	return func(s *Service) { s.thumbnails = store }
}

// WithPublisher sets the walk event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the collectors updated by the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the walk usecase.
func NewService(walks repositories.WalkRepository, locations repositories.LocationRepository, opts ...Option) *Service {
	if walks == nil || locations == nil {
		panic("walks: repositories must not be nil")
	}
	s := &Service{
		walks:      walks,
		locations:  locations,
		thumbnails: storage.Disabled{},
		publisher:  events.Nop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a page of the caller's walks, newest first. limit above MaxPageSize is
// capped; page must be at least 1 and limit positive.
func (s *Service) List(ctx context.Context, userID string, page, limit int) (Page, error) {
	if page < 1 {
		return Page{}, apperr.InvalidRequest("page must be at least 1", nil)
	}
	if limit < 1 {
		return Page{}, apperr.InvalidRequest("limit must be positive", nil)
	}
	limit = min(limit, MaxPageSize)

	list, err := s.walks.FindByUserID(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, apperr.Internal("", fmt.Errorf("list walks: %w", err))
	}
	total, err := s.walks.Count(ctx, userID)
	if err != nil {
		return Page{}, apperr.Internal("", fmt.Errorf("count walks: %w", err))
	}
	return Page{Walks: list, Page: page, Limit: limit, Total: total}, nil
}

// Create stores a new not_started walk owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (models.Walk, error) {
	walk, err := models.NewWalk(in.ID, userID, in.Title, in.Description, s.now())
	if err != nil {
		return models.Walk{}, domainError(err)
	}

	if err := s.walks.Create(ctx, *walk); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.Walk{}, apperr.Conflict("walk already exists", err)
		}
		return models.Walk{}, apperr.Internal("", fmt.Errorf("create walk: %w", err))
	}

	logging.FromContext(ctx).InfoContext(ctx, "walk created", "walk_id", walk.ID)
	return *walk, nil
}

// Get returns the walk if the caller owns it. Walks of other users are reported as
// missing.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error) {
	walk, err := s.find(ctx, id)
	if err != nil {
		return models.Walk{}, err
	}
	if walk.UserID != userID {
		return models.Walk{}, apperr.NotFound("walk not found", nil)
	}
	return walk, nil
}

// Update applies a partial update. A missing walk is created in not_started so clients
// syncing offline-created walks can PUT them directly; the returned flag reports that.
func (s *Service) Update(ctx context.Context, userID string, id uuid.UUID, in UpdateInput) (models.Walk, bool, error) {
	now := s.now()
	created := false

	walk, err := s.loadOwned(ctx, userID, id)
	previous := walk.UpdatedAt
	switch {
	case err == nil:
	case apperr.KindOf(err) == apperr.KindNotFound:
		if in.Title == nil {
			return models.Walk{}, false, apperr.InvalidRequest("title is required to create a walk", nil)
		}
		fresh, err := models.NewWalk(id, userID, *in.Title, "", now)
		if err != nil {
			return models.Walk{}, false, domainError(err)
		}
		walk, created = *fresh, true
	default:
		return models.Walk{}, false, err
	}

	if err := applyUpdate(&walk, in, now); err != nil {
		return models.Walk{}, false, domainError(err)
	}
	if err := walk.Validate(); err != nil {
		return models.Walk{}, false, domainError(err)
	}

	if !created {
		if err := s.save(ctx, walk, previous); err != nil {
			return models.Walk{}, false, err
		}
	} else if err := s.walks.Upsert(ctx, walk); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.Walk{}, false, apperr.Unauthorized("walk belongs to another user")
		}
		return models.Walk{}, false, apperr.Internal("", fmt.Errorf("upsert walk: %w", err))
	}
	return walk, created, nil
}

func applyUpdate(walk *models.Walk, in UpdateInput, now time.Time) error {
	if in.Title != nil {
		if err := walk.SetTitle(*in.Title, now); err != nil {
			return err
		}
	}
	if in.Description != nil {
		if err := walk.SetDescription(*in.Description, now); err != nil {
			return err
		}
	}
	if in.Distance != nil {
		if err := walk.UpdateDistance(*in.Distance, now); err != nil {
			return err
		}
	}
	if in.Steps != nil {
		if err := walk.UpdateSteps(*in.Steps, now); err != nil {
			return err
		}
	}
	if in.Polyline != nil {
		if err := walk.UpdatePolyline(*in.Polyline, now); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the walk and, through the cascade, its locations.
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.loadOwned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.walks.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("walk not found", err)
		}
		return apperr.Internal("", fmt.Errorf("delete walk: %w", err))
	}
	logging.FromContext(ctx).InfoContext(ctx, "walk deleted", "walk_id", id)
	return nil
}

// Start begins the walk.
func (s *Service) Start(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error) {
	return s.transition(ctx, userID, id, "start", events.TypeWalkStarted, (*models.Walk).Start)
}

// Pause suspends the walk.
func (s *Service) Pause(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error) {
	return s.transition(ctx, userID, id, "pause", events.TypeWalkPaused, (*models.Walk).Pause)
}

// Resume continues a paused walk.
func (s *Service) Resume(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error) {
	return s.transition(ctx, userID, id, "resume", events.TypeWalkResumed, (*models.Walk).Resume)
}

// Complete ends the walk.
func (s *Service) Complete(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error) {
	return s.transition(ctx, userID, id, "complete", events.TypeWalkCompleted, (*models.Walk).Complete)
}

func (s *Service) transition(ctx context.Context, userID string, id uuid.UUID, action, eventType string, apply func(*models.Walk, time.Time) error) (models.Walk, error) {
	walk, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return models.Walk{}, err
	}

	previous := walk.UpdatedAt
	if err := apply(&walk, s.now()); err != nil {
		return models.Walk{}, domainError(err)
	}
	if err := s.save(ctx, walk, previous); err != nil {
		return models.Walk{}, err
	}

	s.metrics.WalkTransition(action)
	logging.FromContext(ctx).InfoContext(ctx, "walk transitioned", "walk_id", walk.ID, "action", action, "status", walk.Status)
	s.publish(ctx, eventType, walk)
	return walk, nil
}

// UploadLocations ingests a batch of samples for the walk. The batch is validated as a
// whole and written in one transaction; any invalid sample rejects the entire call.
// Active walks get their distance recomputed from the stored route.
func (s *Service) UploadLocations(ctx context.Context, userID string, walkID uuid.UUID, batch []models.WalkLocation) (models.Walk, error) {
	if len(batch) == 0 {
		return models.Walk{}, apperr.InvalidRequest("at least one location is required", nil)
	}
	if len(batch) > models.MaxLocationBatch {
		return models.Walk{}, apperr.InvalidRequest(fmt.Sprintf("at most %d locations per upload", models.MaxLocationBatch), nil)
	}

	walk, err := s.loadOwned(ctx, userID, walkID)
	if err != nil {
		return models.Walk{}, err
	}

	locations := make([]models.WalkLocation, len(batch))
	for i, loc := range batch {
		loc.WalkID = walkID
		if err := loc.Validate(); err != nil {
			return models.Walk{}, apperr.InvalidRequest(fmt.Sprintf("locations[%d]: %v", i, err), err)
		}
		locations[i] = loc
	}

	if err := s.locations.BatchCreate(ctx, locations); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Walk{}, apperr.NotFound("walk not found", err)
		}
		return models.Walk{}, apperr.Internal("", fmt.Errorf("store locations: %w", err))
	}
	s.metrics.LocationsIngested(len(locations))

	if walk.Status.Active() {
		if walk, err = s.recomputeDistance(ctx, walk); err != nil {
			return models.Walk{}, err
		}
	}

	logging.FromContext(ctx).InfoContext(ctx, "walk locations stored", "walk_id", walkID, "count", len(locations))
	s.publish(ctx, events.TypeLocationsAdded, walk)
	return walk, nil
}

// Locations returns the walk's samples in sequence order.
func (s *Service) Locations(ctx context.Context, userID string, walkID uuid.UUID) ([]models.WalkLocation, error) {
	if _, err := s.Get(ctx, userID, walkID); err != nil {
		return nil, err
	}
	locations, err := s.locations.FindByWalkID(ctx, walkID)
	if err != nil {
		return nil, apperr.Internal("", fmt.Errorf("load locations: %w", err))
	}
	return locations, nil
}

// SetThumbnail uploads the image to the blob store and records its URL on the walk.
func (s *Service) SetThumbnail(ctx context.Context, userID string, walkID uuid.UUID, contentType string, body io.Reader) (models.Walk, error) {
	walk, err := s.loadOwned(ctx, userID, walkID)
	if err != nil {
		return models.Walk{}, err
	}
	if _, err := storage.ThumbnailKey(walkID, contentType); err != nil {
		return models.Walk{}, apperr.InvalidRequest("thumbnail must be image/jpeg or image/png", err)
	}

	url, err := s.thumbnails.PutThumbnail(ctx, walkID, contentType, body)
	if err != nil {
		return models.Walk{}, apperr.Internal("", fmt.Errorf("store thumbnail: %w", err))
	}

	previous := walk.UpdatedAt
	walk.SetThumbnail(url, s.now())
	if err := s.save(ctx, walk, previous); err != nil {
		return models.Walk{}, err
	}
	return walk, nil
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (models.Walk, error) {
	walk, err := s.walks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Walk{}, apperr.NotFound("walk not found", err)
		}
		return models.Walk{}, apperr.Internal("", fmt.Errorf("find walk: %w", err))
	}
	return walk, nil
}

// loadOwned fetches a walk the caller intends to mutate.
func (s *Service) loadOwned(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error) {
	walk, err := s.find(ctx, id)
	if err != nil {
		return models.Walk{}, err
	}
	if walk.UserID != userID {
		logging.FromContext(ctx).WarnContext(ctx, "walk owned by another user", "walk_id", id)
		return models.Walk{}, apperr.Unauthorized("walk belongs to another user")
	}
	return walk, nil
}

// save writes walk if the stored row is still the one read at previous. Losing the race
// to another writer is a Conflict the client can retry.
func (s *Service) save(ctx context.Context, walk models.Walk, previous time.Time) error {
	err := s.walks.Update(ctx, walk, previous)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrConflict) {
		return apperr.Internal("", fmt.Errorf("update walk: %w", err))
	}
	if _, findErr := s.find(ctx, walk.ID); findErr != nil {
		return findErr
	}
	return apperr.Conflict("walk was modified concurrently, retry the request", err)
}

// recomputeDistance sets the walk distance from its stored route. Only the distance
// column is written, so a transition that lands meanwhile is kept. If the walk was
// completed or deleted in between, the stored walk is returned unchanged.
func (s *Service) recomputeDistance(ctx context.Context, walk models.Walk) (models.Walk, error) {
	route, err := s.locations.FindByWalkID(ctx, walk.ID)
	if err != nil {
		return models.Walk{}, apperr.Internal("", fmt.Errorf("load route: %w", err))
	}
	if err := walk.UpdateDistance(geo.PathDistance(route), s.now()); err != nil {
		return models.Walk{}, domainError(err)
	}

	updated, err := s.walks.UpdateDistance(ctx, walk.ID, walk.Distance, walk.UpdatedAt)
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return s.find(ctx, walk.ID)
	}
	return models.Walk{}, apperr.Internal("", fmt.Errorf("update walk distance: %w", err))
}

func (s *Service) publish(ctx context.Context, eventType string, walk models.Walk) {
	err := s.publisher.Publish(ctx, events.WalkEvent{
		Type:   eventType,
		WalkID: walk.ID.String(),
		UserID: walk.UserID,
		Status: string(walk.Status),
		At:     walk.UpdatedAt,
	})
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "publish walk event", "walk_id", walk.ID, "type", eventType, "error", err)
	}
}

// domainError converts entity errors into the client-facing taxonomy.
func domainError(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidStateTransition), errors.Is(err, models.ErrValidation):
		return apperr.InvalidRequest(err.Error(), err)
	default:
		return apperr.Internal("", err)
	}
}
