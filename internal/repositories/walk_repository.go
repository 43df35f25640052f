package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
)

// WalkRepository defines the data access contract for walks.
type WalkRepository interface {
	Create(ctx context.Context, walk models.Walk) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Walk, error)
	// FindByUserID lists a user's walks, newest created first.
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]models.Walk, error)
	// Update is a compare-and-swap on updated_at: it writes only if the stored row still
	// carries previousUpdatedAt and returns ErrConflict otherwise.
	Update(ctx context.Context, walk models.Walk, previousUpdatedAt time.Time) error
	// UpdateDistance writes only the distance of an in-progress or paused walk.
	UpdateDistance(ctx context.Context, id uuid.UUID, meters float64, updatedAt time.Time) (models.Walk, error)
	// Upsert inserts the walk or replaces the stored row with the same id. Calling it
	// twice with the same input leaves the same stored state.
	Upsert(ctx context.Context, walk models.Walk) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, userID string) (int, error)
}
