package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
)

// LocationRepository defines batch ingestion and ordered reads of walk locations.
type LocationRepository interface {
	// BatchCreate upserts every location keyed by (walk_id, sequence_number) in one
	// transaction. The last write for a key wins.
	BatchCreate(ctx context.Context, locations []models.WalkLocation) error
	// FindByWalkID returns all locations of a walk ordered by sequence number.
	FindByWalkID(ctx context.Context, walkID uuid.UUID) ([]models.WalkLocation, error)
	DeleteByWalkID(ctx context.Context, walkID uuid.UUID) (int64, error)
}
