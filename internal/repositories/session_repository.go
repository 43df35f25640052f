package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
)

// SessionRepository persists refresh-token sessions.
type SessionRepository interface {
	Create(ctx context.Context, session models.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (models.Session, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Session, error)
	// Rotate swaps in the session's new token hash, expiry and client metadata only if
	// the stored hash still equals previousHash and the session has not expired at now.
	Rotate(ctx context.Context, session models.Session, previousHash string, now time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
