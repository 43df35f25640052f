package repositories

import (
	"context"

	"github.com/walktrack/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Upsert(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
}

// ConsentRepository stores per-user consent answers.
type ConsentRepository interface {
	Upsert(ctx context.Context, consent models.Consent) error
	ListByUserID(ctx context.Context, userID string) ([]models.Consent, error)
}
