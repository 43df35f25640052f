package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/walks"
)

// WalkService captures the walk operations exposed over HTTP.
type WalkService interface {
	List(ctx context.Context, userID string, page, limit int) (walks.Page, error)
	Create(ctx context.Context, userID string, in walks.CreateInput) (models.Walk, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error)
	Update(ctx context.Context, userID string, id uuid.UUID, in walks.UpdateInput) (models.Walk, bool, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	Start(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error)
	Pause(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error)
	Resume(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error)
	Complete(ctx context.Context, userID string, id uuid.UUID) (models.Walk, error)
	UploadLocations(ctx context.Context, userID string, walkID uuid.UUID, batch []models.WalkLocation) (models.Walk, error)
	Locations(ctx context.Context, userID string, walkID uuid.UUID) ([]models.WalkLocation, error)
	SetThumbnail(ctx context.Context, userID string, walkID uuid.UUID, contentType string, body io.Reader) (models.Walk, error)
}

// SessionManager issues, rotates and revokes refresh-token sessions.
type SessionManager interface {
	CreateSession(ctx context.Context, userID, userAgent, ipAddress string) (models.SessionTokens, error)
	RefreshSession(ctx context.Context, refreshToken, userAgent, ipAddress string) (models.SessionTokens, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID, requestingUserID string) error
	RevokeAllSessions(ctx context.Context, userID string) (int64, error)
}
