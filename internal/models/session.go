package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is a refresh-token grant bound to one user and one client. Only a keyed hash
// of the refresh token is kept.
type Session struct {
	ID               uuid.UUID
	UserID           string
	RefreshTokenHash string
	UserAgent        string
	IPAddress        string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsValid reports whether the session is still usable at now.
func (s Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Rotate replaces the token hash, expiry and client metadata.
func (s *Session) Rotate(tokenHash string, expiresAt time.Time, userAgent, ipAddress string, now time.Time) {
	s.RefreshTokenHash = tokenHash
	s.ExpiresAt = expiresAt.UTC()
	s.UserAgent = userAgent
	s.IPAddress = ipAddress
	s.UpdatedAt = now.UTC()
}

// Validate checks required fields.
func (s Session) Validate() error {
	if s.ID == uuid.Nil {
		return invalid("id", "is required")
	}
	if strings.TrimSpace(s.UserID) == "" {
		return invalid("user_id", "is required")
	}
	if s.RefreshTokenHash == "" {
		return invalid("refresh_token", "is required")
	}
	if s.ExpiresAt.IsZero() {
		return invalid("expires_at", "is required")
	}
	return nil
}
