package models

import "time"

// User is the account record migrated from the legacy store. Identity comes from the
// external identity provider, so the id is the provider's subject string.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Consent records a user's answer to one versioned consent prompt.
type Consent struct {
	UserID    string
	Type      string
	Version   string
	Granted   bool
	GrantedAt *time.Time
	UpdatedAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
