package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrInvalidToken indicates a bearer token that could not be verified.
var ErrInvalidToken = errors.New("invalid bearer token")

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string
	// SessionID is set for access tokens minted by this service.
	SessionID string
}

// TokenVerifier validates bearer tokens and yields the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier accepts a fixed token → user table. Meant for local development and
// integration environments.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier copies tokens so later changes to the map have no effect.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for token, user := range tokens {
		copied[token] = user
	}
	return &StaticVerifier{tokens: copied}
}

// Verify looks the token up with a constant-time comparison per entry.
func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	var userID string
	for candidate, user := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			userID = user
		}
	}
	if userID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID}, nil
}

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []TokenVerifier

// Verify implements TokenVerifier.
func (c ChainVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	lastErr := ErrInvalidToken
	for _, v := range c {
		if v == nil {
			continue
		}
		identity, err := v.Verify(ctx, token)
		if err == nil {
			return identity, nil
		}
		lastErr = err
	}
	return Identity{}, lastErr
}

// SessionChecker confirms that the session behind an access token is still live.
type SessionChecker interface {
	CheckSession(ctx context.Context, sessionID, userID string) error
}

// SessionBoundVerifier rejects access tokens whose session has been revoked or has
// expired. Identities without a session id pass through unchanged.
type SessionBoundVerifier struct {
	Verifier TokenVerifier
	Sessions SessionChecker
}

// Verify implements TokenVerifier.
func (v SessionBoundVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	identity, err := v.Verifier.Verify(ctx, token)
	if err != nil || identity.SessionID == "" {
		return identity, err
	}
	if err := v.Sessions.CheckSession(ctx, identity.SessionID, identity.UserID); err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return Identity{}, err
	}
	return identity, nil
}

var (
	_ TokenVerifier = SessionBoundVerifier{}
	_ TokenVerifier = (*JWTVerifier)(nil)
	_ TokenVerifier = (*StaticVerifier)(nil)
	_ TokenVerifier = ChainVerifier(nil)
)
