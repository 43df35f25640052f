package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the claims carried by access tokens and accepted identity tokens.
type accessClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenIssuer mints short-lived HS256 access tokens bound to a session.
type AccessTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewAccessTokenIssuer returns an issuer signing with secret.
func NewAccessTokenIssuer(secret, issuer string, ttl time.Duration) *AccessTokenIssuer {
	return &AccessTokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue signs a token for userID and sessionID valid from now for the configured TTL.
func (i *AccessTokenIssuer) Issue(userID, sessionID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl).UTC()
	claims := accessClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// JWTVerifier validates HS256 tokens signed with the shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTVerifier returns a verifier for tokens signed with secret. A non-empty issuer
// must match the iss claim.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses token and returns the identity it carries.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}
