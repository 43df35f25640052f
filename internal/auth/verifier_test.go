package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenHasher(t *testing.T) {
	a := NewTokenHasher("pepper")
	b := NewTokenHasher("other")

	if a.Hash("token") != a.Hash("token") {
		t.Fatal("expected deterministic hash")
	}
	if a.Hash("token") == b.Hash("token") {
		t.Fatal("expected pepper to change the hash")
	}
	if len(a.Hash("token")) != 64 {
		t.Fatalf("expected 32-byte hex digest, got %d chars", len(a.Hash("token")))
	}

	long := NewTokenHasher(string(make([]byte, 100)))
	if long.Hash("token") == "" {
		t.Fatal("expected long pepper to be accepted")
	}
}

func TestRandomTokenEntropy(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := randomToken()
		if err != nil {
			t.Fatalf("random token: %v", err)
		}
		if len(token) != 43 {
			t.Fatalf("expected 43 base64url chars for 32 bytes, got %d", len(token))
		}
		if _, dup := seen[token]; dup {
			t.Fatal("duplicate token")
		}
		seen[token] = struct{}{}
	}
}

func TestJWTRoundTrip(t *testing.T) {
	now := time.Now()
	issuer := NewAccessTokenIssuer("secret", "walktrack", time.Minute)
	token, expiresAt, err := issuer.Issue("user-1", "session-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.After(now) {
		t.Fatal("expected expiry in the future")
	}

	identity, err := NewJWTVerifier("secret", "walktrack").Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != "user-1" || identity.SessionID != "session-1" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	if _, err := NewJWTVerifier("wrong", "walktrack").Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if _, err := NewJWTVerifier("secret", "someone-else").Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}

	expired, _, err := issuer.Issue("user-1", "", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	if _, err := NewJWTVerifier("secret", "walktrack").Verify(context.Background(), expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestStaticAndChainVerifier(t *testing.T) {
	ctx := context.Background()
	static := NewStaticVerifier(map[string]string{"dev-token": "user-dev"})

	identity, err := static.Verify(ctx, "dev-token")
	if err != nil || identity.UserID != "user-dev" {
		t.Fatalf("unexpected static result %+v (%v)", identity, err)
	}
	if _, err := static.Verify(ctx, "nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := static.Verify(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for empty input, got %v", err)
	}

	access, _, err := NewAccessTokenIssuer("secret", "walktrack", time.Minute).Issue("user-1", "s-1", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	chain := ChainVerifier{NewJWTVerifier("secret", "walktrack"), static}
	if identity, err := chain.Verify(ctx, access); err != nil || identity.SessionID != "s-1" {
		t.Fatalf("expected access token through chain, got %+v (%v)", identity, err)
	}
	if identity, err := chain.Verify(ctx, "dev-token"); err != nil || identity.UserID != "user-dev" {
		t.Fatalf("expected static token through chain, got %+v (%v)", identity, err)
	}
	if _, err := chain.Verify(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected chain failure, got %v", err)
	}
}
