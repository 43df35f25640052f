package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/auth"
	"github.com/walktrack/backend/internal/logging"
)

type identityKey struct{}

// WithIdentity stores the verified caller on the context.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller stored by Authenticate.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok && id.UserID != ""
}

// UserID returns the authenticated user id, or "" outside Authenticate.
func UserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// Authenticate requires an `Authorization: Bearer` header accepted by verifier. The
// caller's identity comes from the verified token only.
func Authenticate(verifier auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, apperr.KindAuthenticationRequired, "missing bearer token")
				return
			}

			identity, err := verifier.Verify(ctx, token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					logging.FromContext(ctx).Error("token verification failed", "error", err)
				}
				writeError(w, apperr.KindAuthenticationRequired, "invalid bearer token")
				return
			}

			ctx = WithIdentity(ctx, identity)
			ctx = logging.With(ctx, "user_id", identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
