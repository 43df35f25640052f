package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/logging"
	"github.com/walktrack/backend/internal/middleware"
)

// SessionHandler implements the /v1/auth endpoints.
type SessionHandler struct {
	Sessions SessionManager
}

// Create handles POST /v1/auth/sessions. The caller is identified by the bearer token
// verified upstream; the response carries the only copy of the refresh token. Access
// tokens minted by this service cannot open further sessions.
func (h SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := middleware.IdentityFromContext(ctx)
	if identity.SessionID != "" {
		respondError(ctx, w, apperr.Unauthorized("sessions must be opened with an identity token"))
		return
	}

	tokens, err := h.Sessions.CreateSession(ctx, identity.UserID, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondData(ctx, w, http.StatusCreated, newTokensResponse(tokens), nil)
}

// Refresh handles POST /v1/auth/refresh. The presented token stops working as soon as
// the response is produced.
func (h SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondError(ctx, w, err)
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondError(ctx, w, apperr.InvalidRequest("refresh_token is required", nil))
		return
	}

	tokens, err := h.Sessions.RefreshSession(ctx, req.RefreshToken, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondData(ctx, w, http.StatusOK, newTokensResponse(tokens), nil)
}

// List handles GET /v1/auth/sessions. Token values are never returned.
func (h SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := middleware.IdentityFromContext(ctx)

	sessions, err := h.Sessions.ListSessions(ctx, identity.UserID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	data := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		data = append(data, sessionResponse{
			ID:        s.ID.String(),
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
			ExpiresAt: s.ExpiresAt,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			Current:   s.ID.String() == identity.SessionID,
		})
	}
	respondData(ctx, w, http.StatusOK, data, nil)
}

// Revoke handles DELETE /v1/auth/sessions/{id}.
func (h SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, apperr.InvalidRequest("session id must be a UUID", err))
		return
	}
	if err := h.Sessions.RevokeSession(ctx, id, middleware.UserID(ctx)); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAll handles DELETE /v1/auth/sessions.
func (h SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.Sessions.RevokeAllSessions(ctx, middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondData(ctx, w, http.StatusOK, map[string]int64{"revoked": removed}, nil)
}
