package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/middleware"
	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/walks"
)

// MaxThumbnailBytes bounds thumbnail uploads.
const MaxThumbnailBytes = 5 << 20

// WalkHandler implements the /v1/walks endpoints.
type WalkHandler struct {
	Walks   WalkService
	NowFunc func() time.Time
}

// List handles GET /v1/walks?page=&limit=.
func (h WalkHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := queryInt(r, "page", 1)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	limit, err := queryInt(r, "limit", walks.DefaultPageSize)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Walks.List(ctx, middleware.UserID(ctx), page, limit)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	data := make([]walkResponse, 0, len(result.Walks))
	for _, walk := range result.Walks {
		data = append(data, newWalkResponse(walk, now))
	}
	respondData(ctx, w, http.StatusOK, data, pageMeta{Page: result.Page, Limit: result.Limit, Total: result.Total})
}

// Create handles POST /v1/walks.
func (h WalkHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createWalkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(ctx, w, apperr.InvalidRequest("title is required", nil))
		return
	}

	walk, err := h.Walks.Create(ctx, middleware.UserID(ctx), req.input())
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/v1/walks/"+walk.ID.String())
	respondData(ctx, w, http.StatusCreated, newWalkResponse(walk, h.now()), nil)
}

// Get handles GET /v1/walks/{id}.
func (h WalkHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withWalkID(w, r, func(ctx context.Context, userID string, id uuid.UUID) (any, int, error) {
		walk, err := h.Walks.Get(ctx, userID, id)
		return h.walkData(walk), http.StatusOK, err
	})
}

// Update handles PUT /v1/walks/{id}. Missing walks are created.
func (h WalkHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.withWalkID(w, r, func(ctx context.Context, userID string, id uuid.UUID) (any, int, error) {
		var req updateWalkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, 0, err
		}
		walk, created, err := h.Walks.Update(ctx, userID, id, req.input())
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return h.walkData(walk), status, err
	})
}

// Delete handles DELETE /v1/walks/{id}.
func (h WalkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := walkID(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Walks.Delete(ctx, middleware.UserID(ctx), id); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST /v1/walks/{id}/start.
func (h WalkHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Walks.Start)
}

// Pause handles POST /v1/walks/{id}/pause.
func (h WalkHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Walks.Pause)
}

// Resume handles POST /v1/walks/{id}/resume.
func (h WalkHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Walks.Resume)
}

// Complete handles POST /v1/walks/{id}/complete.
func (h WalkHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Walks.Complete)
}

func (h WalkHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, uuid.UUID) (models.Walk, error)) {
	h.withWalkID(w, r, func(ctx context.Context, userID string, id uuid.UUID) (any, int, error) {
		walk, err := apply(ctx, userID, id)
		return h.walkData(walk), http.StatusOK, err
	})
}

// UploadLocations handles POST /v1/walks/{id}/locations.
func (h WalkHandler) UploadLocations(w http.ResponseWriter, r *http.Request) {
	h.withWalkID(w, r, func(ctx context.Context, userID string, id uuid.UUID) (any, int, error) {
		var req uploadLocationsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, 0, err
		}
		batch := make([]models.WalkLocation, len(req.Locations))
		for i, p := range req.Locations {
			batch[i] = p.model()
		}
		walk, err := h.Walks.UploadLocations(ctx, userID, id, batch)
		return h.walkData(walk), http.StatusOK, err
	})
}

// ListLocations handles GET /v1/walks/{id}/locations.
func (h WalkHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	h.withWalkID(w, r, func(ctx context.Context, userID string, id uuid.UUID) (any, int, error) {
		locations, err := h.Walks.Locations(ctx, userID, id)
		data := make([]locationPayload, 0, len(locations))
		for _, l := range locations {
			data = append(data, newLocationPayload(l))
		}
		return data, http.StatusOK, err
	})
}

// UploadThumbnail handles PUT /v1/walks/{id}/thumbnail with a raw image body.
func (h WalkHandler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	h.withWalkID(w, r, func(ctx context.Context, userID string, id uuid.UUID) (any, int, error) {
		contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			return nil, 0, apperr.InvalidRequest("thumbnail must be image/jpeg or image/png", err)
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxThumbnailBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, 0, apperr.InvalidRequest("thumbnail exceeds 5 MiB", err)
			}
			return nil, 0, apperr.InvalidRequest("unable to read thumbnail", err)
		}
		if len(body) == 0 {
			return nil, 0, apperr.InvalidRequest("thumbnail body is empty", nil)
		}

		walk, err := h.Walks.SetThumbnail(ctx, userID, id, contentType, bytes.NewReader(body))
		return h.walkData(walk), http.StatusOK, err
	})
}

// withWalkID parses the {id} path parameter and renders fn's result in the envelope.
func (h WalkHandler) withWalkID(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID string, id uuid.UUID) (any, int, error)) {
	ctx := r.Context()
	id, err := walkID(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	data, status, err := fn(ctx, middleware.UserID(ctx), id)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondData(ctx, w, status, data, nil)
}

func (h WalkHandler) walkData(walk models.Walk) walkResponse {
	return newWalkResponse(walk, h.now())
}

func (h WalkHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func walkID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidRequest("walk id must be a UUID", err)
	}
	return id, nil
}
