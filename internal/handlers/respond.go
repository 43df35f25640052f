package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/logging"
)

// maxJSONBody bounds request bodies; a full location batch fits comfortably.
const maxJSONBody = 2 << 20

type envelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

func respondData(ctx context.Context, w http.ResponseWriter, status int, data, meta any) {
	respondJSON(ctx, w, status, envelope{Data: data, Meta: meta})
}

// respondError maps err onto the error taxonomy. Internal causes are logged, never
// sent to the client.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "error", err)
	default:
		logger.Warn("request returned client error", "status", status, "error", err)
	}

	respondJSON(ctx, w, status, errorEnvelope{Error: errorBody{Code: string(kind), Message: apperr.MessageOf(err)}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.InvalidRequest("request body too large", err)
		}
		if errors.Is(err, io.EOF) {
			return apperr.InvalidRequest("request body is required", err)
		}
		return apperr.InvalidRequest("invalid request body", err)
	}
	return nil
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidRequest(name+" must be an integer", err)
	}
	return v, nil
}
