package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/auth"
	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/metrics"
	"github.com/walktrack/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger      *slog.Logger
	Walks       WalkService
	Sessions    SessionManager
	Verifier    auth.TokenVerifier
	RateLimiter middleware.RateLimiter
	Metrics     *metrics.Metrics
	DB          db.Pinger
}

// NewRouter wires every HTTP handler. Everything under /v1 except the token refresh
// requires a bearer token.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := HealthHandler{DB: deps.DB}
	walks := WalkHandler{Walks: deps.Walks}
	sessions := SessionHandler{Sessions: deps.Sessions}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Instrument(deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, apperr.NotFound("route not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusMethodNotAllowed, errorEnvelope{Error: errorBody{Code: "method_not_allowed", Message: "method not allowed"}})
	})

	r.Get("/healthz", health.Handle)
	r.Get("/readyz", health.Ready)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(deps.RateLimiter, "refresh")).Post("/auth/refresh", sessions.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Verifier))
			r.Use(middleware.RateLimit(deps.RateLimiter, "api"))

			r.Route("/auth/sessions", func(r chi.Router) {
				r.Post("/", sessions.Create)
				r.Get("/", sessions.List)
				r.Delete("/", sessions.RevokeAll)
				r.Delete("/{id}", sessions.Revoke)
			})

			r.Route("/walks", func(r chi.Router) {
				r.Get("/", walks.List)
				r.Post("/", walks.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", walks.Get)
					r.Put("/", walks.Update)
					r.Delete("/", walks.Delete)
					r.Post("/start", walks.Start)
					r.Post("/pause", walks.Pause)
					r.Post("/resume", walks.Resume)
					r.Post("/complete", walks.Complete)
					r.Post("/locations", walks.UploadLocations)
					r.Get("/locations", walks.ListLocations)
					r.Put("/thumbnail", walks.UploadThumbnail)
				})
			})
		})
	})

	return r
}
