package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/walktrack/backend/internal/auth"
	"github.com/walktrack/backend/internal/config"
	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/events"
	"github.com/walktrack/backend/internal/handlers"
	"github.com/walktrack/backend/internal/metrics"
	"github.com/walktrack/backend/internal/middleware"
	"github.com/walktrack/backend/internal/repositories"
	"github.com/walktrack/backend/internal/scheduler"
	"github.com/walktrack/backend/internal/storage"
	"github.com/walktrack/backend/internal/walks"
)

// rateLimitIdleTTL is how long an idle client's limiter is kept.
const rateLimitIdleTTL = 10 * time.Minute

// Pool is the database handle the service runs on; *pgxpool.Pool satisfies it.
type Pool interface {
	db.Querier
	db.Pinger
}

// dependencies is the wired object graph of the service.
type dependencies struct {
	handlers handlers.Dependencies
	sessions *auth.Manager
	sweeper  *scheduler.Sweeper
	redis    *redis.Client
}

// close releases the connections opened by buildDependencies.
func (d dependencies) close() error {
	if d.redis == nil {
		return nil
	}
	return d.redis.Close()
}

// buildDependencies wires together concrete implementations used by the HTTP handlers
// and background jobs. The returned cleanup releases what buildDependencies opened.
func buildDependencies(ctx context.Context, pool Pool, cfg config.Config, logger *slog.Logger) (dependencies, func() error, error) {
	m := metrics.New()
	deps := dependencies{redis: db.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password)}
	cleanup := deps.close
	publisher, locker := newCoordination(deps.redis)

	thumbs, err := newThumbnailStore(ctx, cfg.ObjectStore)
	if err != nil {
		_ = cleanup()
		return dependencies{}, nil, err
	}

	verifier, issuer, err := buildVerifier(cfg.Auth)
	if err != nil {
		_ = cleanup()
		return dependencies{}, nil, err
	}

	opts := []auth.Option{}
	if issuer != nil {
		opts = append(opts, auth.WithAccessTokens(issuer))
	}
	sessions := auth.NewManager(
		repositories.NewPostgresSessionRepository(pool),
		auth.NewTokenHasher(cfg.Auth.TokenPepper),
		cfg.Auth.RefreshTokenTTL,
		opts...,
	)
	verifier = auth.SessionBoundVerifier{Verifier: verifier, Sessions: sessions}

	walkService := walks.NewService(
		repositories.NewPostgresWalkRepository(pool),
		repositories.NewPostgresLocationRepository(pool),
		walks.WithThumbnailStore(thumbs),
		walks.WithPublisher(publisher),
		walks.WithMetrics(m),
	)

	deps.sessions = sessions
	deps.sweeper = scheduler.NewSweeper(sessions, locker, m, logger, cfg.SweepSchedule)
	deps.handlers = handlers.Dependencies{
		Logger:      logger,
		Walks:       walkService,
		Sessions:    sessions,
		Verifier:    verifier,
		RateLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimitIdleTTL),
		Metrics:     m,
		DB:          pool,
	}
	return deps, cleanup, nil
}

// newCoordination picks the event publisher and sweep lock. Without Redis, events are
// dropped and the lock only guards this process.
func newCoordination(rdb *redis.Client) (events.Publisher, scheduler.Locker) {
	if rdb == nil {
		return events.Nop{}, scheduler.LocalLocker{}
	}
	return events.NewRedisPublisher(rdb), scheduler.NewRedisLocker(rdb)
}

// newThumbnailStore returns the S3 store when a bucket is configured.
func newThumbnailStore(ctx context.Context, cfg config.ObjectStoreConfig) (storage.ThumbnailStore, error) {
	if cfg.Bucket == "" {
		return storage.Disabled{}, nil
	}
	store, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure thumbnail storage: %w", err)
	}
	return store, nil
}

// buildVerifier selects the bearer verifier from configuration. Access tokens minted by
// this service are always accepted when a signing secret is configured.
func buildVerifier(cfg config.AuthConfig) (auth.TokenVerifier, *auth.AccessTokenIssuer, error) {
	var issuer *auth.AccessTokenIssuer
	var accessVerifier auth.TokenVerifier
	if cfg.JWTSecret != "" {
		issuer = auth.NewAccessTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
		accessVerifier = auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}

	switch cfg.Provider {
	case config.AuthProviderJWT:
		if accessVerifier == nil {
			return nil, nil, fmt.Errorf("auth provider %q requires a JWT secret", cfg.Provider)
		}
		return accessVerifier, issuer, nil
	case config.AuthProviderStatic:
		static := auth.NewStaticVerifier(cfg.StaticTokenMap())
		if accessVerifier == nil {
			return static, nil, nil
		}
		return auth.ChainVerifier{accessVerifier, static}, issuer, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}
