// Package scheduler runs the periodic expired-session sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/walktrack/backend/internal/metrics"
)

const (
	sweepLockKey = "walktrack:locks:session-sweep"
	sweepLockTTL = 5 * time.Minute
)

// SessionCleaner removes expired sessions. Satisfied by *auth.Manager.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Sweeper runs CleanupExpiredSessions on a cron schedule, one replica at a time.
type Sweeper struct {
	cleaner  SessionCleaner
	locker   Locker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	schedule string
}

// NewSweeper constructs a sweeper. A nil locker means LocalLocker.
func NewSweeper(cleaner SessionCleaner, locker Locker, m *metrics.Metrics, logger *slog.Logger, schedule string) *Sweeper {
	if locker == nil {
		locker = LocalLocker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cleaner: cleaner, locker: locker, metrics: m, logger: logger, schedule: schedule}
}

// RunOnce performs a single sweep. It returns 0 without error when another replica
// holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	release, ok, err := s.locker.TryLock(ctx, sweepLockKey, sweepLockTTL)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.logger.DebugContext(ctx, "session sweep skipped, lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "release sweep lock", "error", err)
		}
	}()

	removed, err := s.cleaner.CleanupExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	s.metrics.SessionsSwept(removed)
	s.logger.InfoContext(ctx, "expired sessions swept", "count", removed)
	return removed, nil
}

// Run schedules sweeps until ctx is cancelled, then waits for a running sweep to end.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.logger.InfoContext(ctx, "session sweeper started", "schedule", s.schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.InfoContext(ctx, "session sweeper stopped")
	return nil
}
