package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/walktrack/backend/internal/repositories"
)

// Entity names used in logs and reports.
const (
	EntityUsers    = "users"
	EntityConsents = "consents"
	EntityWalks    = "walks"
)

// Options selects what a run does. Disabling an entity type lets an interrupted
// migration resume without re-reading collections that already finished.
type Options struct {
	DryRun   bool
	Users    bool
	Consents bool
	Walks    bool
}

// AllEntities enables every entity type.
func AllEntities() Options {
	return Options{Users: true, Consents: true, Walks: true}
}

// Stats counts the records of one entity type.
type Stats struct {
	Read    int
	Written int
	Skipped int
}

// Report summarises a run.
type Report struct {
	DryRun           bool
	Users            Stats
	Consents         Stats
	Walks            Stats
	LocationsWritten int
	LocationsSkipped int
}

// Runner writes transformed legacy records through the repositories.
type Runner struct {
	users     repositories.UserRepository
	consents  repositories.ConsentRepository
	walks     repositories.WalkRepository
	locations repositories.LocationRepository
	logger    *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(users repositories.UserRepository, consents repositories.ConsentRepository, walks repositories.WalkRepository, locations repositories.LocationRepository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		users:     users,
		consents:  consents,
		walks:     walks,
		locations: locations,
		logger:    logger,
	}
}

// Run migrates the enabled entity types in dependency order: users, consents, walks.
// Per-record failures are logged and counted; only source failures and context
// cancellation abort the run.
func (r *Runner) Run(ctx context.Context, src Source, opts Options) (Report, error) {
	report := Report{DryRun: opts.DryRun}

	if opts.Users {
		if err := r.migrateUsers(ctx, src, opts.DryRun, &report.Users); err != nil {
			return report, fmt.Errorf("migrate users: %w", err)
		}
		r.logStats(ctx, EntityUsers, report.Users, opts.DryRun)
	}
	if opts.Consents {
		if err := r.migrateConsents(ctx, src, opts.DryRun, &report.Consents); err != nil {
			return report, fmt.Errorf("migrate consents: %w", err)
		}
		r.logStats(ctx, EntityConsents, report.Consents, opts.DryRun)
	}
	if opts.Walks {
		if err := r.migrateWalks(ctx, src, opts.DryRun, &report); err != nil {
			return report, fmt.Errorf("migrate walks: %w", err)
		}
		r.logStats(ctx, EntityWalks, report.Walks, opts.DryRun)
	}
	return report, nil
}

func (r *Runner) migrateUsers(ctx context.Context, src Source, dryRun bool, stats *Stats) error {
	return src.Users(ctx, func(lu LegacyUser, decodeErr error) error {
		stats.Read++
		if decodeErr != nil {
			r.skip(ctx, stats, EntityUsers, lu.ID, decodeErr)
			return nil
		}
		user, err := TransformUser(lu)
		if err != nil {
			r.skip(ctx, stats, EntityUsers, lu.ID, err)
			return nil
		}
		if !dryRun {
			if err := r.users.Upsert(ctx, user); err != nil {
				return r.writeFailed(ctx, stats, EntityUsers, lu.ID, err)
			}
		}
		stats.Written++
		return nil
	})
}

func (r *Runner) migrateConsents(ctx context.Context, src Source, dryRun bool, stats *Stats) error {
	return src.Consents(ctx, func(lc LegacyConsent, decodeErr error) error {
		stats.Read++
		id := lc.UserID + "/" + lc.Type
		if decodeErr != nil {
			r.skip(ctx, stats, EntityConsents, id, decodeErr)
			return nil
		}
		consent, err := TransformConsent(lc)
		if err != nil {
			r.skip(ctx, stats, EntityConsents, id, err)
			return nil
		}
		if !dryRun {
			if err := r.consents.Upsert(ctx, consent); err != nil {
				return r.writeFailed(ctx, stats, EntityConsents, id, err)
			}
		}
		stats.Written++
		return nil
	})
}

func (r *Runner) migrateWalks(ctx context.Context, src Source, dryRun bool, report *Report) error {
	stats := &report.Walks
	return src.Walks(ctx, func(lw LegacyWalk, decodeErr error) error {
		stats.Read++
		if decodeErr != nil {
			r.skip(ctx, stats, EntityWalks, lw.ID, decodeErr)
			return nil
		}
		res, err := TransformWalk(lw)
		if err != nil {
			r.skip(ctx, stats, EntityWalks, lw.ID, err)
			return nil
		}
		for _, w := range res.Warnings {
			r.logger.WarnContext(ctx, "legacy record repaired", "entity", EntityWalks, "legacy_id", lw.ID, "detail", w)
		}
		report.LocationsSkipped += len(lw.Locations) - len(res.Locations)

		if !dryRun {
			if err := r.walks.Upsert(ctx, res.Walk); err != nil {
				return r.writeFailed(ctx, stats, EntityWalks, lw.ID, err)
			}
			if len(res.Locations) > 0 {
				if err := r.locations.BatchCreate(ctx, res.Locations); err != nil {
					return r.writeFailed(ctx, stats, EntityWalks, lw.ID, fmt.Errorf("locations: %w", err))
				}
			}
		}
		stats.Written++
		report.LocationsWritten += len(res.Locations)
		return nil
	})
}

func (r *Runner) skip(ctx context.Context, stats *Stats, entity, legacyID string, reason error) {
	stats.Skipped++
	r.logger.WarnContext(ctx, "legacy record skipped", "entity", entity, "legacy_id", legacyID, "reason", reason)
}

// writeFailed skips the record unless the failure is the context ending, which stops
// the run.
func (r *Runner) writeFailed(ctx context.Context, stats *Stats, entity, legacyID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return err
	}
	r.skip(ctx, stats, entity, legacyID, err)
	return nil
}

func (r *Runner) logStats(ctx context.Context, entity string, s Stats, dryRun bool) {
	r.logger.InfoContext(ctx, "entity migrated", "entity", entity, "read", s.Read, "written", s.Written, "skipped", s.Skipped, "dry_run", dryRun)
}
