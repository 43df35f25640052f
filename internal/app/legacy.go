package app

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/walktrack/backend/internal/config"
	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/migration"
	"github.com/walktrack/backend/internal/repositories"
)

type legacyFlags struct {
	source      string
	exportFile  string
	project     string
	credentials string
	dryRun      bool
	only        []string
	applySchema bool
}

// NewLegacyMigrateCommand builds the one-shot Firestore → PostgreSQL migration command.
func NewLegacyMigrateCommand() *cobra.Command {
	var flags legacyFlags
	cmd := &cobra.Command{
		Use:           "walkmigrate",
		Short:         "Copy legacy Firestore users, consents and walks into PostgreSQL",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return withRuntime(cmd.Context(), func(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
				return runLegacyMigration(ctx, cfg, logger, flags, out)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.source, "source", "firestore", "legacy source: firestore or export")
	f.StringVar(&flags.exportFile, "file", "", "JSON export file when --source=export")
	f.StringVar(&flags.project, "project", "", "Firestore project id (defaults to WALKTRACK_FIRESTORE_PROJECT)")
	f.StringVar(&flags.credentials, "credentials", "", "service account file (defaults to WALKTRACK_FIRESTORE_CREDENTIALS)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "read and transform only, report counts without writing")
	f.StringSliceVar(&flags.only, "only", []string{migration.EntityUsers, migration.EntityConsents, migration.EntityWalks}, "entity types to migrate")
	f.BoolVar(&flags.applySchema, "apply-schema", true, "apply pending schema migrations first")
	return cmd
}

func (f legacyFlags) options() (migration.Options, error) {
	opts := migration.Options{DryRun: f.dryRun}
	for _, entity := range f.only {
		switch entity {
		case migration.EntityUsers:
			opts.Users = true
		case migration.EntityConsents:
			opts.Consents = true
		case migration.EntityWalks:
			opts.Walks = true
		default:
			return migration.Options{}, fmt.Errorf("unknown entity type %q", entity)
		}
	}
	return opts, nil
}

func (f legacyFlags) openSource(ctx context.Context, cfg config.LegacyConfig) (migration.Source, error) {
	switch f.source {
	case "export":
		if f.exportFile == "" {
			return nil, fmt.Errorf("--file is required with --source=export")
		}
		return migration.OpenExportFile(f.exportFile)
	case "firestore":
		project := cmp.Or(f.project, cfg.FirestoreProject)
		credentials := cmp.Or(f.credentials, cfg.FirestoreCredentials)
		return migration.NewFirestoreSource(ctx, project, credentials)
	default:
		return nil, fmt.Errorf("unknown source %q", f.source)
	}
}

func runLegacyMigration(ctx context.Context, cfg config.Config, logger *slog.Logger, flags legacyFlags, out io.Writer) error {
	opts, err := flags.options()
	if err != nil {
		return err
	}

	src, err := flags.openSource(ctx, cfg.Legacy)
	if err != nil {
		return err
	}
	defer src.Close()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if flags.applySchema && !opts.DryRun {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	runner := migration.NewRunner(
		repositories.NewPostgresUserRepository(pool),
		repositories.NewPostgresConsentRepository(pool),
		repositories.NewPostgresWalkRepository(pool),
		repositories.NewPostgresLocationRepository(pool),
		logger,
	)
	report, err := runner.Run(ctx, src, opts)
	printReport(out, report, opts)
	return err
}

func printReport(out io.Writer, report migration.Report, opts migration.Options) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if report.DryRun {
		fmt.Fprintln(tw, "dry run: nothing was written")
	}
	fmt.Fprintln(tw, "ENTITY\tREAD\tWRITTEN\tSKIPPED")
	rows := []struct {
		name    string
		enabled bool
		stats   migration.Stats
	}{
		{migration.EntityUsers, opts.Users, report.Users},
		{migration.EntityConsents, opts.Consents, report.Consents},
		{migration.EntityWalks, opts.Walks, report.Walks},
	}
	for _, row := range rows {
		if !row.enabled {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", row.name, row.stats.Read, row.stats.Written, row.stats.Skipped)
	}
	if opts.Walks {
		fmt.Fprintf(tw, "locations\t-\t%d\t%d\n", report.LocationsWritten, report.LocationsSkipped)
	}
}
