package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/walktrack/backend/internal/config"
	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/handlers"
	"github.com/walktrack/backend/internal/httpserver"
	"github.com/walktrack/backend/internal/logging"
)

// Run bootstraps the walktrack backend with the given command line arguments.
func Run(ctx context.Context, args []string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCommand builds the walktrack command tree: serve, migrate and sweep.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "walktrack",
		Short:         "Walk tracking API backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the session sweeper",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd.Context(), serve)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd.Context(), migrate)
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Delete expired sessions once and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd.Context(), sweepOnce)
			},
		},
	)
	return root
}

type runtimeFunc func(ctx context.Context, cfg config.Config, logger *slog.Logger) error

// withRuntime loads configuration, installs the logger and cancels ctx on SIGINT or
// SIGTERM before handing over to fn.
func withRuntime(ctx context.Context, fn runtimeFunc) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(logging.WithLogger(ctx, logger), cfg, logger)
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("release dependencies", "error", err)
		}
	}()

	srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps.handlers), httpserver.Options{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.AppPort)
		return httpserver.Run(gctx, srv, srv.Start, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return deps.sweeper.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema up to date")
	return nil
}

func sweepOnce(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := deps.sweeper.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sweep sessions: %w", err)
	}
	logger.Info("sweep finished", "removed", removed)
	return nil
}
