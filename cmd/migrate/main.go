// Command migrate manages the catalog database schema with the embedded goose
// migrations. It is the manual counterpart of DATABASE_AUTO_MIGRATE.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/shop-catalog-backend/internal/app"
	"github.com/heartmarshall/shop-catalog-backend/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the catalog database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config.yaml")

	run := func(fn func(ctx context.Context, p *goose.Provider, log *slog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return withProvider(cmd.Context(), configPath, fn)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  run(up),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE:  run(down),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of every migration",
			Args:  cobra.NoArgs,
			RunE:  run(status),
		},
	)

	return root
}

func withProvider(ctx context.Context, configPath string, fn func(context.Context, *goose.Provider, *slog.Logger) error) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}

	logger, logCloser := app.NewLogger(cfg.Log)
	defer logCloser.Close()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	provider, closeDB, err := postgres.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	return fn(ctx, provider, logger)
}

func up(ctx context.Context, p *goose.Provider, log *slog.Logger) error {
	results, err := p.Up(ctx)
	for _, r := range results {
		logResult(log, r)
	}
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	log.Info("migrations applied", slog.Int("count", len(results)))
	return nil
}

func down(ctx context.Context, p *goose.Provider, log *slog.Logger) error {
	result, err := p.Down(ctx)
	if result != nil {
		logResult(log, result)
	}
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

func status(ctx context.Context, p *goose.Provider, log *slog.Logger) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, s := range statuses {
		log.Info("migration",
			slog.Int64("version", s.Source.Version),
			slog.String("path", s.Source.Path),
			slog.String("state", string(s.State)),
		)
	}
	return nil
}

func logResult(log *slog.Logger, r *goose.MigrationResult) {
	attrs := []any{
		slog.Int64("version", r.Source.Version),
		slog.String("direction", r.Direction),
		slog.Duration("duration", r.Duration),
	}
	if r.Error != nil {
		log.Error("migration failed", append(attrs, slog.String("error", r.Error.Error()))...)
		return
	}
	log.Info("migration applied", attrs...)
}
