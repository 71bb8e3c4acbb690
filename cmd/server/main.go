// Package main runs the taskmaster API server: it loads configuration,
// wires the task store, cache, partition locks and services, and serves the
// HTTP API until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskmaster-hq/taskmaster-api/internal/config"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a goose migration command (up, down, status, version, reset) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrateCmd); err != nil {
		log.Fatalf("taskmaster: %v", err)
	}
}

func run(ctx context.Context, migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("lock_backend", cfg.Ordering.LockBackend),
		slog.Bool("cache_enabled", cfg.Cache.Enabled()))

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, migrateCmd, l)
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

// runMigrations applies the embedded goose migrations. Only the postgres
// driver has a schema to migrate.
func runMigrations(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	if cfg.Database.Driver != driverPostgres {
		return fmt.Errorf("migrations require the postgres driver, configured driver is %q", cfg.Database.Driver)
	}

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	l.Info("Executing migrations", slog.String("command", command))
	return postgres.Migrate(ctx, db, command, l)
}
