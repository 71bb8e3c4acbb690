package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskmaster-hq/taskmaster-api/internal/config"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/memory"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/mongo"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/postgres"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

const (
	driverPostgres = "postgres"
	driverMongo    = "mongo"
	driverMemory   = "memory"
)

// stores is the persistence selected by database.driver.
type stores struct {
	tasks store.TaskStore
	users store.UserStore
	close func(context.Context) error
}

// openStores connects the configured backend. Postgres schemas are migrated
// up and mongo indexes created before the stores are returned.
func openStores(ctx context.Context, cfg config.DatabaseConfig, l *slog.Logger) (*stores, error) {
	switch cfg.Driver {
	case driverPostgres:
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, "up", l); err != nil {
			_ = db.Close()
			return nil, err
		}
		l.Info("Database connection established", slog.String("driver", cfg.Driver))
		return &stores{
			tasks: postgres.NewPostgresTaskStore(db, l),
			users: postgres.NewPostgresUserStore(db, l),
			close: func(context.Context) error { return db.Close() },
		}, nil

	case driverMongo:
		client, err := mongo.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Name)
		tasks := mongo.NewTaskStore(db, l)
		users := mongo.NewUserStore(db, l)
		if err := tasks.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create task indexes: %w", err)
		}
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create user indexes: %w", err)
		}
		l.Info("Database connection established",
			slog.String("driver", cfg.Driver),
			slog.String("database", cfg.Name))
		return &stores{tasks: tasks, users: users, close: client.Disconnect}, nil

	case driverMemory:
		l.Warn("Using in-memory store, data will not survive a restart")
		return &stores{
			tasks: memory.NewTaskStore(l),
			users: memory.NewUserStore(),
			close: func(context.Context) error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
