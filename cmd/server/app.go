package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskmaster-hq/taskmaster-api/internal/config"
	"github.com/taskmaster-hq/taskmaster-api/internal/events"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/cache"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/lock"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	stores *stores
	redis  *redis.Client

	taskService service.TaskService
	userService service.UserService

	verifier   auth.Verifier
	jwtService auth.JWTService
}

// newApplication connects the configured backends and builds the services.
// Every resource opened before a failure is released again.
func newApplication(ctx context.Context, cfg *config.Config, l *slog.Logger) (_ *application, err error) {
	app := &application{config: cfg, logger: l}
	defer func() {
		if err != nil {
			app.cleanup(context.Background())
		}
	}()

	app.verifier, app.jwtService, err = auth.NewVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity verifier: %w", err)
	}
	l.Info("Identity verifier initialized", slog.String("mode", cfg.Auth.Mode))

	app.stores, err = openStores(ctx, cfg.Database, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	if cfg.Cache.Enabled() {
		app.redis, err = connectRedis(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		l.Info("Redis connection established", slog.String("addr", cfg.Cache.RedisAddr))
	}

	locker, err := newLocker(cfg.Ordering, app.redis, l)
	if err != nil {
		return nil, err
	}

	emitter := events.NewInMemoryEventEmitter(l)
	var listCache service.TaskListCache
	if app.redis != nil && cfg.Cache.TTL() > 0 {
		taskCache := cache.NewTaskListCache(app.redis, cfg.Cache.TTL(), l)
		emitter.RegisterHandler(taskCache)
		listCache = taskCache
	}

	app.taskService, err = service.NewTaskService(
		app.stores.tasks,
		locker,
		emitter,
		listCache,
		service.TaskServiceConfig{
			StoreTimeout:  cfg.Database.StoreTimeout(),
			VerifyReorder: cfg.Ordering.VerifyReorder,
		},
		l,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.userService = service.NewUserService(app.stores.users, cfg.Database.StoreTimeout(), l)

	l.Info("Application initialized successfully")
	return app, nil
}

func connectRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// newLocker selects the partition lock backend. The redis backend needs the
// cache connection to be configured.
func newLocker(cfg config.OrderingConfig, client *redis.Client, l *slog.Logger) (lock.Locker, error) {
	switch cfg.LockBackend {
	case "local":
		return lock.NewLocal(cfg.LockWait()), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("lock backend redis requires cache.redis_addr")
		}
		return lock.NewRedis(client, cfg.LockTTL(), cfg.LockWait(), l), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}

	if app.stores != nil {
		if err := app.stores.close(ctx); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
