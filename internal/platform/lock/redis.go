package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
)

const keyPrefix = "taskmaster:lock:"

// releaseScript deletes the lock only if it still carries our token, so a
// holder whose TTL expired cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock TTL only while it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker backed by SET NX PX. TTL bounds how long a crashed
// holder can block a partition; a live holder renews its keys every TTL/3
// until it unlocks.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis locker.
func NewRedis(client *redis.Client, ttl, wait time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  15 * time.Millisecond,
		logger: logger.With(slog.String("component", "redis_lock")),
	}
}

var _ Locker = (*Redis)(nil)

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	return lockAll(ctx, r.wait, keys, r.acquireKey)
}

func (r *Redis) acquireKey(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, redact.Error(err))
		}
		if ok {
			stop := r.keepAlive(ctx, redisKey, token)
			return func() {
				stop()
				r.release(ctx, redisKey, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// keepAlive renews redisKey until the returned stop func is called or the
// key is found to belong to another holder.
func (r *Redis) keepAlive(ctx context.Context, redisKey, token string) (stop func()) {
	interval := r.ttl / 3
	if interval <= 0 {
		return func() {}
	}

	// The acquire context is cancelled as soon as Lock returns.
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			renewCtx, cancel := context.WithTimeout(ctx, interval)
			renewed, err := renewScript.Run(renewCtx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
			cancel()

			log := logger.FromContextOrDefault(ctx, r.logger)
			if err != nil {
				log.Warn("failed to renew partition lock",
					slog.String("key", redisKey),
					slog.String("error", redact.Error(err)))
				continue
			}
			if renewed == 0 {
				log.Error("partition lock lost before release", slog.String("key", redisKey))
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
		})
	}
}

func (r *Redis) release(ctx context.Context, redisKey, token string) {
	// The request context may already be done; releasing must still happen.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Warn("failed to release partition lock",
			slog.String("error", redact.Error(err)))
	}
}
