// Package cache keeps each owner's sorted task list in Redis. Reads fall
// through to the store on any Redis failure, and every mutation of an
// owner's tasks evicts that owner's entry.
//
// Each owner also has a generation counter that every eviction bumps. A
// reader takes the generation with its miss and may only fill the entry if
// the generation is unchanged, so a list read before a write can never be
// cached after that write's eviction.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/events"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
)

const (
	keyPrefix           = "taskmaster:tasks:"
	generationKeyPrefix = "taskmaster:tasks-gen:"

	// generationTTL only has to outlive the slowest store read between a
	// miss and its fill.
	generationTTL = 24 * time.Hour
)

// NoGeneration is returned by Get when the generation could not be read.
// Set never fills with it.
const NoGeneration int64 = -1

// fillScript writes the list only if the owner's generation still matches
// the one observed at the miss.
var fillScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[2]) or "0") or 0
if current ~= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// TaskListCache is a Redis-backed cache of per-owner task lists.
type TaskListCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewTaskListCache creates a cache on client. A nil client or a zero TTL
// turns every call into a miss.
func NewTaskListCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *TaskListCache {
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskListCache{
		redis:  client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "task_cache")),
	}
}

// Get returns the cached list for ownerID. On a miss it returns the owner's
// current generation for a later Set. Corrupt or unreadable entries are
// dropped and reported as a miss.
func (c *TaskListCache) Get(ctx context.Context, ownerID string) ([]*domain.Task, int64, bool) {
	if c.redis == nil || c.ttl == 0 {
		return nil, NoGeneration, false
	}

	values, err := c.redis.MGet(ctx, key(ownerID), generationKey(ownerID)).Result()
	if err != nil {
		c.warn(ctx, "cache read failed", err)
		return nil, NoGeneration, false
	}

	generation, err := parseGeneration(values[1])
	if err != nil {
		c.warn(ctx, "cache generation corrupt", err)
		return nil, NoGeneration, false
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, generation, false
	}

	var tasks []*domain.Task
	if err := json.Unmarshal([]byte(data), &tasks); err != nil {
		c.warn(ctx, "cache entry corrupt", err)
		_ = c.redis.Del(ctx, key(ownerID)).Err()
		return nil, generation, false
	}
	return tasks, 0, true
}

// Set stores tasks for ownerID with the configured TTL, unless the owner's
// list was evicted after generation was returned by Get.
func (c *TaskListCache) Set(ctx context.Context, ownerID string, generation int64, tasks []*domain.Task) {
	if c.redis == nil || c.ttl == 0 || generation == NoGeneration {
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}

	keys := []string{key(ownerID), generationKey(ownerID)}
	filled, err := fillScript.Run(ctx, c.redis, keys, generation, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.warn(ctx, "cache write failed", err)
		return
	}
	if filled == 0 {
		logger.FromContextOrDefault(ctx, c.logger).Debug("skipped cache fill after concurrent eviction")
	}
}

// Evict drops the cached lists of the given owners.
func (c *TaskListCache) Evict(ctx context.Context, ownerIDs ...string) {
	if c.redis == nil || len(ownerIDs) == 0 {
		return
	}

	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ownerIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), generationTTL)
			pipe.Del(ctx, key(id))
		}
		return nil
	})
	if err != nil {
		c.warn(ctx, "cache evict failed", err)
	}
}

// HandleEvent evicts the owner named by a task change. Cache failures are
// logged, never returned.
func (c *TaskListCache) HandleEvent(ctx context.Context, event *events.TaskChangedEvent) error {
	c.Evict(ctx, event.OwnerID)
	return nil
}

var _ events.EventHandler = (*TaskListCache)(nil)

func (c *TaskListCache) warn(ctx context.Context, msg string, err error) {
	logger.FromContextOrDefault(ctx, c.logger).Warn(msg, slog.String("error", redact.Error(err)))
}

func key(ownerID string) string {
	return keyPrefix + ownerID
}

func generationKey(ownerID string) string {
	return generationKeyPrefix + ownerID
}

func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
