// Package lock serializes mutations per ordering partition. Two backends are
// provided: Local for a single process and Redis for several replicas sharing
// one store.
//
// Callers pass every key they will touch in one Lock call. Keys are acquired
// in sorted order, so two operations locking overlapping sets cannot deadlock.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrLockTimeout is returned when a lock could not be acquired before the
	// wait deadline or the caller's context expired.
	ErrLockTimeout = errors.New("partition lock wait timed out")

	// ErrLockUnavailable is returned when the lock backend itself failed.
	ErrLockUnavailable = errors.New("partition lock backend unavailable")
)

// Unlock releases every key acquired by one Lock call. It is safe to call
// more than once.
type Unlock func()

// Locker acquires exclusive access to a set of keys.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}

type acquireFunc func(ctx context.Context, key string) (func(), error)

// lockAll acquires the deduplicated, sorted keys one by one. On failure the
// keys already held are released in reverse order.
func lockAll(ctx context.Context, wait time.Duration, keys []string, acquire acquireFunc) (Unlock, error) {
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	sorted := normalize(keys)
	held := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, key := range sorted {
		release, err := acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
