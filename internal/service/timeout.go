package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// bounded runs one store call under its own deadline. An expired deadline is
// reported as ErrStoreUnavailable so callers see it as retryable rather than
// as a definitive answer.
func bounded[T any](ctx context.Context, limit time.Duration, call func(context.Context) (T, error)) (T, error) {
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	v, err := call(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, store.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}
	return v, err
}

func boundedErr(ctx context.Context, limit time.Duration, call func(context.Context) error) error {
	_, err := bounded(ctx, limit, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}
