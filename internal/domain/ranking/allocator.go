package ranking

import (
	"context"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

// NextRank returns the rank a new task takes when appended to a partition
// that currently holds count tasks.
func NextRank(count int) int {
	if count < 0 {
		count = 0
	}
	return count + 1
}

// Counter reports how many ranked tasks a partition holds.
type Counter interface {
	CountPartition(ctx context.Context, p domain.Partition) (int, error)
}

// Allocator computes append ranks from a live count. The result is only safe
// to persist while the caller holds the partition lock.
type Allocator struct {
	counter Counter
}

// NewAllocator creates an Allocator backed by counter.
func NewAllocator(counter Counter) *Allocator {
	return &Allocator{counter: counter}
}

// NextRank returns count(p) + 1.
func (a *Allocator) NextRank(ctx context.Context, p domain.Partition) (int, error) {
	n, err := a.counter.CountPartition(ctx, p)
	if err != nil {
		return 0, err
	}
	return NextRank(n), nil
}
