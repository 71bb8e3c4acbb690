package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

var todo = domain.Partition{OwnerID: "alice", Category: "todo"}

func tasksWithOrders(orders ...int) []*domain.Task {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Task, len(orders))
	for i, o := range orders {
		out[i] = &domain.Task{
			ID:        string(rune('a' + i)),
			OwnerID:   "alice",
			Category:  "todo",
			Title:     "t",
			Order:     o,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func ids(tasks []*domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestNextRank(t *testing.T) {
	assert.Equal(t, 1, NextRank(0))
	assert.Equal(t, 4, NextRank(3))
	assert.Equal(t, 1, NextRank(-2))
}

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) CountPartition(context.Context, domain.Partition) (int, error) {
	return f.n, f.err
}

func TestAllocator(t *testing.T) {
	rank, err := NewAllocator(fakeCounter{n: 0}).NextRank(context.Background(), todo)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	boom := errors.New("boom")
	_, err = NewAllocator(fakeCounter{err: boom}).NextRank(context.Background(), todo)
	assert.ErrorIs(t, err, boom)
}

func TestCompact(t *testing.T) {
	tasks := tasksWithOrders(1, 3, 7)
	got := Compact(tasks)

	assert.Equal(t, []domain.OrderAssignment{
		{TaskID: "a", Order: 1},
		{TaskID: "b", Order: 2},
		{TaskID: "c", Order: 3},
	}, got)
}

func TestChanges(t *testing.T) {
	tests := []struct {
		name   string
		orders []int
		want   []domain.OrderAssignment
	}{
		{"contiguous is a no-op", []int{1, 2, 3}, nil},
		{"empty", nil, nil},
		{"gap after delete", []int{1, 3}, []domain.OrderAssignment{{TaskID: "b", Order: 2}}},
		{"duplicate after race", []int{1, 2, 2}, []domain.OrderAssignment{{TaskID: "c", Order: 3}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Changes(tasksWithOrders(tc.orders...)))
		})
	}
}

func TestCompactionIsIdempotent(t *testing.T) {
	tasks := tasksWithOrders(2, 5, 5, 9)
	SortByOrder(tasks)

	first := Changes(tasks)
	require.NotEmpty(t, first)
	Apply(tasks, first)

	assert.Empty(t, Changes(tasks), "second pass must write nothing")
	assert.NoError(t, CheckContiguous(todo, tasks))
}

func TestSortByOrderBreaksTies(t *testing.T) {
	tasks := tasksWithOrders(2, 1, 2)
	// make "c" older than "a" so it wins the tie
	tasks[2].CreatedAt = tasks[0].CreatedAt.Add(-time.Hour)

	SortByOrder(tasks)
	assert.Equal(t, []string{"b", "c", "a"}, ids(tasks))
}

func TestMoveTo(t *testing.T) {
	tasks := tasksWithOrders(1, 2, 3, 4)

	tests := []struct {
		name     string
		id       string
		position int
		want     []string
	}{
		{"to front", "c", 1, []string{"c", "a", "b", "d"}},
		{"to back", "a", 4, []string{"b", "c", "d", "a"}},
		{"clamped high", "b", 99, []string{"a", "c", "d", "b"}},
		{"clamped low", "d", -1, []string{"d", "a", "b", "c"}},
		{"same place", "b", 2, []string{"a", "b", "c", "d"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MoveTo(tasks, tc.id, tc.position)
			require.True(t, ok)
			assert.Equal(t, tc.want, ids(got))
			assert.Equal(t, []string{"a", "b", "c", "d"}, ids(tasks), "input untouched")
		})
	}

	_, ok := MoveTo(tasks, "zz", 1)
	assert.False(t, ok)
}

func TestCheckContiguous(t *testing.T) {
	assert.NoError(t, CheckContiguous(todo, nil))
	assert.NoError(t, CheckContiguous(todo, tasksWithOrders(3, 1, 2)))

	err := CheckContiguous(todo, tasksWithOrders(1, 1, 4))
	var ce *ContiguityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []int{2, 3}, ce.Missing)
	assert.Equal(t, []int{1}, ce.Duplicates)
}

// Removing the middle of three ranks closes the gap.
func TestDeleteMiddleThenCompact(t *testing.T) {
	tasks := tasksWithOrders(1, 2, 3)
	remaining := []*domain.Task{tasks[0], tasks[2]}

	Apply(remaining, Changes(remaining))
	assert.Equal(t, 1, remaining[0].Order)
	assert.Equal(t, 2, remaining[1].Order)
	assert.Equal(t, []string{"a", "c"}, ids(remaining))
}
