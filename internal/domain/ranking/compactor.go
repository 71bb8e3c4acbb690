package ranking

import (
	"fmt"
	"sort"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

// SortByOrder sorts tasks by rank ascending. Duplicate ranks left behind by a
// race are broken by creation time and then ID so compaction is deterministic.
func SortByOrder(tasks []*domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Compact assigns rank i+1 to the task at position i. The input must already
// be in the desired sequence; relative order is preserved exactly.
func Compact(tasks []*domain.Task) []domain.OrderAssignment {
	out := make([]domain.OrderAssignment, len(tasks))
	for i, t := range tasks {
		out[i] = domain.OrderAssignment{TaskID: t.ID, Order: i + 1}
	}
	return out
}

// Changes is Compact restricted to tasks whose rank actually differs. An
// already contiguous partition yields no writes.
func Changes(tasks []*domain.Task) []domain.OrderAssignment {
	var out []domain.OrderAssignment
	for i, t := range tasks {
		if t.Order != i+1 {
			out = append(out, domain.OrderAssignment{TaskID: t.ID, Order: i + 1})
		}
	}
	return out
}

// Apply writes the assignments into the in-memory tasks. Unknown IDs are
// ignored.
func Apply(tasks []*domain.Task, assignments []domain.OrderAssignment) {
	byID := make(map[string]*domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, a := range assignments {
		if t, ok := byID[a.TaskID]; ok {
			t.Order = a.Order
		}
	}
}

// MoveTo relocates the task with the given ID so it sits at rank position
// (1-based) and returns the resulting sequence. Positions outside 1..N are
// clamped. The input slice is not modified.
func MoveTo(tasks []*domain.Task, id string, position int) ([]*domain.Task, bool) {
	from := -1
	for i, t := range tasks {
		if t.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return tasks, false
	}

	moved := tasks[from]
	rest := make([]*domain.Task, 0, len(tasks))
	rest = append(rest, tasks[:from]...)
	rest = append(rest, tasks[from+1:]...)

	idx := position - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(rest) {
		idx = len(rest)
	}

	out := make([]*domain.Task, 0, len(tasks))
	out = append(out, rest[:idx]...)
	out = append(out, moved)
	out = append(out, rest[idx:]...)
	return out, true
}

// ContiguityError describes how a partition deviates from 1..N.
type ContiguityError struct {
	Partition  domain.Partition
	Missing    []int
	Duplicates []int
}

func (e *ContiguityError) Error() string {
	return fmt.Sprintf("partition %s not contiguous: missing %v, duplicated %v",
		e.Partition, e.Missing, e.Duplicates)
}

// CheckContiguous verifies that the ranks of tasks are exactly {1..N}.
func CheckContiguous(p domain.Partition, tasks []*domain.Task) error {
	n := len(tasks)
	seen := make(map[int]int, n)
	for _, t := range tasks {
		seen[t.Order]++
	}

	var missing, dups []int
	for r := 1; r <= n; r++ {
		if seen[r] == 0 {
			missing = append(missing, r)
		}
	}
	for r, c := range seen {
		if c > 1 {
			dups = append(dups, r)
		}
	}
	if len(missing) == 0 && len(dups) == 0 {
		return nil
	}
	sort.Ints(dups)
	return &ContiguityError{Partition: p, Missing: missing, Duplicates: dups}
}
