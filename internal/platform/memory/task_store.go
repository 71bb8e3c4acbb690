package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// TaskStore is a mutex-guarded map of tasks. Returned tasks are copies.
type TaskStore struct {
	mu     sync.RWMutex
	tasks  map[string]*domain.Task
	logger *slog.Logger
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore(logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		tasks:  make(map[string]*domain.Task),
		logger: logger.With(slog.String("component", "memory_task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// Insert implements store.TaskStore.Insert
func (s *TaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = uuid.New().String()
	s.tasks[task.ID] = task.Clone()

	logger.FromContextOrDefault(ctx, s.logger).Debug("task inserted",
		slog.String("task_id", task.ID),
		slog.Int("order", task.Order))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *TaskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// ListByOwner implements store.TaskStore.ListByOwner
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	out := s.filter(func(t *domain.Task) bool { return t.OwnerID == ownerID })
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return less(out[i], out[j])
	})
	return out, nil
}

// ListPartition implements store.TaskStore.ListPartition
func (s *TaskStore) ListPartition(ctx context.Context, p domain.Partition) ([]*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	out := s.filter(func(t *domain.Task) bool { return domain.PartitionOf(t) == p })
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// CountPartition implements store.TaskStore.CountPartition
func (s *TaskStore) CountPartition(ctx context.Context, p domain.Partition) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tasks {
		if domain.PartitionOf(t) == p {
			n++
		}
	}
	return n, nil
}

// Update implements store.TaskStore.Update
func (s *TaskStore) Update(ctx context.Context, id, ownerID string, update domain.TaskUpdate) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrTaskNotFound
	}
	update.Apply(t)
	return nil
}

// Delete implements store.TaskStore.Delete
func (s *TaskStore) Delete(ctx context.Context, id, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// ApplyOrders validates every assignment before writing any, so a batch is
// applied entirely or not at all.
func (s *TaskStore) ApplyOrders(ctx context.Context, p domain.Partition, assignments []domain.OrderAssignment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range assignments {
		t, ok := s.tasks[a.TaskID]
		if !ok || domain.PartitionOf(t) != p {
			return store.NewStoreError("task", "apply orders",
				fmt.Sprintf("task %s not in partition", a.TaskID), store.ErrPartialBatch)
		}
	}
	for _, a := range assignments {
		s.tasks[a.TaskID].Order = a.Order
	}
	return nil
}

// SetOrdersIf implements store.TaskStore.SetOrdersIf
func (s *TaskStore) SetOrdersIf(ctx context.Context, ownerID string, items []domain.ReorderItem) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]bool, len(items))
	for i, item := range items {
		t, ok := s.tasks[item.ID]
		if !ok || t.OwnerID != ownerID || t.Category != item.Category {
			continue
		}
		t.Order = item.Order
		matched[i] = true
	}
	return matched, nil
}

// filter must be called with s.mu held.
func (s *TaskStore) filter(keep func(*domain.Task) bool) []*domain.Task {
	var out []*domain.Task
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func less(a, b *domain.Task) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
