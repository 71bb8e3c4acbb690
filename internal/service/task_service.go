package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/domain/ranking"
	"github.com/taskmaster-hq/taskmaster-api/internal/events"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/lock"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/metrics"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// maxLockAttempts bounds how often Update and Delete re-lock when the task
// changes partition between the unlocked read and the lock.
const maxLockAttempts = 3

// TaskService provides the task ordering operations. Every mutation keeps
// the ranks of each touched partition a contiguous 1..N sequence.
type TaskService interface {
	// ListTasks returns every task of ownerID sorted by category and rank.
	ListTasks(ctx context.Context, ownerID string) ([]*domain.Task, error)

	// Insert creates a task at the end of its partition.
	Insert(ctx context.Context, ownerID, category, title, description string) (*domain.Task, error)

	// Update patches a task owned by ownerID and returns the stored result.
	Update(ctx context.Context, id, ownerID string, update domain.TaskUpdate) (*domain.Task, error)

	// Delete removes a task owned by ownerID.
	Delete(ctx context.Context, id, ownerID string) error

	// ReorderBulk sets client-supplied ranks. Items that do not match a task
	// of ownerID in the stated category are skipped and reported.
	ReorderBulk(ctx context.Context, ownerID string, items []domain.ReorderItem) (*domain.ReorderResult, error)
}

// TaskListCache is the read cache consulted by ListTasks. Get reports a
// generation on a miss; Set must drop the fill if the owner's entry was
// evicted since that generation was read.
type TaskListCache interface {
	Get(ctx context.Context, ownerID string) ([]*domain.Task, int64, bool)
	Set(ctx context.Context, ownerID string, generation int64, tasks []*domain.Task)
}

// TaskServiceConfig tunes the task service.
type TaskServiceConfig struct {
	// StoreTimeout bounds each individual store call. Zero means no bound
	// beyond the caller's context.
	StoreTimeout time.Duration

	// VerifyReorder makes ReorderBulk check each touched partition afterwards
	// and recompact those that are not a permutation of 1..N.
	VerifyReorder bool
}

type taskServiceImpl struct {
	tasks     store.TaskStore
	allocator *ranking.Allocator
	locker    lock.Locker
	emitter   events.EventEmitter
	cache     TaskListCache
	cfg       TaskServiceConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewTaskService creates a TaskService. emitter and cache are optional.
func NewTaskService(
	tasks store.TaskStore,
	locker lock.Locker,
	emitter events.EventEmitter,
	cache TaskListCache,
	cfg TaskServiceConfig,
	log *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if locker == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "locker cannot be nil"}
	}
	if log == nil {
		log = slog.Default()
	}

	return &taskServiceImpl{
		tasks:     tasks,
		allocator: ranking.NewAllocator(tasks),
		locker:    locker,
		emitter:   emitter,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
		logger:    log.With(slog.String("component", "task_service")),
	}, nil
}

// ListTasks implements TaskService.
func (s *taskServiceImpl) ListTasks(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	if ownerID == "" {
		return nil, domain.NewValidationError("email", "is required", domain.ErrEmptyOwnerID)
	}

	var generation int64
	if s.cache != nil {
		tasks, gen, ok := s.cache.Get(ctx, ownerID)
		if ok {
			return tasks, nil
		}
		generation = gen
	}

	tasks, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]*domain.Task, error) {
		return s.tasks.ListByOwner(ctx, ownerID)
	})
	if err != nil {
		s.log(ctx).Error("failed to list tasks",
			slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError("list", "failed to load tasks", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, ownerID, generation, tasks)
	}
	return tasks, nil
}

// Insert implements TaskService.
func (s *taskServiceImpl) Insert(
	ctx context.Context,
	ownerID, category, title, description string,
) (task *domain.Task, err error) {
	started := time.Now()
	defer func() { s.observe("insert", started, err) }()

	task, err = domain.NewTask(ownerID, category, title, description, s.now())
	if err != nil {
		return nil, err
	}
	p := task.Partition()

	err = s.withPartitions(ctx, func(ctx context.Context) error {
		current, err := s.listPartition(ctx, p)
		if err != nil {
			return err
		}

		// Ranks left inconsistent by an earlier failure are repaired before
		// appending so the new task really lands at N+1.
		if ranking.CheckContiguous(p, current) != nil {
			s.log(ctx).Warn("repairing partition before insert", slog.String("partition", p.String()))
			if _, err := s.compact(ctx, p, current); err != nil {
				return err
			}
		}

		task.Order = ranking.NextRank(len(current))
		return boundedErr(ctx, s.cfg.StoreTimeout, func(ctx context.Context) error {
			return s.tasks.Insert(ctx, task)
		})
	}, p)
	if err != nil {
		s.log(ctx).Error("failed to insert task",
			slog.String("partition", p.String()),
			slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError("insert", "failed to insert task", err)
	}

	s.log(ctx).Info("task inserted",
		slog.String("task_id", task.ID),
		slog.String("category", task.Category),
		slog.Int("order", task.Order))
	s.emit(ctx, events.TaskCreated, ownerID, task.ID, p)
	return task, nil
}

// Update implements TaskService.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	id, ownerID string,
	update domain.TaskUpdate,
) (updated *domain.Task, err error) {
	started := time.Now()
	defer func() { s.observe("update", started, err) }()

	if err := update.Validate(); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, domain.NewValidationError("", "no fields to update", domain.ErrValidation)
	}

	var touched []domain.Partition
	err = s.withOwnedTask(ctx, "update", id, ownerID,
		func(t *domain.Task) []domain.Partition {
			if update.MovesCategory(t) {
				return []domain.Partition{t.Partition(), {OwnerID: ownerID, Category: *update.Category}}
			}
			return []domain.Partition{t.Partition()}
		},
		func(ctx context.Context, current *domain.Task) error {
			var err error
			if update.MovesCategory(current) {
				touched, err = s.moveCategory(ctx, current, update)
			} else {
				touched, err = s.updateInPlace(ctx, current, update)
			}
			if err != nil {
				return err
			}

			updated, err = bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*domain.Task, error) {
				return s.tasks.GetByID(ctx, id)
			})
			return err
		})
	if err != nil {
		s.logFailure(ctx, "failed to update task", id, err)
		return nil, NewTaskServiceError("update", "failed to update task", err)
	}

	s.log(ctx).Info("task updated",
		slog.String("task_id", id),
		slog.String("category", updated.Category),
		slog.Int("order", updated.Order))
	s.emit(ctx, events.TaskUpdated, ownerID, id, touched...)
	return updated, nil
}

// moveCategory appends the task to the destination partition, then
// recompacts the vacated and the destination partition. An explicit order
// in the patch positions the task within the destination afterwards.
func (s *taskServiceImpl) moveCategory(
	ctx context.Context,
	current *domain.Task,
	update domain.TaskUpdate,
) ([]domain.Partition, error) {
	from := current.Partition()
	to := domain.Partition{OwnerID: current.OwnerID, Category: *update.Category}

	next, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (int, error) {
		return s.allocator.NextRank(ctx, to)
	})
	if err != nil {
		return nil, err
	}

	patch := update.WithoutOrder()
	patch.Order = &next
	if err := s.applyPatch(ctx, current, patch); err != nil {
		return nil, err
	}

	if err := s.recompact(ctx, from, "", 0); err != nil {
		return nil, err
	}

	position := 0
	if update.Order != nil {
		position = *update.Order
	}
	if err := s.recompact(ctx, to, current.ID, position); err != nil {
		return nil, err
	}

	return []domain.Partition{from, to}, nil
}

// updateInPlace merges the patch into a task that stays in its partition.
// An explicit order moves the task to that position and shifts its
// neighbours.
func (s *taskServiceImpl) updateInPlace(
	ctx context.Context,
	current *domain.Task,
	update domain.TaskUpdate,
) ([]domain.Partition, error) {
	fields := update.WithoutOrder()
	if !fields.IsEmpty() {
		if err := s.applyPatch(ctx, current, fields); err != nil {
			return nil, err
		}
	}

	if update.Order == nil {
		return nil, nil
	}

	p := current.Partition()
	if err := s.recompact(ctx, p, current.ID, *update.Order); err != nil {
		return nil, err
	}
	return []domain.Partition{p}, nil
}

func (s *taskServiceImpl) applyPatch(ctx context.Context, current *domain.Task, patch domain.TaskUpdate) error {
	return boundedErr(ctx, s.cfg.StoreTimeout, func(ctx context.Context) error {
		return s.tasks.Update(ctx, current.ID, current.OwnerID, patch)
	})
}

// Delete implements TaskService.
func (s *taskServiceImpl) Delete(ctx context.Context, id, ownerID string) (err error) {
	started := time.Now()
	defer func() { s.observe("delete", started, err) }()

	var vacated domain.Partition
	err = s.withOwnedTask(ctx, "delete", id, ownerID,
		func(t *domain.Task) []domain.Partition {
			return []domain.Partition{t.Partition()}
		},
		func(ctx context.Context, current *domain.Task) error {
			vacated = current.Partition()
			err := boundedErr(ctx, s.cfg.StoreTimeout, func(ctx context.Context) error {
				return s.tasks.Delete(ctx, current.ID, ownerID)
			})
			if err != nil {
				return err
			}
			return s.recompact(ctx, vacated, "", 0)
		})
	if err != nil {
		s.logFailure(ctx, "failed to delete task", id, err)
		return NewTaskServiceError("delete", "failed to delete task", err)
	}

	s.log(ctx).Info("task deleted",
		slog.String("task_id", id),
		slog.String("partition", vacated.String()))
	s.emit(ctx, events.TaskDeleted, ownerID, id, vacated)
	return nil
}

// ReorderBulk implements TaskService.
func (s *taskServiceImpl) ReorderBulk(
	ctx context.Context,
	ownerID string,
	items []domain.ReorderItem,
) (result *domain.ReorderResult, err error) {
	started := time.Now()
	defer func() { s.observe("reorder", started, err) }()

	if ownerID == "" {
		return nil, domain.NewValidationError("email", "is required", domain.ErrEmptyOwnerID)
	}
	if err := domain.ValidateReorderItems(items); err != nil {
		return nil, err
	}

	var partitions []domain.Partition
	seen := make(map[string]bool)
	for _, item := range items {
		p := item.Partition(ownerID)
		if !seen[p.Key()] {
			seen[p.Key()] = true
			partitions = append(partitions, p)
		}
	}

	err = s.withPartitions(ctx, func(ctx context.Context) error {
		matched, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]bool, error) {
			return s.tasks.SetOrdersIf(ctx, ownerID, items)
		})
		if err != nil {
			return err
		}

		result = newReorderResult(items, matched)
		if !s.cfg.VerifyReorder {
			return nil
		}

		appliedIn := make(map[string]bool)
		for i, item := range items {
			if matched[i] {
				appliedIn[item.Partition(ownerID).Key()] = true
			}
		}
		for _, p := range partitions {
			if !appliedIn[p.Key()] {
				continue
			}
			repaired, err := s.verifyPartition(ctx, p)
			if err != nil {
				return err
			}
			if repaired {
				result.Repaired = append(result.Repaired, p.Category)
			}
		}
		return nil
	}, partitions...)
	if err != nil {
		s.log(ctx).Error("failed to reorder tasks",
			slog.Int("items", len(items)),
			slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError("reorder", "failed to reorder tasks", err)
	}

	metrics.ReorderSkipped.Add(float64(result.Skipped))
	metrics.ReorderRepaired.Add(float64(len(result.Repaired)))

	s.log(ctx).Info("tasks reordered",
		slog.Int("applied", result.Applied),
		slog.Int("skipped", result.Skipped),
		slog.Int("repaired", len(result.Repaired)))
	if result.Applied > 0 {
		s.emit(ctx, events.TasksReordered, ownerID, "", partitions...)
	}
	return result, nil
}

func newReorderResult(items []domain.ReorderItem, matched []bool) *domain.ReorderResult {
	result := &domain.ReorderResult{Items: make([]domain.ReorderItemResult, len(items))}
	for i, item := range items {
		applied := i < len(matched) && matched[i]
		reason := domain.ReorderNotMatched
		if applied {
			reason = domain.ReorderApplied
			result.Applied++
		} else {
			result.Skipped++
		}
		result.Items[i] = domain.ReorderItemResult{
			ID:       item.ID,
			Category: item.Category,
			Order:    item.Order,
			Applied:  applied,
			Reason:   reason,
		}
	}
	return result
}

// verifyPartition recompacts p if the submitted ranks left it with gaps or
// duplicates. It reports whether a repair was written.
func (s *taskServiceImpl) verifyPartition(ctx context.Context, p domain.Partition) (bool, error) {
	tasks, err := s.listPartition(ctx, p)
	if err != nil {
		return false, err
	}

	var gap *ranking.ContiguityError
	if err := ranking.CheckContiguous(p, tasks); !errors.As(err, &gap) {
		return false, nil
	}

	s.log(ctx).Warn("reorder left partition non-contiguous",
		slog.String("partition", p.String()),
		slog.Any("missing", gap.Missing),
		slog.Any("duplicates", gap.Duplicates))

	n, err := s.compact(ctx, p, tasks)
	return n > 0, err
}

// withOwnedTask loads the task, checks ownership, locks the partitions named
// by lockSet and runs fn with a fresh copy read under the lock. If the task
// changed partition in between, the lock set is recomputed.
func (s *taskServiceImpl) withOwnedTask(
	ctx context.Context,
	op, id, ownerID string,
	lockSet func(*domain.Task) []domain.Partition,
	fn func(ctx context.Context, current *domain.Task) error,
) error {
	current, err := s.getOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		stale := false
		err := s.withPartitions(ctx, func(ctx context.Context) error {
			fresh, err := s.getOwned(ctx, id, ownerID)
			if err != nil {
				return err
			}
			if fresh.Partition() != current.Partition() {
				current = fresh
				stale = true
				return nil
			}
			return fn(ctx, fresh)
		}, lockSet(current)...)
		if err != nil || !stale {
			return err
		}

		s.log(ctx).Debug("task changed partition before lock, retrying",
			slog.String("operation", op),
			slog.String("task_id", id),
			slog.Int("attempt", attempt))
	}

	return ErrConcurrentModification
}

// getOwned fetches a task and enforces that ownerID owns it.
func (s *taskServiceImpl) getOwned(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required", domain.ErrInvalidID)
	}
	if ownerID == "" {
		return nil, domain.NewValidationError("email", "is required", domain.ErrEmptyOwnerID)
	}

	task, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*domain.Task, error) {
		return s.tasks.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if task.OwnerID != ownerID {
		s.log(ctx).Warn("ownership check failed", slog.String("task_id", id))
		return nil, ErrNotOwned
	}
	return task, nil
}

// withPartitions runs fn while holding the locks of every given partition.
func (s *taskServiceImpl) withPartitions(
	ctx context.Context,
	fn func(ctx context.Context) error,
	partitions ...domain.Partition,
) error {
	keys := make([]string, len(partitions))
	for i, p := range partitions {
		keys[i] = p.Key()
	}

	waitStarted := time.Now()
	unlock, err := s.locker.Lock(ctx, keys...)
	metrics.LockWait.Observe(time.Since(waitStarted).Seconds())
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}

// recompact re-reads p and rewrites every rank that is off. When movedID is
// set, that task is first placed at position.
func (s *taskServiceImpl) recompact(ctx context.Context, p domain.Partition, movedID string, position int) error {
	tasks, err := s.listPartition(ctx, p)
	if err != nil {
		return err
	}

	if movedID != "" && position > 0 {
		var found bool
		tasks, found = ranking.MoveTo(tasks, movedID, position)
		if !found {
			return fmt.Errorf("task %s missing from %s: %w", movedID, p, store.ErrPartialBatch)
		}
	}

	_, err = s.compact(ctx, p, tasks)
	return err
}

// compact writes the ranks 1..N for tasks in their given sequence, skipping
// tasks that already hold their rank, and leaves tasks carrying the written
// ranks. It returns the number of writes.
func (s *taskServiceImpl) compact(ctx context.Context, p domain.Partition, tasks []*domain.Task) (int, error) {
	changes := ranking.Changes(tasks)
	if len(changes) == 0 {
		return 0, nil
	}

	err := boundedErr(ctx, s.cfg.StoreTimeout, func(ctx context.Context) error {
		return s.tasks.ApplyOrders(ctx, p, changes)
	})
	if err != nil {
		return 0, err
	}

	ranking.Apply(tasks, changes)
	metrics.CompactionWrites.Add(float64(len(changes)))
	s.log(ctx).Debug("partition compacted",
		slog.String("partition", p.String()),
		slog.Int("writes", len(changes)))
	return len(changes), nil
}

// listPartition returns p's tasks in rank order with deterministic ties.
func (s *taskServiceImpl) listPartition(ctx context.Context, p domain.Partition) ([]*domain.Task, error) {
	tasks, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]*domain.Task, error) {
		return s.tasks.ListPartition(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	ranking.SortByOrder(tasks)
	return tasks, nil
}

func (s *taskServiceImpl) emit(ctx context.Context, eventType, ownerID, taskID string, partitions ...domain.Partition) {
	if s.emitter == nil {
		return
	}

	keys := make([]string, len(partitions))
	for i, p := range partitions {
		keys[i] = p.Key()
	}
	event := events.NewTaskChangedEvent(eventType, ownerID, taskID, keys...)
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.log(ctx).Warn("failed to emit task event",
			slog.String("event_type", eventType),
			slog.String("error", redact.Error(err)))
	}
}

func (s *taskServiceImpl) observe(operation string, started time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation), errors.Is(err, ErrNotOwned), store.IsNotFoundError(err):
		outcome = metrics.OutcomeRejected
	case IsRetryable(err):
		outcome = metrics.OutcomeRetryable
	default:
		outcome = metrics.OutcomeError
	}
	metrics.Observe(operation, outcome, started)
}

func (s *taskServiceImpl) logFailure(ctx context.Context, msg, id string, err error) {
	log := s.log(ctx)
	switch {
	case errors.Is(err, ErrNotOwned), store.IsNotFoundError(err), errors.Is(err, domain.ErrValidation):
		log.Debug(msg, slog.String("task_id", id), slog.String("error", err.Error()))
	default:
		log.Error(msg,
			slog.String("task_id", id),
			slog.Bool("retryable", IsRetryable(err)),
			slog.String("error", redact.Error(err)))
	}
}

func (s *taskServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}
