package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/domain/ranking"
	"github.com/taskmaster-hq/taskmaster-api/internal/events"
	"github.com/taskmaster-hq/taskmaster-api/internal/mocks"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/cache"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/lock"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/memory"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

const (
	alice = "alice@example.com"
	bob   = "bob@example.com"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	svc    service.TaskService
	store  *memory.TaskStore
	events *recordingHandler
}

type recordingHandler struct {
	mu     sync.Mutex
	events []*events.TaskChangedEvent
}

func (h *recordingHandler) HandleEvent(_ context.Context, e *events.TaskChangedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandler) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

func newFixture(t *testing.T, cfg service.TaskServiceConfig) *fixture {
	t.Helper()

	st := memory.NewTaskStore(testLogger)
	emitter := events.NewInMemoryEventEmitter(testLogger)
	rec := &recordingHandler{}
	emitter.RegisterHandler(rec)

	svc, err := service.NewTaskService(st, lock.NewLocal(5*time.Second), emitter, nil, cfg, testLogger)
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, events: rec}
}

func (f *fixture) partition(t *testing.T, owner, category string) []*domain.Task {
	t.Helper()
	tasks, err := f.store.ListPartition(context.Background(), domain.Partition{OwnerID: owner, Category: category})
	require.NoError(t, err)
	return tasks
}

func (f *fixture) orders(t *testing.T, owner, category string) []int {
	t.Helper()
	tasks := f.partition(t, owner, category)
	out := make([]int, len(tasks))
	for i, task := range tasks {
		out[i] = task.Order
	}
	return out
}

func (f *fixture) titles(t *testing.T, owner, category string) []string {
	t.Helper()
	tasks := f.partition(t, owner, category)
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return out
}

func (f *fixture) insert(t *testing.T, owner, category, title string) *domain.Task {
	t.Helper()
	task, err := f.svc.Insert(context.Background(), owner, category, title, "")
	require.NoError(t, err)
	return task
}

func (f *fixture) requireContiguous(t *testing.T, owner string, categories ...string) {
	t.Helper()
	for _, c := range categories {
		p := domain.Partition{OwnerID: owner, Category: c}
		require.NoError(t, ranking.CheckContiguous(p, f.partition(t, owner, c)))
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestNewTaskService_RequiresDependencies(t *testing.T) {
	_, err := service.NewTaskService(nil, lock.NewLocal(time.Second), nil, nil, service.TaskServiceConfig{}, nil)
	assert.Error(t, err)

	_, err = service.NewTaskService(memory.NewTaskStore(nil), nil, nil, nil, service.TaskServiceConfig{}, nil)
	assert.Error(t, err)
}

func TestInsert(t *testing.T) {
	t.Run("first task in empty partition gets order 1", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})

		task, err := f.svc.Insert(context.Background(), "alice", "todo", "Buy milk", "")
		require.NoError(t, err)
		assert.Equal(t, 1, task.Order)
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, "", task.Description)
		assert.Equal(t, []string{events.TaskCreated}, f.events.types())
	})

	t.Run("appends at count plus one", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		f.insert(t, alice, "todo", "a")
		f.insert(t, alice, "todo", "b")
		c := f.insert(t, alice, "todo", "c")

		assert.Equal(t, 3, c.Order)
		assert.Equal(t, []string{"a", "b", "c"}, f.titles(t, alice, "todo"))
	})

	t.Run("ranks are partition local", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		f.insert(t, alice, "todo", "a")
		other := f.insert(t, alice, "done", "b")
		bobs := f.insert(t, bob, "todo", "c")

		assert.Equal(t, 1, other.Order)
		assert.Equal(t, 1, bobs.Order)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		ctx := context.Background()

		_, err := f.svc.Insert(ctx, alice, "todo", "", "")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, err, domain.ErrEmptyTitle)

		_, err = f.svc.Insert(ctx, alice, "", "title", "")
		assert.ErrorIs(t, err, domain.ErrEmptyCategory)

		_, err = f.svc.Insert(ctx, "", "todo", "title", "")
		assert.ErrorIs(t, err, domain.ErrEmptyOwnerID)

		assert.Empty(t, f.partition(t, alice, "todo"))
		assert.Empty(t, f.events.types())
	})

	t.Run("repairs an inconsistent partition before appending", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		for i, order := range []int{1, 1, 5} {
			require.NoError(t, f.store.Insert(ctx, &domain.Task{
				OwnerID: alice, Category: "todo", Title: fmt.Sprintf("seed%d", i),
				Order: order, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		task := f.insert(t, alice, "todo", "new")
		assert.Equal(t, 4, task.Order)
		assert.Equal(t, []int{1, 2, 3, 4}, f.orders(t, alice, "todo"))
		assert.Equal(t, []string{"seed0", "seed1", "seed2", "new"}, f.titles(t, alice, "todo"))
	})
}

func TestDelete(t *testing.T) {
	t.Run("deleting the middle task closes the gap", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		f.insert(t, alice, "todo", "first")
		middle := f.insert(t, alice, "todo", "second")
		f.insert(t, alice, "todo", "third")

		require.NoError(t, f.svc.Delete(context.Background(), middle.ID, alice))

		assert.Equal(t, []int{1, 2}, f.orders(t, alice, "todo"))
		assert.Equal(t, []string{"first", "third"}, f.titles(t, alice, "todo"))
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		err := f.svc.Delete(context.Background(), "missing", alice)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.False(t, service.IsRetryable(err))
	})

	t.Run("other owner is rejected and nothing changes", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		task := f.insert(t, alice, "todo", "mine")

		err := f.svc.Delete(context.Background(), task.ID, bob)
		assert.ErrorIs(t, err, service.ErrNotOwned)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Equal(t, []string{"mine"}, f.titles(t, alice, "todo"))
		assert.Equal(t, []string{events.TaskCreated}, f.events.types())
	})
}

func TestUpdate(t *testing.T) {
	t.Run("category move appends and recompacts both partitions", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		f.insert(t, alice, "todo", "one")
		moving := f.insert(t, alice, "todo", "two")
		f.insert(t, alice, "todo", "three")

		updated, err := f.svc.Update(context.Background(), moving.ID, alice, domain.TaskUpdate{Category: strPtr("done")})
		require.NoError(t, err)

		assert.Equal(t, "done", updated.Category)
		assert.Equal(t, 1, updated.Order)
		assert.Equal(t, []string{"one", "three"}, f.titles(t, alice, "todo"))
		assert.Equal(t, []int{1, 2}, f.orders(t, alice, "todo"))
	})

	t.Run("category move conserves total count", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		var todo []*domain.Task
		for i := 0; i < 4; i++ {
			todo = append(todo, f.insert(t, alice, "todo", fmt.Sprintf("t%d", i)))
		}
		f.insert(t, alice, "done", "d0")
		f.insert(t, alice, "done", "d1")
		before := len(f.partition(t, alice, "todo")) + len(f.partition(t, alice, "done"))

		updated, err := f.svc.Update(context.Background(), todo[0].ID, alice, domain.TaskUpdate{Category: strPtr("done")})
		require.NoError(t, err)

		after := len(f.partition(t, alice, "todo")) + len(f.partition(t, alice, "done"))
		assert.Equal(t, before, after)
		assert.Equal(t, 3, updated.Order)
		f.requireContiguous(t, alice, "todo", "done")
	})

	t.Run("category move with explicit position", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		moving := f.insert(t, alice, "todo", "mover")
		f.insert(t, alice, "done", "x")
		f.insert(t, alice, "done", "y")

		updated, err := f.svc.Update(context.Background(), moving.ID, alice,
			domain.TaskUpdate{Category: strPtr("done"), Order: intPtr(1)})
		require.NoError(t, err)

		assert.Equal(t, 1, updated.Order)
		assert.Equal(t, []string{"mover", "x", "y"}, f.titles(t, alice, "done"))
		assert.Empty(t, f.partition(t, alice, "todo"))
	})

	t.Run("plain field update leaves order alone", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		f.insert(t, alice, "todo", "a")
		b := f.insert(t, alice, "todo", "b")

		updated, err := f.svc.Update(context.Background(), b.ID, alice,
			domain.TaskUpdate{Title: strPtr("B"), Description: strPtr("details")})
		require.NoError(t, err)

		assert.Equal(t, "B", updated.Title)
		assert.Equal(t, "details", updated.Description)
		assert.Equal(t, 2, updated.Order)
	})

	t.Run("same category is not a move", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		a := f.insert(t, alice, "todo", "a")
		f.insert(t, alice, "todo", "b")

		updated, err := f.svc.Update(context.Background(), a.ID, alice, domain.TaskUpdate{Category: strPtr("todo")})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Order)
	})

	t.Run("explicit order shifts neighbours", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		f.insert(t, alice, "todo", "a")
		f.insert(t, alice, "todo", "b")
		c := f.insert(t, alice, "todo", "c")

		updated, err := f.svc.Update(context.Background(), c.ID, alice, domain.TaskUpdate{Order: intPtr(1)})
		require.NoError(t, err)

		assert.Equal(t, 1, updated.Order)
		assert.Equal(t, []string{"c", "a", "b"}, f.titles(t, alice, "todo"))
		assert.Equal(t, []int{1, 2, 3}, f.orders(t, alice, "todo"))
	})

	t.Run("explicit order past the end is clamped", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		a := f.insert(t, alice, "todo", "a")
		f.insert(t, alice, "todo", "b")

		updated, err := f.svc.Update(context.Background(), a.ID, alice, domain.TaskUpdate{Order: intPtr(99)})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Order)
		assert.Equal(t, []string{"b", "a"}, f.titles(t, alice, "todo"))
	})

	t.Run("other owner is rejected and nothing changes", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		task := f.insert(t, alice, "todo", "mine")

		_, err := f.svc.Update(context.Background(), task.ID, bob, domain.TaskUpdate{Category: strPtr("stolen")})
		assert.ErrorIs(t, err, service.ErrNotOwned)

		assert.Equal(t, []string{"mine"}, f.titles(t, alice, "todo"))
		assert.Empty(t, f.partition(t, alice, "stolen"))
		assert.Empty(t, f.partition(t, bob, "stolen"))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		task := f.insert(t, alice, "todo", "a")
		ctx := context.Background()

		_, err := f.svc.Update(ctx, task.ID, alice, domain.TaskUpdate{})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.svc.Update(ctx, task.ID, alice, domain.TaskUpdate{Title: strPtr("")})
		assert.ErrorIs(t, err, domain.ErrEmptyTitle)

		_, err = f.svc.Update(ctx, task.ID, alice, domain.TaskUpdate{Order: intPtr(0)})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		_, err := f.svc.Update(context.Background(), "missing", alice, domain.TaskUpdate{Title: strPtr("x")})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestReorderBulk(t *testing.T) {
	t.Run("applies owned items and skips foreign ones", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{VerifyReorder: true})
		t1 := f.insert(t, alice, "todo", "T1")
		t2 := f.insert(t, alice, "todo", "T2")
		foreign := f.insert(t, bob, "todo", "B1")

		result, err := f.svc.ReorderBulk(context.Background(), alice, []domain.ReorderItem{
			{ID: t1.ID, Category: "todo", Order: 2},
			{ID: t2.ID, Category: "todo", Order: 1},
			{ID: foreign.ID, Category: "todo", Order: 5},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Applied)
		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, result.Repaired)
		assert.Equal(t, domain.ReorderNotMatched, result.Items[2].Reason)
		assert.False(t, result.Items[2].Applied)
		assert.Equal(t, domain.ReorderApplied, result.Items[0].Reason)

		assert.Equal(t, []string{"T2", "T1"}, f.titles(t, alice, "todo"))

		got, err := f.store.GetByID(context.Background(), foreign.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Order)
	})

	t.Run("stale category is skipped", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		t1 := f.insert(t, alice, "done", "T1")

		result, err := f.svc.ReorderBulk(context.Background(), alice, []domain.ReorderItem{
			{ID: t1.ID, Category: "todo", Order: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Applied)
		assert.Equal(t, []int{1}, f.orders(t, alice, "done"))
		assert.NotContains(t, f.events.types(), events.TasksReordered)
	})

	t.Run("non-permutation is repaired when verification is on", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{VerifyReorder: true})
		a := f.insert(t, alice, "todo", "a")
		b := f.insert(t, alice, "todo", "b")
		f.insert(t, alice, "todo", "c")

		result, err := f.svc.ReorderBulk(context.Background(), alice, []domain.ReorderItem{
			{ID: a.ID, Category: "todo", Order: 7},
			{ID: b.ID, Category: "todo", Order: 5},
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"todo"}, result.Repaired)
		assert.Equal(t, []int{1, 2, 3}, f.orders(t, alice, "todo"))
		assert.Equal(t, []string{"c", "b", "a"}, f.titles(t, alice, "todo"))
	})

	t.Run("submitted ranks are trusted when verification is off", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{VerifyReorder: false})
		a := f.insert(t, alice, "todo", "a")
		f.insert(t, alice, "todo", "b")

		result, err := f.svc.ReorderBulk(context.Background(), alice, []domain.ReorderItem{
			{ID: a.ID, Category: "todo", Order: 2},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Repaired)
		assert.Equal(t, []int{2, 2}, f.orders(t, alice, "todo"))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, service.TaskServiceConfig{})
		ctx := context.Background()

		_, err := f.svc.ReorderBulk(ctx, alice, nil)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.svc.ReorderBulk(ctx, alice, []domain.ReorderItem{{Category: "todo", Order: 1}})
		assert.ErrorIs(t, err, domain.ErrInvalidID)

		_, err = f.svc.ReorderBulk(ctx, alice, []domain.ReorderItem{{ID: "x", Category: "todo"}})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)

		_, err = f.svc.ReorderBulk(ctx, "", []domain.ReorderItem{{ID: "x", Category: "todo", Order: 1}})
		assert.ErrorIs(t, err, domain.ErrEmptyOwnerID)
	})
}

func TestListTasks(t *testing.T) {
	f := newFixture(t, service.TaskServiceConfig{})
	f.insert(t, alice, "todo", "t1")
	f.insert(t, alice, "done", "d1")
	f.insert(t, alice, "todo", "t2")
	f.insert(t, bob, "todo", "b1")

	tasks, err := f.svc.ListTasks(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "d1", tasks[0].Title)
	assert.Equal(t, "t1", tasks[1].Title)
	assert.Equal(t, "t2", tasks[2].Title)

	_, err = f.svc.ListTasks(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]*domain.Task
	generations map[string]int64
	hits        int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]*domain.Task{}, generations: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, owner string) ([]*domain.Task, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, ok := c.entries[owner]
	if ok {
		c.hits++
	}
	return tasks, c.generations[owner], ok
}

func (c *mapCache) Set(_ context.Context, owner string, generation int64, tasks []*domain.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[owner] != generation {
		return
	}
	c.entries[owner] = tasks
}

func (c *mapCache) HandleEvent(_ context.Context, e *events.TaskChangedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[e.OwnerID]++
	delete(c.entries, e.OwnerID)
	return nil
}

func TestListTasks_ReadsThroughCache(t *testing.T) {
	st := memory.NewTaskStore(testLogger)
	listCache := newMapCache()
	emitter := events.NewInMemoryEventEmitter(testLogger)
	emitter.RegisterHandler(listCache)

	svc, err := service.NewTaskService(st, lock.NewLocal(time.Second), emitter, listCache, service.TaskServiceConfig{}, testLogger)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Insert(ctx, alice, "todo", "a", "")
	require.NoError(t, err)

	first, err := svc.ListTasks(ctx, alice)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 0, listCache.hits)

	_, err = svc.ListTasks(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, listCache.hits)

	_, err = svc.Insert(ctx, alice, "todo", "b", "")
	require.NoError(t, err)

	after, err := svc.ListTasks(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, after, 2, "insert must evict the cached list")
}

// pausingListStore holds ListByOwner after it has read its result until
// release is closed, once.
type pausingListStore struct {
	*memory.TaskStore
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *pausingListStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	tasks, err := s.TaskStore.ListByOwner(ctx, ownerID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return tasks, err
}

func TestListTasks_ReadBeforeWriteIsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	listCache := cache.NewTaskListCache(client, time.Minute, testLogger)
	emitter := events.NewInMemoryEventEmitter(testLogger)
	emitter.RegisterHandler(listCache)

	st := &pausingListStore{
		TaskStore: memory.NewTaskStore(testLogger),
		read:      make(chan struct{}),
		release:   make(chan struct{}),
	}
	svc, err := service.NewTaskService(st, lock.NewLocal(time.Second), emitter, listCache, service.TaskServiceConfig{}, testLogger)
	require.NoError(t, err)
	ctx := context.Background()

	type listResult struct {
		tasks []*domain.Task
		err   error
	}
	done := make(chan listResult, 1)
	go func() {
		tasks, err := svc.ListTasks(ctx, alice)
		done <- listResult{tasks: tasks, err: err}
	}()

	<-st.read
	_, err = svc.Insert(ctx, alice, "todo", "new", "")
	require.NoError(t, err)
	close(st.release)

	early := <-done
	require.NoError(t, early.err)
	assert.Empty(t, early.tasks)

	tasks, err := svc.ListTasks(ctx, alice)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "new", tasks[0].Title)

	cached, err := svc.ListTasks(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestConcurrentInsertsProduceContiguousRanks(t *testing.T) {
	f := newFixture(t, service.TaskServiceConfig{StoreTimeout: time.Second})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Insert(context.Background(), alice, "todo", fmt.Sprintf("task-%d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	orders := f.orders(t, alice, "todo")
	require.Len(t, orders, n)
	for i, o := range orders {
		assert.Equal(t, i+1, o)
	}
}

func TestConcurrentMixedOperationsKeepPartitionsContiguous(t *testing.T) {
	f := newFixture(t, service.TaskServiceConfig{StoreTimeout: time.Second})
	ctx := context.Background()

	var seeded []*domain.Task
	for i := 0; i < 20; i++ {
		seeded = append(seeded, f.insert(t, alice, "todo", fmt.Sprintf("seed-%d", i)))
	}

	var wg sync.WaitGroup
	for i, task := range seeded {
		wg.Add(1)
		go func(i int, task *domain.Task) {
			defer wg.Done()
			var err error
			switch i % 4 {
			case 0:
				err = f.svc.Delete(ctx, task.ID, alice)
			case 1:
				_, err = f.svc.Update(ctx, task.ID, alice, domain.TaskUpdate{Category: strPtr("done")})
			case 2:
				_, err = f.svc.Update(ctx, task.ID, alice, domain.TaskUpdate{Order: intPtr(1)})
			default:
				_, err = f.svc.Insert(ctx, alice, "done", "extra", "")
			}
			assert.NoError(t, err)
		}(i, task)
	}
	wg.Wait()

	f.requireContiguous(t, alice, "todo", "done")
	assert.Len(t, f.partition(t, alice, "todo"), 10)
	assert.Len(t, f.partition(t, alice, "done"), 10)
}

func TestRandomOperationsKeepPartitionsContiguous(t *testing.T) {
	f := newFixture(t, service.TaskServiceConfig{VerifyReorder: true})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	categories := []string{"todo", "doing", "done"}

	var live []string
	for step := 0; step < 200; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			task := f.insert(t, alice, categories[rng.Intn(3)], fmt.Sprintf("s%d", step))
			live = append(live, task.ID)
		case op == 1:
			i := rng.Intn(len(live))
			require.NoError(t, f.svc.Delete(ctx, live[i], alice))
			live = append(live[:i], live[i+1:]...)
		case op == 2:
			_, err := f.svc.Update(ctx, live[rng.Intn(len(live))], alice,
				domain.TaskUpdate{Category: strPtr(categories[rng.Intn(3)])})
			require.NoError(t, err)
		default:
			_, err := f.svc.Update(ctx, live[rng.Intn(len(live))], alice,
				domain.TaskUpdate{Order: intPtr(1 + rng.Intn(5))})
			require.NoError(t, err)
		}

		f.requireContiguous(t, alice, categories...)
	}
}

func newMockService(t *testing.T, st store.TaskStore, locker lock.Locker) service.TaskService {
	t.Helper()
	if locker == nil {
		locker = lock.NewLocal(time.Second)
	}
	svc, err := service.NewTaskService(st, locker, nil, nil,
		service.TaskServiceConfig{StoreTimeout: 20 * time.Millisecond}, testLogger)
	require.NoError(t, err)
	return svc
}

func TestDelete_TornCompactionIsRetryable(t *testing.T) {
	st := new(mocks.TestifyMockTaskStore)
	p := domain.Partition{OwnerID: alice, Category: "todo"}
	task := &domain.Task{ID: "t2", OwnerID: alice, Category: "todo", Title: "b", Order: 2}

	st.On("GetByID", mock.Anything, "t2").Return(task, nil)
	st.On("Delete", mock.Anything, "t2", alice).Return(nil)
	st.On("ListPartition", mock.Anything, p).Return([]*domain.Task{
		{ID: "t1", OwnerID: alice, Category: "todo", Order: 1},
		{ID: "t3", OwnerID: alice, Category: "todo", Order: 3},
	}, nil)
	st.On("ApplyOrders", mock.Anything, p, []domain.OrderAssignment{{TaskID: "t3", Order: 2}}).
		Return(store.NewStoreError("task", "apply orders", "0 of 1 matched", store.ErrPartialBatch))

	err := newMockService(t, st, nil).Delete(context.Background(), "t2", alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPartialBatch)
	assert.True(t, service.IsRetryable(err))

	var svcErr *service.TaskServiceError
	assert.ErrorAs(t, err, &svcErr)
	st.AssertExpectations(t)
}

func TestStoreTimeoutIsRetryable(t *testing.T) {
	st := new(mocks.TestifyMockTaskStore)
	st.On("GetByID", mock.Anything, "t1").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	_, err := newMockService(t, st, nil).Update(context.Background(), "t1", alice, domain.TaskUpdate{Title: strPtr("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.True(t, service.IsRetryable(err))
	assert.NotErrorIs(t, err, store.ErrTaskNotFound)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, ...string) (lock.Unlock, error) {
	return nil, fmt.Errorf("%w: test", lock.ErrLockTimeout)
}

func TestLockTimeoutIsRetryable(t *testing.T) {
	st := new(mocks.TestifyMockTaskStore)

	_, err := newMockService(t, st, failingLocker{}).Insert(context.Background(), alice, "todo", "a", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.True(t, service.IsRetryable(err))
	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestUpdate_RelocksWhenTaskMovesBeforeLock(t *testing.T) {
	st := new(mocks.TestifyMockTaskStore)
	before := &domain.Task{ID: "t1", OwnerID: alice, Category: "todo", Title: "a", Order: 1}
	moved := &domain.Task{ID: "t1", OwnerID: alice, Category: "done", Title: "a", Order: 1}
	renamed := &domain.Task{ID: "t1", OwnerID: alice, Category: "done", Title: "renamed", Order: 1}

	st.On("GetByID", mock.Anything, "t1").Return(before, nil).Once()
	st.On("GetByID", mock.Anything, "t1").Return(moved, nil).Twice()
	st.On("Update", mock.Anything, "t1", alice, domain.TaskUpdate{Title: strPtr("renamed")}).Return(nil).Once()
	st.On("GetByID", mock.Anything, "t1").Return(renamed, nil).Once()

	got, err := newMockService(t, st, nil).Update(context.Background(), "t1", alice, domain.TaskUpdate{Title: strPtr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	st.AssertExpectations(t)
}
