package mocks

import (
	"context"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
)

// MockTaskService implements service.TaskService with function fields.
// Calling a method whose field is nil panics.
type MockTaskService struct {
	ListTasksFn   func(ctx context.Context, ownerID string) ([]*domain.Task, error)
	InsertFn      func(ctx context.Context, ownerID, category, title, description string) (*domain.Task, error)
	UpdateFn      func(ctx context.Context, id, ownerID string, update domain.TaskUpdate) (*domain.Task, error)
	DeleteFn      func(ctx context.Context, id, ownerID string) error
	ReorderBulkFn func(ctx context.Context, ownerID string, items []domain.ReorderItem) (*domain.ReorderResult, error)
}

var _ service.TaskService = (*MockTaskService)(nil)

func (m *MockTaskService) ListTasks(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	return m.ListTasksFn(ctx, ownerID)
}

func (m *MockTaskService) Insert(
	ctx context.Context,
	ownerID, category, title, description string,
) (*domain.Task, error) {
	return m.InsertFn(ctx, ownerID, category, title, description)
}

func (m *MockTaskService) Update(
	ctx context.Context,
	id, ownerID string,
	update domain.TaskUpdate,
) (*domain.Task, error) {
	return m.UpdateFn(ctx, id, ownerID, update)
}

func (m *MockTaskService) Delete(ctx context.Context, id, ownerID string) error {
	return m.DeleteFn(ctx, id, ownerID)
}

func (m *MockTaskService) ReorderBulk(
	ctx context.Context,
	ownerID string,
	items []domain.ReorderItem,
) (*domain.ReorderResult, error) {
	return m.ReorderBulkFn(ctx, ownerID, items)
}
