package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// TestifyMockTaskStore is a mock of store.TaskStore interface for use with testify/mock
type TestifyMockTaskStore struct {
	mock.Mock
}

var _ store.TaskStore = (*TestifyMockTaskStore)(nil)

func (m *TestifyMockTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *TestifyMockTaskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if task, ok := args.Get(0).(*domain.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TestifyMockTaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	args := m.Called(ctx, ownerID)
	tasks, _ := args.Get(0).([]*domain.Task)
	return tasks, args.Error(1)
}

func (m *TestifyMockTaskStore) ListPartition(ctx context.Context, p domain.Partition) ([]*domain.Task, error) {
	args := m.Called(ctx, p)
	tasks, _ := args.Get(0).([]*domain.Task)
	return tasks, args.Error(1)
}

func (m *TestifyMockTaskStore) CountPartition(ctx context.Context, p domain.Partition) (int, error) {
	args := m.Called(ctx, p)
	return args.Int(0), args.Error(1)
}

func (m *TestifyMockTaskStore) Update(ctx context.Context, id, ownerID string, update domain.TaskUpdate) error {
	return m.Called(ctx, id, ownerID, update).Error(0)
}

func (m *TestifyMockTaskStore) Delete(ctx context.Context, id, ownerID string) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

func (m *TestifyMockTaskStore) ApplyOrders(
	ctx context.Context,
	p domain.Partition,
	assignments []domain.OrderAssignment,
) error {
	return m.Called(ctx, p, assignments).Error(0)
}

func (m *TestifyMockTaskStore) SetOrdersIf(
	ctx context.Context,
	ownerID string,
	items []domain.ReorderItem,
) ([]bool, error) {
	args := m.Called(ctx, ownerID, items)
	matched, _ := args.Get(0).([]bool)
	return matched, args.Error(1)
}
