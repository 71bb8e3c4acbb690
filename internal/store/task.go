package store

import (
	"context"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

// TaskStore defines the persistence operations the ordering service needs.
// Every backend must support the filter shapes used here: by ID, by owner,
// and by (owner, category).
type TaskStore interface {
	// Insert persists a new task and assigns its ID.
	Insert(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID.
	// Returns ErrTaskNotFound if the task does not exist and domain.ErrInvalidID
	// if the ID is malformed for this backend.
	GetByID(ctx context.Context, id string) (*domain.Task, error)

	// ListByOwner returns every task owned by ownerID, sorted by category and
	// then order ascending.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error)

	// ListPartition returns the tasks of one partition sorted by order
	// ascending.
	ListPartition(ctx context.Context, p domain.Partition) ([]*domain.Task, error)

	// CountPartition returns the number of ranked tasks in a partition.
	CountPartition(ctx context.Context, p domain.Partition) (int, error)

	// Update applies a field patch to the task matching both id and ownerID.
	// Returns ErrTaskNotFound when no such task exists.
	Update(ctx context.Context, id, ownerID string, update domain.TaskUpdate) error

	// Delete removes the task matching both id and ownerID.
	// Returns ErrTaskNotFound when no such task exists.
	Delete(ctx context.Context, id, ownerID string) error

	// ApplyOrders writes a batch of rank assignments to tasks of partition p.
	// Each write is filtered on the task ID, owner and category. The batch is
	// all-or-nothing where the backend supports it; a batch in which any
	// assignment matched no task returns ErrPartialBatch.
	ApplyOrders(ctx context.Context, p domain.Partition, assignments []domain.OrderAssignment) error

	// SetOrdersIf sets each item's order only where the task ID, ownerID and
	// item category all match. The returned slice reports per item whether
	// a task matched. Non-matching items are not an error.
	SetOrdersIf(ctx context.Context, ownerID string, items []domain.ReorderItem) ([]bool, error)
}
