package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the task service.
const (
	TaskCreated    = "task.created"
	TaskUpdated    = "task.updated"
	TaskDeleted    = "task.deleted"
	TasksReordered = "tasks.reordered"
)

// TaskChangedEvent describes a committed mutation of one owner's tasks.
type TaskChangedEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Task* constants
	Type string `json:"type"`

	// OwnerID is the owner whose task list changed
	OwnerID string `json:"owner_id"`

	// TaskID is empty for bulk operations
	TaskID string `json:"task_id,omitempty"`

	// Partitions lists the partition keys whose ranks were touched
	Partitions []string `json:"partitions"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTaskChangedEvent creates a TaskChangedEvent stamped with a fresh ID.
func NewTaskChangedEvent(eventType, ownerID, taskID string, partitions ...string) *TaskChangedEvent {
	return &TaskChangedEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OwnerID:    ownerID,
		TaskID:     taskID,
		Partitions: partitions,
		CreatedAt:  time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskChangedEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskChangedEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskChangedEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskChangedEvent) error {
	return f(ctx, event)
}
