package domain

import (
	"errors"
	"fmt"
	"time"
)

// Task validation errors
var (
	ErrEmptyOwnerID  = errors.New("owner ID cannot be empty")
	ErrEmptyTitle    = errors.New("title cannot be empty")
	ErrEmptyCategory = errors.New("category cannot be empty")
	ErrInvalidOrder  = errors.New("order must be a positive integer")
)

// Task is a single tracked item. Order is its rank inside the partition
// formed by OwnerID and Category.
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTask builds an unranked task for the given owner and category. The ID is
// left empty because identifiers are assigned by the store on insert.
func NewTask(ownerID, category, title, description string, now time.Time) (*Task, error) {
	task := &Task{
		OwnerID:     ownerID,
		Category:    category,
		Title:       title,
		Description: description,
		CreatedAt:   now.UTC(),
	}

	if err := task.validateFields(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks that a persisted task carries every required field.
func (t *Task) Validate() error {
	if err := t.validateFields(); err != nil {
		return err
	}
	if t.Order < 1 {
		return NewValidationError("order", "must be a positive integer", ErrInvalidOrder)
	}
	return nil
}

func (t *Task) validateFields() error {
	if t.OwnerID == "" {
		return NewValidationError("email", "is required", ErrEmptyOwnerID)
	}
	if t.Title == "" {
		return NewValidationError("title", "is required", ErrEmptyTitle)
	}
	if t.Category == "" {
		return NewValidationError("category", "is required", ErrEmptyCategory)
	}
	return nil
}

// Partition returns the ordering scope of the task.
func (t *Task) Partition() Partition {
	return PartitionOf(t)
}

// Clone returns a copy that can be mutated without affecting the receiver.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// TaskUpdate is a field-level patch for a task. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Order       *int
}

// Validate rejects patches that would blank a required field or set a
// non-positive rank.
func (u TaskUpdate) Validate() error {
	if u.Title != nil && *u.Title == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyTitle)
	}
	if u.Category != nil && *u.Category == "" {
		return NewValidationError("category", "cannot be empty", ErrEmptyCategory)
	}
	if u.Order != nil && *u.Order < 1 {
		return NewValidationError("order", "must be a positive integer", ErrInvalidOrder)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil && u.Order == nil
}

// MovesCategory reports whether applying the patch to t changes its partition.
func (u TaskUpdate) MovesCategory(t *Task) bool {
	return u.Category != nil && *u.Category != t.Category
}

// WithoutOrder returns a copy of the patch with the rank field cleared.
func (u TaskUpdate) WithoutOrder() TaskUpdate {
	u.Order = nil
	return u
}

// Apply merges the patch into t.
func (u TaskUpdate) Apply(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Order != nil {
		t.Order = *u.Order
	}
}

// OrderAssignment sets the rank of one task.
type OrderAssignment struct {
	TaskID string
	Order  int
}

// String renders the assignment for logs.
func (a OrderAssignment) String() string {
	return fmt.Sprintf("%s=%d", a.TaskID, a.Order)
}
