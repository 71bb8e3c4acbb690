package service

import (
	"errors"
	"fmt"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/lock"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// Common service errors. Callers check them with errors.Is; the API layer
// maps them to status codes.
var (
	// ErrNotOwned indicates the task belongs to someone other than the caller.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = fmt.Errorf("task is owned by another user: %w", domain.ErrUnauthorized)

	// ErrConcurrentModification is returned when a task kept changing
	// partition while an operation was trying to lock it.
	ErrConcurrentModification = errors.New("task was modified concurrently")
)

// TaskServiceError wraps unexpected errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g. "insert", "reorder")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// It returns known sentinel errors directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNotOwned):
		return ErrNotOwned
	case errors.Is(err, domain.ErrValidation):
		return err
	case store.IsNotFoundError(err):
		return store.ErrTaskNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// IsRetryable reports whether the whole logical operation may be retried.
// Validation, ownership and not-found results are definitive.
func IsRetryable(err error) bool {
	return store.IsRetryableError(err) ||
		errors.Is(err, lock.ErrLockTimeout) ||
		errors.Is(err, lock.ErrLockUnavailable) ||
		errors.Is(err, ErrConcurrentModification)
}
