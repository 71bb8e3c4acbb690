package store

import (
	"context"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// CreateIfAbsent saves user unless a user with the same email exists.
	// It reports whether a new record was created and fills in user.ID
	// either way.
	CreateIfAbsent(ctx context.Context, user *domain.User) (bool, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
