package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// UserService provides user-related operations
type UserService interface {
	// CreateUser registers a user. Registering an existing email is not an
	// error: the stored user is returned and created reports false.
	CreateUser(ctx context.Context, email, name, image string, isAdmin bool) (user *domain.User, created bool, err error)

	// GetUserByEmail retrieves a user by their email address
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore store.UserStore
	timeout   time.Duration
	logger    *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userStore store.UserStore, storeTimeout time.Duration, log *slog.Logger) UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserServiceImpl{
		userStore: userStore,
		timeout:   storeTimeout,
		logger:    log.With(slog.String("component", "user_service")),
	}
}

// CreateUser implements UserService.
func (s *UserServiceImpl) CreateUser(
	ctx context.Context,
	email, name, image string,
	isAdmin bool,
) (*domain.User, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(email, name, image, isAdmin, time.Now())
	if err != nil {
		log.Debug("rejected user registration", slog.String("error", err.Error()))
		return nil, false, err
	}

	created, err := bounded(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		return s.userStore.CreateIfAbsent(ctx, user)
	})
	if store.IsDuplicateError(err) {
		// A concurrent registration of the same email won the unique index.
		created, err = false, nil
	}
	if err != nil {
		log.Error("failed to save user", slog.String("error", redact.Error(err)))
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	if !created {
		log.Debug("user already exists", slog.String("user_id", user.ID))
		existing, err := s.GetUserByEmail(ctx, user.Email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	log.Info("user created successfully", slog.String("user_id", user.ID))
	return user, true, nil
}

// GetUserByEmail implements UserService.
func (s *UserServiceImpl) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := bounded(ctx, s.timeout, func(ctx context.Context) (*domain.User, error) {
		return s.userStore.GetByEmail(ctx, email)
	})
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("user not found by email")
		} else {
			log.Error("failed to retrieve user by email", slog.String("error", redact.Error(err)))
		}
		return nil, fmt.Errorf("failed to retrieve user by email: %w", err)
	}

	return user, nil
}
