package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// CreateIfAbsent implements store.UserStore.CreateIfAbsent. It relies on the
// unique email constraint, so concurrent creates of one email insert once.
func (s *PostgresUserStore) CreateIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		return false, err
	}

	id := uuid.New()
	var inserted uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, image, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`,
		id, user.Email, user.Name, user.Image, user.IsAdmin, user.CreatedAt,
	).Scan(&inserted)

	switch {
	case err == nil:
		user.ID = inserted.String()
		log.Info("user created", slog.String("user_id", user.ID))
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, getErr := s.GetByEmail(ctx, user.Email)
		if getErr != nil {
			return false, getErr
		}
		user.ID = existing.ID
		return false, nil
	default:
		log.Error("failed to create user", slog.String("error", redact.Error(err)))
		return false, store.NewStoreError("user", "create", "failed to insert user", MapError(err))
	}
}

// GetByEmail implements store.UserStore.GetByEmail
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var (
		user domain.User
		id   uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, image, is_admin, created_at
		FROM users
		WHERE email = $1`, email,
	).Scan(&id, &user.Email, &user.Name, &user.Image, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, store.NewStoreError("user", "get", "failed to get user by email", MapError(err))
	}
	user.ID = id.String()
	return &user, nil
}
