package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

const taskColumns = `id, owner_id, category, title, description, "order", created_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// inTx runs fn inside a transaction, or directly when the store is already
// bound to one.
func (s *PostgresTaskStore) inTx(ctx context.Context, fn func(db store.DBTX) error) error {
	if db, ok := s.db.(*sql.DB); ok {
		return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return fn(tx)
		})
	}
	return fn(s.db)
}

func parseTaskID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("id", "is not a valid task ID", domain.ErrInvalidID)
	}
	return parsed, nil
}

// Insert implements store.TaskStore.Insert
func (s *PostgresTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during insert", slog.String("error", err.Error()))
		return err
	}

	id := uuid.New()
	query := `INSERT INTO tasks (` + taskColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		id, task.OwnerID, task.Category, task.Title, task.Description, task.Order, task.CreatedAt)
	if err != nil {
		log.Error("failed to insert task", slog.String("error", redact.Error(err)))
		return store.NewStoreError("task", "insert", "failed to insert task", MapError(err))
	}

	task.ID = id.String()
	log.Debug("task inserted",
		slog.String("task_id", task.ID),
		slog.Int("order", task.Order))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	taskID, err := parseTaskID(id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task by ID",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", id))
		return nil, store.NewStoreError("task", "get", "failed to get task", MapError(err))
	}
	return task, nil
}

// ListByOwner implements store.TaskStore.ListByOwner
func (s *PostgresTaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1
		ORDER BY category, "order", created_at, id`
	return s.query(ctx, "list", query, ownerID)
}

// ListPartition implements store.TaskStore.ListPartition
func (s *PostgresTaskStore) ListPartition(ctx context.Context, p domain.Partition) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND category = $2
		ORDER BY "order", created_at, id`
	return s.query(ctx, "list partition", query, p.OwnerID, p.Category)
}

func (s *PostgresTaskStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query tasks",
			slog.String("operation", op),
			slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("task", op, "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", op, "scan failed", MapError(err))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", op, "row iteration failed", MapError(err))
	}
	return tasks, nil
}

// CountPartition implements store.TaskStore.CountPartition
func (s *PostgresTaskStore) CountPartition(ctx context.Context, p domain.Partition) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner_id = $1 AND category = $2`,
		p.OwnerID, p.Category).Scan(&n)
	if err != nil {
		return 0, store.NewStoreError("task", "count", "failed to count partition", MapError(err))
	}
	return n, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, id, ownerID string, update domain.TaskUpdate) error {
	taskID, err := parseTaskID(id)
	if err != nil {
		return err
	}
	if update.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.Order != nil {
		add(`"order"`, *update.Order)
	}
	args = append(args, taskID, ownerID)

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND owner_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", id))
		return store.NewStoreError("task", "update", "failed to update task", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, id, ownerID string) error {
	taskID, err := parseTaskID(id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, taskID, ownerID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", id))
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// ApplyOrders implements store.TaskStore.ApplyOrders. All assignments run in
// one transaction; if any matches no row the transaction is rolled back.
func (s *PostgresTaskStore) ApplyOrders(
	ctx context.Context,
	p domain.Partition,
	assignments []domain.OrderAssignment,
) error {
	if len(assignments) == 0 {
		return nil
	}

	err := s.inTx(ctx, func(db store.DBTX) error {
		stmt, err := db.PrepareContext(ctx,
			`UPDATE tasks SET "order" = $1 WHERE id = $2 AND owner_id = $3 AND category = $4`)
		if err != nil {
			return MapError(err)
		}
		defer func() { _ = stmt.Close() }()

		for _, a := range assignments {
			taskID, err := parseTaskID(a.TaskID)
			if err != nil {
				return fmt.Errorf("%w: task %s", store.ErrPartialBatch, a.TaskID)
			}
			result, err := stmt.ExecContext(ctx, a.Order, taskID, p.OwnerID, p.Category)
			if err != nil {
				return MapError(err)
			}
			if err := CheckRowsAffected(result, store.ErrPartialBatch); err != nil {
				return fmt.Errorf("%w: task %s left partition", err, a.TaskID)
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to apply rank batch",
			slog.String("error", redact.Error(err)),
			slog.Int("assignments", len(assignments)))
		return store.NewStoreError("task", "apply orders", "batch rolled back", err)
	}
	return nil
}

// SetOrdersIf implements store.TaskStore.SetOrdersIf
func (s *PostgresTaskStore) SetOrdersIf(
	ctx context.Context,
	ownerID string,
	items []domain.ReorderItem,
) ([]bool, error) {
	matched := make([]bool, len(items))

	err := s.inTx(ctx, func(db store.DBTX) error {
		for i, item := range items {
			taskID, err := uuid.Parse(item.ID)
			if err != nil {
				continue
			}
			result, err := db.ExecContext(ctx,
				`UPDATE tasks SET "order" = $1 WHERE id = $2 AND owner_id = $3 AND category = $4`,
				item.Order, taskID, ownerID, item.Category)
			if err != nil {
				return MapError(err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			matched[i] = n > 0
		}
		return nil
	})
	if err != nil {
		return nil, store.NewStoreError("task", "reorder", "conditional update failed", err)
	}
	return matched, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task domain.Task
		id   uuid.UUID
	)
	if err := row.Scan(&id, &task.OwnerID, &task.Category, &task.Title,
		&task.Description, &task.Order, &task.CreatedAt); err != nil {
		return nil, err
	}
	task.ID = id.String()
	task.CreatedAt = task.CreatedAt.UTC()
	return &task, nil
}
