package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/Fusion831/Async-Task-Processor-API/internal/platform/logger"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
	"github.com/google/uuid"
)

// terminalStatuses is used in conditional updates to implement
// first-writer-wins terminal writes at the row level.
var terminalStatuses = []any{domain.TaskStatusCompleted, domain.TaskStatusFailed}

// PostgresTaskStore implements the store.TaskStore interface using
// PostgreSQL. Every mutation is a single-row conditional UPDATE, so
// concurrent writers for the same task ID serialize on the row without
// application-level locking.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// CreateTask persists a new task record with pending status.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
		INSERT INTO tasks (id, status, payload, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Status,
		task.Payload,
		task.AttemptCount,
		task.CreatedAt,
		time.Now().UTC(),
	)

	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"error", err)
		return MapError(fmt.Errorf("failed to create task: %w", err))
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, status, payload, result, error_message, attempt_count, created_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}

	return task, nil
}

// ClaimTask atomically transitions a pending task to in_progress and
// increments its attempt count. The WHERE clause restricts the update to
// pending rows, so two workers claiming the same ID cannot both succeed.
func (s *PostgresTaskStore) ClaimTask(ctx context.Context, id uuid.UUID) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING attempt_count
	`

	var attempt int
	err := s.db.QueryRowContext(ctx, query,
		domain.TaskStatusInProgress,
		time.Now().UTC(),
		id,
		domain.TaskStatusPending,
	).Scan(&attempt)

	if err == nil {
		return attempt, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to claim task", "task_id", id, "error", err)
		return 0, fmt.Errorf("failed to claim task: %w", MapError(err))
	}

	// Nothing matched; distinguish missing, terminal, and contended rows.
	return 0, s.classifyConflict(ctx, id, "claim")
}

// ReleaseTask transitions an in_progress task back to pending so it can be
// redelivered. Already-pending rows are treated as a no-op.
func (s *PostgresTaskStore) ReleaseTask(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusPending,
		time.Now().UTC(),
		id,
		domain.TaskStatusInProgress,
	)
	if err != nil {
		log.Error("failed to release task", "task_id", id, "error", err)
		return fmt.Errorf("failed to release task: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	err = s.classifyConflict(ctx, id, "release")
	if errors.Is(err, store.ErrTaskNotClaimable) {
		// Already pending; releasing twice is harmless.
		return nil
	}
	return err
}

// CompleteTask records the result and marks the task completed. The
// conditional update skips rows that already reached a terminal state,
// preserving the first terminal outcome.
func (s *PostgresTaskStore) CompleteTask(ctx context.Context, id uuid.UUID, result int64) error {
	query := `
		UPDATE tasks
		SET status = $1, result = $2, error_message = NULL, completed_at = $3, updated_at = $3
		WHERE id = $4 AND status NOT IN ($5, $6)
	`

	now := time.Now().UTC()
	args := append([]any{domain.TaskStatusCompleted, result, now, id}, terminalStatuses...)

	return s.finalize(ctx, id, "complete", query, args)
}

// FailTask records the error message and marks the task failed, with the
// same first-writer-wins semantics as CompleteTask.
func (s *PostgresTaskStore) FailTask(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, result = NULL, completed_at = $3, updated_at = $3
		WHERE id = $4 AND status NOT IN ($5, $6)
	`

	now := time.Now().UTC()
	args := append([]any{domain.TaskStatusFailed, errorMessage, now, id}, terminalStatuses...)

	return s.finalize(ctx, id, "fail", query, args)
}

// finalize executes a terminal-write update. Zero rows affected means the
// task either does not exist (an error) or is already terminal (a no-op).
func (s *PostgresTaskStore) finalize(ctx context.Context, id uuid.UUID, op, query string, args []any) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to finalize task", "task_id", id, "operation", op, "error", err)
		return fmt.Errorf("failed to %s task: %w", op, MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	conflictErr := s.classifyConflict(ctx, id, op)
	if errors.Is(conflictErr, store.ErrTaskTerminal) {
		log.Debug("ignoring duplicate terminal write",
			"task_id", id,
			"operation", op)
		return nil
	}
	return conflictErr
}

// classifyConflict explains why a conditional update matched no rows by
// reading the current status of the task.
func (s *PostgresTaskStore) classifyConflict(ctx context.Context, id uuid.UUID, op string) error {
	var status domain.TaskStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return fmt.Errorf("failed to inspect task during %s: %w", op, MapError(err))
	}

	if domain.IsTerminalStatus(status) {
		return fmt.Errorf("%w: status %s", store.ErrTaskTerminal, status)
	}
	return fmt.Errorf("%w: status %s", store.ErrTaskNotClaimable, status)
}

// ListTasksByStatus returns all tasks in the given status, oldest first.
func (s *PostgresTaskStore) ListTasksByStatus(
	ctx context.Context,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, status, payload, result, error_message, attempt_count, created_at, completed_at
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		log.Error("failed to query tasks by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// ListStuckTasks returns in_progress tasks whose last update is older than
// the cutoff, oldest first.
func (s *PostgresTaskStore) ListStuckTasks(ctx context.Context, cutoff time.Time) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, status, payload, result, error_message, attempt_count, created_at, completed_at
		FROM tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusInProgress, cutoff)
	if err != nil {
		log.Error("failed to query stuck tasks", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf("failed to query stuck tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps a tasks row onto a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task         domain.Task
		result       sql.NullInt64
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Status,
		&task.Payload,
		&result,
		&errorMessage,
		&task.AttemptCount,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if result.Valid {
		task.Result = &result.Int64
	}
	if errorMessage.Valid {
		task.ErrorMessage = &errorMessage.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return &task, nil
}
