package store

import (
	"context"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/google/uuid"
)

// TaskStore defines the persistence contract for task lifecycle records.
// All writes are atomic with respect to a single task ID: implementations
// must use single-row conditional updates rather than locks held across
// computation, so concurrent writers cannot corrupt a record.
//
// CompleteTask and FailTask are idempotent with first-writer-wins
// semantics: once a task is terminal, later terminal writes are silent
// no-ops and never overwrite the first outcome. This is what makes
// at-least-once delivery safe — a late redelivery for an already-finished
// task changes nothing.
type TaskStore interface {
	// CreateTask persists a new task record with pending status.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by ID.
	// Returns ErrTaskNotFound if no task exists with the given ID.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ClaimTask atomically transitions a pending task to in_progress and
	// increments its attempt count, returning the new count.
	// Returns ErrTaskNotFound if the task does not exist,
	// ErrTaskTerminal if it already completed or failed (a redelivered
	// duplicate), and ErrTaskNotClaimable if another worker holds it.
	ClaimTask(ctx context.Context, id uuid.UUID) (int, error)

	// ReleaseTask transitions an in_progress task back to pending so the
	// queue can redeliver it. The attempt count is preserved.
	// Returns ErrTaskTerminal if the task already reached a terminal state.
	ReleaseTask(ctx context.Context, id uuid.UUID) error

	// CompleteTask records the result and marks the task completed,
	// setting completed_at. No-op if the task is already terminal.
	CompleteTask(ctx context.Context, id uuid.UUID, result int64) error

	// FailTask records the error message and marks the task failed,
	// setting completed_at. No-op if the task is already terminal.
	FailTask(ctx context.Context, id uuid.UUID, errorMessage string) error

	// ListTasksByStatus returns all tasks currently in the given status,
	// oldest first. Used by startup recovery to requeue unfinished work.
	ListTasksByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)

	// ListStuckTasks returns in_progress tasks not touched since the
	// cutoff, oldest first. Used by the stuck-task monitor to rescue work
	// stranded by a worker that never finalized it.
	ListStuckTasks(ctx context.Context, cutoff time.Time) ([]*domain.Task, error)
}
