package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
	"github.com/google/uuid"
)

// ErrTaskFinished is returned by Claim when the task already reached a
// terminal state. Workers treat it as a duplicate delivery and skip the
// message without touching the record.
var ErrTaskFinished = errors.New("task already finished")

// Lifecycle enforces the task state machine on top of the store:
// pending → in_progress → completed | failed, with in_progress → pending
// for the retry path. Terminal writes are first-writer-wins; a transient
// failure is never recorded as failed while retry budget remains.
type Lifecycle struct {
	store       store.TaskStore
	maxAttempts int
	logger      *slog.Logger
}

// NewLifecycle creates a lifecycle controller with the given retry ceiling.
func NewLifecycle(taskStore store.TaskStore, maxAttempts int, logger *slog.Logger) *Lifecycle {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Lifecycle{
		store:       taskStore,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// MaxAttempts returns the configured retry ceiling.
func (l *Lifecycle) MaxAttempts() int {
	return l.maxAttempts
}

// Claim marks a task as in_progress and returns its attempt number.
// Returns ErrTaskFinished for tasks that already reached a terminal state,
// so redelivered duplicates are dropped without re-execution.
func (l *Lifecycle) Claim(ctx context.Context, id uuid.UUID) (int, error) {
	attempt, err := l.store.ClaimTask(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTaskTerminal) {
			return 0, fmt.Errorf("%w: %s", ErrTaskFinished, id)
		}
		return 0, fmt.Errorf("failed to claim task %s: %w", id, err)
	}
	return attempt, nil
}

// Complete records the result and finalizes the task as completed.
// Duplicate completions are no-ops at the store level; a store write
// failure is returned unmodified since the store is the correctness anchor.
func (l *Lifecycle) Complete(ctx context.Context, id uuid.UUID, result int64) error {
	if err := l.store.CompleteTask(ctx, id, result); err != nil {
		l.logger.Error("failed to record task completion",
			"task_id", id,
			"error", err)
		return fmt.Errorf("failed to complete task %s: %w", id, err)
	}
	return nil
}

// Resume routes a task that was interrupted while in_progress, either by a
// crash or by a stranded worker. If the attempt budget is already spent the
// interruption counts as the final failure and the task is finalized;
// otherwise it is released back to pending. Returns redeliver=true when the
// caller should enqueue the task again.
func (l *Lifecycle) Resume(ctx context.Context, t *domain.Task) (bool, error) {
	if t.AttemptCount >= l.maxAttempts {
		if err := l.store.FailTask(ctx, t.ID, "interrupted during final attempt"); err != nil {
			l.logger.Error("failed to finalize interrupted task",
				"task_id", t.ID,
				"error", err)
			return false, fmt.Errorf("failed to fail interrupted task %s: %w", t.ID, err)
		}
		l.logger.Info("interrupted task failed permanently",
			"task_id", t.ID,
			"attempt", t.AttemptCount,
			"max_attempts", l.maxAttempts)
		return false, nil
	}

	if err := l.store.ReleaseTask(ctx, t.ID); err != nil {
		if errors.Is(err, store.ErrTaskTerminal) {
			return false, nil
		}
		l.logger.Error("failed to release interrupted task",
			"task_id", t.ID,
			"error", err)
		return false, fmt.Errorf("failed to release task %s: %w", t.ID, err)
	}
	return true, nil
}

// RetryOrFail routes an execution failure. While the attempt number is
// below the retry ceiling it releases the task back to pending and reports
// retry=true so the caller requeues it; once the budget is exhausted it
// finalizes the task as failed with the last error message recorded.
func (l *Lifecycle) RetryOrFail(ctx context.Context, id uuid.UUID, attempt int, execErr error) (bool, error) {
	if attempt < l.maxAttempts {
		if err := l.store.ReleaseTask(ctx, id); err != nil {
			if errors.Is(err, store.ErrTaskTerminal) {
				// Another delivery finished the task first; nothing to retry.
				return false, nil
			}
			l.logger.Error("failed to release task for retry",
				"task_id", id,
				"attempt", attempt,
				"error", err)
			return false, fmt.Errorf("failed to release task %s: %w", id, err)
		}
		l.logger.Info("task released for retry",
			"task_id", id,
			"attempt", attempt,
			"max_attempts", l.maxAttempts,
			"error", execErr)
		return true, nil
	}

	message := "task execution failed"
	if execErr != nil {
		message = execErr.Error()
	}

	if err := l.store.FailTask(ctx, id, message); err != nil {
		l.logger.Error("failed to record task failure",
			"task_id", id,
			"error", err)
		return false, fmt.Errorf("failed to fail task %s: %w", id, err)
	}

	l.logger.Info("task failed permanently",
		"task_id", id,
		"attempt", attempt,
		"max_attempts", l.maxAttempts,
		"error", execErr)
	return false, nil
}
