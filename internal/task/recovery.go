package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
)

// RecoverTasks requeues unfinished work found in the store at startup.
// Pending tasks are re-enqueued directly. In-progress tasks were
// interrupted by a crash or shutdown and go through the lifecycle's Resume
// decision: released and re-enqueued while attempt budget remains,
// finalized as failed when the interruption hit the final attempt. This is
// the half of at-least-once delivery that survives process restarts;
// duplicate deliveries it may create are absorbed by the idempotent
// terminal writes.
func RecoverTasks(
	ctx context.Context,
	taskStore store.TaskStore,
	lifecycle *Lifecycle,
	queue *Queue,
	log *slog.Logger,
) error {
	pending, err := taskStore.ListTasksByStatus(ctx, domain.TaskStatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending tasks: %w", err)
	}

	inProgress, err := taskStore.ListTasksByStatus(ctx, domain.TaskStatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to list in-progress tasks: %w", err)
	}

	log.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"in_progress_count", len(inProgress))

	for _, t := range pending {
		enqueueRecovered(queue, t, log)
	}

	for _, t := range inProgress {
		redeliver, err := lifecycle.Resume(ctx, t)
		if err != nil {
			log.Error("failed to resume interrupted task",
				"task_id", t.ID,
				"error", err)
			continue
		}
		if redeliver {
			enqueueRecovered(queue, t, log)
		}
	}

	return nil
}

// enqueueRecovered re-enqueues one recovered task, logging instead of
// failing recovery when the queue buffer is already full.
func enqueueRecovered(queue *Queue, t *domain.Task, log *slog.Logger) {
	if err := queue.Enqueue(Message{TaskID: t.ID, Payload: t.Payload}); err != nil {
		log.Error("failed to requeue recovered task",
			"task_id", t.ID,
			"error", err)
		return
	}
	log.Debug("requeued recovered task", "task_id", t.ID, "status", t.Status)
}
