package task

import (
	"context"
	"testing"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle(taskStore *memoryTaskStore, maxAttempts int) *Lifecycle {
	return NewLifecycle(taskStore, maxAttempts, setupTestLogger())
}

func TestRecoverTasksRequeuesPending(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue := NewQueue(10, setupTestLogger())

	first := taskStore.mustCreate([]byte(`{"a":1}`))
	second := taskStore.mustCreate(nil)

	require.NoError(t, RecoverTasks(ctx, taskStore, newTestLifecycle(taskStore, 3), queue, setupTestLogger()))

	queue.Close()
	recovered := map[uuid.UUID]bool{}
	for msg := range queue.Messages() {
		recovered[msg.TaskID] = true
	}
	assert.True(t, recovered[first.ID])
	assert.True(t, recovered[second.ID])
	assert.Len(t, recovered, 2)
}

func TestRecoverTasksResetsInterruptedTasks(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue := NewQueue(10, setupTestLogger())

	interrupted := taskStore.mustCreate(nil)
	_, err := taskStore.ClaimTask(ctx, interrupted.ID)
	require.NoError(t, err)

	require.NoError(t, RecoverTasks(ctx, taskStore, newTestLifecycle(taskStore, 3), queue, setupTestLogger()))

	got, err := taskStore.GetTask(ctx, interrupted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	// The interrupted attempt still counts toward the ceiling.
	assert.Equal(t, 1, got.AttemptCount)

	queue.Close()
	msg, ok := <-queue.Messages()
	require.True(t, ok)
	assert.Equal(t, interrupted.ID, msg.TaskID)
}

func TestRecoverTasksFailsTaskInterruptedOnFinalAttempt(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue := NewQueue(10, setupTestLogger())
	lc := newTestLifecycle(taskStore, 3)

	// Burn the first two attempts, then leave the third in_progress as a
	// crash mid-final-attempt would.
	interrupted := taskStore.mustCreate(nil)
	for i := 0; i < 2; i++ {
		_, err := taskStore.ClaimTask(ctx, interrupted.ID)
		require.NoError(t, err)
		require.NoError(t, taskStore.ReleaseTask(ctx, interrupted.ID))
	}
	attempt, err := taskStore.ClaimTask(ctx, interrupted.ID)
	require.NoError(t, err)
	require.Equal(t, 3, attempt)

	require.NoError(t, RecoverTasks(ctx, taskStore, lc, queue, setupTestLogger()))

	got, err := taskStore.GetTask(ctx, interrupted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.LessOrEqual(t, got.AttemptCount, 3, "attempt count must not exceed the retry ceiling")
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "interrupted")
	require.NotNil(t, got.CompletedAt)

	// No redelivery for a task whose budget is spent.
	queue.Close()
	_, ok := <-queue.Messages()
	assert.False(t, ok)
}

func TestRecoverTasksIgnoresTerminalTasks(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue := NewQueue(10, setupTestLogger())

	done := taskStore.mustCreate(nil)
	require.NoError(t, taskStore.CompleteTask(ctx, done.ID, 1))

	failed := taskStore.mustCreate(nil)
	require.NoError(t, taskStore.FailTask(ctx, failed.ID, "gone"))

	require.NoError(t, RecoverTasks(ctx, taskStore, newTestLifecycle(taskStore, 3), queue, setupTestLogger()))

	queue.Close()
	_, ok := <-queue.Messages()
	assert.False(t, ok, "terminal tasks must not be requeued")
}

func TestRecoverTasksQueueOverflow(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue := NewQueue(1, setupTestLogger())

	taskStore.mustCreate(nil)
	taskStore.mustCreate(nil)

	// Recovery logs the overflow instead of failing startup.
	assert.NoError(t, RecoverTasks(ctx, taskStore, newTestLifecycle(taskStore, 3), queue, setupTestLogger()))
}
