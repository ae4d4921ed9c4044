package task

import (
	"context"
	"testing"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(taskStore *memoryTaskStore, maxAttempts int, age time.Duration) (*Queue, *StuckTaskMonitor) {
	log := setupTestLogger()
	queue := NewQueue(10, log)
	lc := NewLifecycle(taskStore, maxAttempts, log)
	return queue, NewStuckTaskMonitor(taskStore, lc, queue, age, log)
}

func TestStuckTaskMonitorRescuesStrandedTask(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue, monitor := newTestMonitor(taskStore, 3, time.Minute)

	stranded := taskStore.mustCreate([]byte(`{"x":1}`))
	_, err := taskStore.ClaimTask(ctx, stranded.ID)
	require.NoError(t, err)
	taskStore.setUpdatedAt(stranded.ID, time.Now().UTC().Add(-2*time.Minute))

	monitor.sweep(ctx)

	got, err := taskStore.GetTask(ctx, stranded.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Equal(t, 1, got.AttemptCount)

	queue.Close()
	msg, ok := <-queue.Messages()
	require.True(t, ok)
	assert.Equal(t, stranded.ID, msg.TaskID)
	assert.Equal(t, stranded.Payload, msg.Payload)
}

func TestStuckTaskMonitorFailsStrandedFinalAttempt(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue, monitor := newTestMonitor(taskStore, 1, time.Minute)

	stranded := taskStore.mustCreate(nil)
	_, err := taskStore.ClaimTask(ctx, stranded.ID)
	require.NoError(t, err)
	taskStore.setUpdatedAt(stranded.ID, time.Now().UTC().Add(-2*time.Minute))

	monitor.sweep(ctx)

	got, err := taskStore.GetTask(ctx, stranded.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, 1, got.AttemptCount, "attempt count must not exceed the retry ceiling")
	require.NotNil(t, got.ErrorMessage)

	queue.Close()
	_, ok := <-queue.Messages()
	assert.False(t, ok, "an exhausted task must not be redelivered")
}

func TestStuckTaskMonitorLeavesFreshTasksAlone(t *testing.T) {
	ctx := context.Background()
	taskStore := newMemoryTaskStore()
	queue, monitor := newTestMonitor(taskStore, 3, time.Minute)

	running := taskStore.mustCreate(nil)
	_, err := taskStore.ClaimTask(ctx, running.ID)
	require.NoError(t, err)

	monitor.sweep(ctx)

	got, err := taskStore.GetTask(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)

	queue.Close()
	_, ok := <-queue.Messages()
	assert.False(t, ok)
}

func TestStuckTaskMonitorStartStop(t *testing.T) {
	taskStore := newMemoryTaskStore()
	queue, monitor := newTestMonitor(taskStore, 3, time.Minute)
	defer queue.Close()

	monitor.Start()
	monitor.Stop()
}
