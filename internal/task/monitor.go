package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
)

// StuckTaskMonitor periodically rescues tasks stranded in in_progress at
// runtime, such as when a worker's terminal store write failed after
// execution and the message was never requeued. Each stuck task goes
// through the lifecycle's Resume decision: re-enqueued while attempt
// budget remains, finalized as failed otherwise. Startup recovery handles
// the restart case; this covers the running process.
type StuckTaskMonitor struct {
	store     store.TaskStore
	lifecycle *Lifecycle
	queue     *Queue
	age       time.Duration
	interval  time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStuckTaskMonitor creates a monitor that treats in_progress tasks not
// updated for at least age as stuck. Sweeps run at half the age, floored
// at one second so a short age cannot spin the store.
func NewStuckTaskMonitor(
	taskStore store.TaskStore,
	lifecycle *Lifecycle,
	queue *Queue,
	age time.Duration,
	log *slog.Logger,
) *StuckTaskMonitor {
	interval := age / 2
	if interval < time.Second {
		interval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &StuckTaskMonitor{
		store:     taskStore,
		lifecycle: lifecycle,
		queue:     queue,
		age:       age,
		interval:  interval,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the monitor goroutine.
func (m *StuckTaskMonitor) Start() {
	m.wg.Add(1)
	go m.run()
	m.logger.Info("stuck task monitor started",
		"stuck_age", m.age,
		"sweep_interval", m.interval)
}

// Stop shuts the monitor down and waits for an in-flight sweep to finish.
func (m *StuckTaskMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("stuck task monitor stopped")
}

func (m *StuckTaskMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep(m.ctx)
		}
	}
}

// sweep finds tasks stuck in in_progress and routes each through Resume.
func (m *StuckTaskMonitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.age)

	stuck, err := m.store.ListStuckTasks(ctx, cutoff)
	if err != nil {
		m.logger.Error("failed to list stuck tasks", "error", err)
		return
	}

	for _, t := range stuck {
		redeliver, err := m.lifecycle.Resume(ctx, t)
		if err != nil {
			m.logger.Error("failed to resume stuck task",
				"task_id", t.ID,
				"error", err)
			continue
		}
		if !redeliver {
			continue
		}

		if err := m.queue.Enqueue(Message{TaskID: t.ID, Payload: t.Payload}); err != nil {
			m.logger.Error("failed to requeue stuck task",
				"task_id", t.ID,
				"error", err)
			continue
		}
		m.logger.Warn("rescued stuck task",
			"task_id", t.ID,
			"attempt", t.AttemptCount)
	}
}
