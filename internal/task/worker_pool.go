package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/platform/logger"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
)

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// RetryBackoff is the fixed delay before a failed task is redelivered.
	RetryBackoff time.Duration

	// AttemptTimeout caps the execution time of a single attempt.
	// Zero means no cap.
	AttemptTimeout time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:  2,
		RetryBackoff: 60 * time.Second,
	}
}

// WorkerPool manages the worker goroutines that pull messages from the
// queue, execute the workload, and finalize status through the lifecycle
// controller. Each worker processes one task at a time to completion
// before pulling the next; workers run in their own goroutines so a
// sleeping workload never blocks the HTTP layer.
type WorkerPool struct {
	queue     *Queue
	lifecycle *Lifecycle
	workload  Workload
	config    WorkerPoolConfig

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewWorkerPool creates a new worker pool with the specified configuration.
func NewWorkerPool(
	queue *Queue,
	lifecycle *Lifecycle,
	workload Workload,
	config WorkerPoolConfig,
	log *slog.Logger,
) *WorkerPool {
	if config.WorkerCount <= 0 {
		log.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:     queue,
		lifecycle: lifecycle,
		workload:  workload,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.config.WorkerCount)
}

// Stop shuts the pool down. In-flight attempts are cancelled via context;
// interrupted tasks are recovered from the store on the next startup.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker consumes messages until the queue closes or the pool stops.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		select {
		case <-p.ctx.Done():
			log.Debug("stopping worker")
			return

		case msg, ok := <-p.queue.Messages():
			if !ok {
				log.Debug("queue closed, stopping worker")
				return
			}
			p.processMessage(msg, log)
		}
	}
}

// processMessage runs one delivery: claim, execute, finalize.
func (p *WorkerPool) processMessage(msg Message, log *slog.Logger) {
	log = log.With("task_id", msg.TaskID)
	ctx := logger.WithLogger(p.ctx, log)

	attempt, err := p.lifecycle.Claim(ctx, msg.TaskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskFinished):
			log.Debug("skipping redelivered message for finished task")
		case errors.Is(err, store.ErrTaskNotClaimable):
			// Duplicate delivery lost the claim race; the winner owns it.
			log.Debug("skipping message for task claimed by another worker")
		default:
			log.Error("failed to claim task", "error", err)
		}
		return
	}

	log.Info("processing task", "attempt", attempt)

	result, execErr := p.executeAttempt(ctx, msg, log)
	if execErr == nil {
		if err := p.lifecycle.Complete(ctx, msg.TaskID, result); err != nil {
			log.Error("failed to finalize completed task", "error", err)
			return
		}
		log.Info("task completed successfully", "attempt", attempt, "result", result)
		return
	}

	log.Warn("task execution failed", "attempt", attempt, "error", execErr)

	retry, err := p.lifecycle.RetryOrFail(ctx, msg.TaskID, attempt, execErr)
	if err != nil {
		log.Error("failed to finalize failed task", "error", err)
		return
	}
	if retry {
		p.queue.Requeue(msg, p.config.RetryBackoff)
	}
}

// executeAttempt runs the workload with the configured per-attempt timeout
// and panic containment. A panic in the workload is classified as an
// execution error so it flows through the normal retry path instead of
// killing the worker.
func (p *WorkerPool) executeAttempt(ctx context.Context, msg Message, log *slog.Logger) (result int64, err error) {
	if p.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.AttemptTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workload panic: %v", r)
		}
	}()

	progress := func(percent float64) {
		log.Debug("task progress", "percent", fmt.Sprintf("%.1f", percent))
	}

	return p.workload.Execute(ctx, msg.Payload, progress)
}
