package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Fusion831/Async-Task-Processor-API/internal/config"
	"github.com/Fusion831/Async-Task-Processor-API/internal/platform/postgres"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
	"github.com/Fusion831/Async-Task-Processor-API/internal/task"
)

// application holds the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore

	queue        *task.Queue
	workerPool   *task.WorkerPool
	stuckMonitor *task.StuckTaskMonitor
}

// newApplication creates an application instance with all dependencies
// initialized and background processing started. It accepts core
// dependencies that must be established before application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.taskStore = postgres.NewPostgresTaskStore(db)

	app.queue = task.NewQueue(cfg.Queue.Size, logger.With("component", "queue"))

	lifecycle := task.NewLifecycle(
		app.taskStore,
		cfg.Queue.MaxAttempts,
		logger.With("component", "lifecycle"),
	)

	workload := task.NewSumWorkload(cfg.Workload.MinDuration, cfg.Workload.MaxDuration)

	app.workerPool = task.NewWorkerPool(app.queue, lifecycle, workload, task.WorkerPoolConfig{
		WorkerCount:    cfg.Queue.WorkerCount,
		RetryBackoff:   cfg.Queue.RetryBackoff,
		AttemptTimeout: cfg.Queue.AttemptTimeout,
	}, logger.With("component", "worker_pool"))

	app.workerPool.Start()
	logger.Info("Worker pool started",
		"worker_count", cfg.Queue.WorkerCount,
		"max_attempts", cfg.Queue.MaxAttempts)

	// Tasks left over from a previous run go back on the queue before the
	// server starts accepting new ones.
	if err := task.RecoverTasks(ctx, app.taskStore, lifecycle, app.queue, logger); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to recover unfinished tasks: %w", err)
	}

	if cfg.Queue.StuckTaskAge > 0 {
		app.stuckMonitor = task.NewStuckTaskMonitor(
			app.taskStore,
			lifecycle,
			app.queue,
			cfg.Queue.StuckTaskAge,
			logger.With("component", "stuck_task_monitor"),
		)
		app.stuckMonitor.Start()
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources. The monitor
// and pool stop before the queue closes so nothing sends on a closed
// channel.
func (app *application) cleanup() {
	if app.stuckMonitor != nil {
		app.stuckMonitor.Stop()
	}

	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.queue != nil {
		app.queue.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
