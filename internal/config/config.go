package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Workload WorkloadConfig `mapstructure:"workload" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all task store related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// QueueConfig contains the work queue and retry policy settings.
type QueueConfig struct {
	// Size is the buffer capacity of the in-process queue. Submissions
	// beyond it are rejected rather than blocking the API.
	Size int `mapstructure:"size" validate:"required,gt=0"`

	// WorkerCount determines how many concurrent workers consume the queue.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// MaxAttempts is the retry ceiling. A task failing this many times is
	// finalized as failed with the last error recorded.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// RetryBackoff is the fixed delay before a failed task is redelivered.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`

	// AttemptTimeout caps the execution time of a single attempt.
	// Zero disables the cap.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gte=0"`

	// StuckTaskAge is how long an in_progress task may go without an
	// update before the monitor rescues it. Zero disables the monitor.
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"gte=0"`
}

// WorkloadConfig tunes the placeholder computation.
type WorkloadConfig struct {
	MinDuration time.Duration `mapstructure:"min_duration" validate:"gte=0"`
	MaxDuration time.Duration `mapstructure:"max_duration" validate:"gte=0,gtefield=MinDuration"`
}
