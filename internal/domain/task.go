package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrNegativeAttempts = errors.New("attempt count cannot be negative")
)

// Task represents one unit of asynchronously executed work. The record in
// the task store is the single source of truth for its lifecycle; the queue
// only carries delivery metadata.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	Status       TaskStatus `json:"status"`
	Payload      []byte     `json:"payload,omitempty"`
	Result       *int64     `json:"result,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a new Task with a freshly generated ID, pending status,
// and the creation timestamp set. The payload is an opaque JSON blob owned
// by the workload; it is not interpreted here.
func NewTask(payload []byte) (*Task, error) {
	task := &Task{
		ID:        uuid.New(),
		Status:    TaskStatusPending,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if !IsValidStatus(t.Status) {
		return ErrInvalidStatus
	}

	if t.AttemptCount < 0 {
		return ErrNegativeAttempts
	}

	return nil
}

// IsTerminal reports whether the task has reached a terminal state.
// Terminal states absorb all later transition attempts.
func (t *Task) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsValidStatus checks if the given status is a valid TaskStatus.
func IsValidStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminalStatus reports whether the given status is completed or failed.
func IsTerminalStatus(status TaskStatus) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

// CanTransition reports whether a task may move from one status to another.
// Transitions are strictly forward: pending → in_progress → completed|failed,
// with in_progress → pending allowed for the retry path. Terminal states
// permit no further transitions.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusInProgress
	case TaskStatusInProgress:
		return to == TaskStatusPending || to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}
