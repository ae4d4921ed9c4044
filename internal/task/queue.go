package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Message is the unit the queue carries between submitter and workers.
// It holds delivery metadata only; the task store remains the single
// source of truth for lifecycle state.
type Message struct {
	TaskID  uuid.UUID
	Payload []byte
}

// Queue is a buffered in-process work queue with at-least-once delivery.
// Enqueue never blocks the caller; Requeue redelivers a message after a
// backoff delay, which is how the retry policy is transported.
type Queue struct {
	messages chan Message
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	timers map[*time.Timer]struct{} // in-flight requeue timers
	firing sync.WaitGroup           // requeue callbacks currently running
}

// NewQueue creates a new queue with the specified buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	return &Queue{
		messages: make(chan Message, size),
		logger:   logger,
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Enqueue adds a message to the queue without blocking.
// Returns ErrQueueFull when the buffer is at capacity and ErrQueueClosed
// after Close has been called.
func (q *Queue) Enqueue(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		q.logger.Debug("message enqueued",
			"task_id", msg.TaskID,
			"queue_len", len(q.messages),
			"queue_cap", cap(q.messages))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.messages))
	}
}

// Requeue schedules a message for redelivery after the given delay.
// A zero delay redelivers immediately. Deliveries pending at Close time are
// dropped; startup recovery picks those tasks up again from the store.
func (q *Queue) Requeue(msg Message, delay time.Duration) {
	if delay <= 0 {
		if err := q.Enqueue(msg); err != nil {
			q.logger.Error("failed to requeue message",
				"task_id", msg.TaskID,
				"error", err)
		}
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("dropping requeue for closed queue", "task_id", msg.TaskID)
		return
	}

	q.firing.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer q.firing.Done()

		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		if err := q.Enqueue(msg); err != nil {
			q.logger.Error("failed to requeue message after backoff",
				"task_id", msg.TaskID,
				"delay", delay,
				"error", err)
		}
	})
	q.timers[timer] = struct{}{}
	q.mu.Unlock()
}

// Messages returns the consumer side of the queue.
func (q *Queue) Messages() <-chan Message {
	return q.messages
}

// Close stops the queue. Pending requeue timers are cancelled, running
// callbacks are waited out, and the message channel is closed so consumers
// drain and exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true

	for timer := range q.timers {
		if timer.Stop() {
			// Callback will never run; release its wait slot.
			q.firing.Done()
		}
	}
	q.timers = make(map[*time.Timer]struct{})
	q.mu.Unlock()

	q.firing.Wait()
	close(q.messages)
	q.logger.Info("task queue closed")
}
