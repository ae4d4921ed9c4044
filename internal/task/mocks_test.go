package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
	"github.com/google/uuid"
)

// memoryTaskStore is an in-memory store.TaskStore used by the tests in this
// package. It mirrors the conditional-update semantics of the postgres
// implementation, including first-writer-wins terminal writes, and allows
// per-operation error injection.
type memoryTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*domain.Task
	updated map[uuid.UUID]time.Time

	failClaim    error
	failRelease  error
	failComplete error
	failFail     error
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{
		tasks:   make(map[uuid.UUID]*domain.Task),
		updated: make(map[uuid.UUID]time.Time),
	}
}

var _ store.TaskStore = (*memoryTaskStore)(nil)

func (s *memoryTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: duplicate task id", store.ErrUpdateFailed)
	}
	copied := *task
	s.tasks[task.ID] = &copied
	s.updated[task.ID] = time.Now().UTC()
	return nil
}

func (s *memoryTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	copied := *task
	return &copied, nil
}

func (s *memoryTaskStore) ClaimTask(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failClaim != nil {
		return 0, s.failClaim
	}

	task, ok := s.tasks[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	if task.IsTerminal() {
		return 0, fmt.Errorf("%w: status %s", store.ErrTaskTerminal, task.Status)
	}
	if task.Status != domain.TaskStatusPending {
		return 0, fmt.Errorf("%w: status %s", store.ErrTaskNotClaimable, task.Status)
	}

	task.Status = domain.TaskStatusInProgress
	task.AttemptCount++
	s.updated[id] = time.Now().UTC()
	return task.AttemptCount, nil
}

func (s *memoryTaskStore) ReleaseTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRelease != nil {
		return s.failRelease
	}

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	if task.IsTerminal() {
		return fmt.Errorf("%w: status %s", store.ErrTaskTerminal, task.Status)
	}

	task.Status = domain.TaskStatusPending
	s.updated[id] = time.Now().UTC()
	return nil
}

func (s *memoryTaskStore) CompleteTask(ctx context.Context, id uuid.UUID, result int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failComplete != nil {
		return s.failComplete
	}

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	if task.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	task.Status = domain.TaskStatusCompleted
	task.Result = &result
	task.ErrorMessage = nil
	task.CompletedAt = &now
	s.updated[id] = now
	return nil
}

func (s *memoryTaskStore) FailTask(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFail != nil {
		return s.failFail
	}

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	if task.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	task.Status = domain.TaskStatusFailed
	task.ErrorMessage = &errorMessage
	task.Result = nil
	task.CompletedAt = &now
	s.updated[id] = now
	return nil
}

func (s *memoryTaskStore) ListTasksByStatus(
	ctx context.Context,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*domain.Task
	for _, task := range s.tasks {
		if task.Status == status {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

func (s *memoryTaskStore) ListStuckTasks(
	ctx context.Context,
	cutoff time.Time,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*domain.Task
	for id, task := range s.tasks {
		if task.Status == domain.TaskStatusInProgress && s.updated[id].Before(cutoff) {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

// setUpdatedAt backdates a task's last update, simulating work stranded in
// in_progress for longer than the stuck age.
func (s *memoryTaskStore) setUpdatedAt(id uuid.UUID, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[id] = t
}

// mustCreateTask seeds the store with a fresh pending task.
func (s *memoryTaskStore) mustCreate(payload []byte) *domain.Task {
	task, err := domain.NewTask(payload)
	if err != nil {
		panic(err)
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		panic(err)
	}
	return task
}
