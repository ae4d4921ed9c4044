package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/api/shared"
	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/Fusion831/Async-Task-Processor-API/internal/platform/logger"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
	"github.com/Fusion831/Async-Task-Processor-API/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Enqueuer is the submit-side contract of the work queue.
type Enqueuer interface {
	Enqueue(msg task.Message) error
}

// SubmitRequest is the optional request body for task submission. Data is
// an opaque JSON object owned by the workload; decoding into a map rejects
// non-object values without interpreting the contents.
type SubmitRequest struct {
	Data map[string]any `json:"data"`
}

// SubmitResponse is returned immediately on submission, before any work runs.
type SubmitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskStatusResponse reports the current state of a task. Result and
// ErrorMessage are mutually exclusive and only present once the task is
// terminal; completed_at is set at the first terminal transition.
type TaskStatusResponse struct {
	TaskID       string     `json:"task_id"`
	Status       string     `json:"status"`
	Result       *int64     `json:"result,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NotFoundResponse is the body returned for unknown task IDs.
type NotFoundResponse struct {
	Detail string `json:"detail"`
}

// TaskHandler handles task submission and status queries.
type TaskHandler struct {
	taskStore store.TaskStore
	queue     Enqueuer
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskStore store.TaskStore, queue Enqueuer) *TaskHandler {
	return &TaskHandler{
		taskStore: taskStore,
		queue:     queue,
	}
}

// Submit handles POST /process requests. It creates a pending task record,
// enqueues the work, and returns the task ID without waiting on execution:
// the only blocking step is the single store insert.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// The body is optional; an empty body means a task with no payload.
	var req SubmitRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	var payload []byte
	if req.Data != nil {
		encoded, err := json.Marshal(req.Data)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		payload = encoded
	}

	newTask, err := domain.NewTask(payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to submit task", err)
		return
	}

	if err := h.taskStore.CreateTask(r.Context(), newTask); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if err := h.queue.Enqueue(task.Message{TaskID: newTask.ID, Payload: newTask.Payload}); err != nil {
		// The record stays pending in the store; startup recovery or a
		// resubmission will pick it up, but the caller should know the
		// queue rejected it now.
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task submitted", "task_id", newTask.ID)

	shared.RespondWithJSON(w, r, http.StatusOK, SubmitResponse{
		TaskID:  newTask.ID.String(),
		Status:  string(newTask.Status),
		Message: "Task queued for processing",
	})
}

// GetResult handles GET /results/{task_id} requests. A malformed ID is
// indistinguishable from an unknown one to the caller, so both produce 404.
func (h *TaskHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "task_id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		shared.RespondWithJSON(w, r, http.StatusNotFound, NotFoundResponse{Detail: "Task not found"})
		return
	}

	found, err := h.taskStore.GetTask(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithJSON(w, r, http.StatusNotFound, NotFoundResponse{Detail: "Task not found"})
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToStatusResponse(found))
}

// taskToStatusResponse converts a domain.Task to its API representation.
func taskToStatusResponse(t *domain.Task) TaskStatusResponse {
	resp := TaskStatusResponse{
		TaskID:       t.ID.String(),
		Status:       string(t.Status),
		Result:       t.Result,
		ErrorMessage: t.ErrorMessage,
		CompletedAt:  t.CompletedAt,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}
