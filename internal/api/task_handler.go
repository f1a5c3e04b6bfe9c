package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/task"
)

// maxListLimit caps the number of tasks one list request returns.
const maxListLimit = 500

// TaskHandler exposes the task queue.
type TaskHandler struct {
	queue  TaskQueue
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(queue TaskQueue, logger *slog.Logger) *TaskHandler {
	if queue == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("queue cannot be nil for TaskHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		queue:  queue,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /api/tasks[?status=&type=&limit=] requests.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.ListFilter{
		Status: task.TaskStatus(q.Get("status")),
		Type:   q.Get("type"),
		Limit:  100,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	tasks, err := h.queue.List(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathTaskID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.queue.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// RetryTask handles POST /api/tasks/{id}/retry requests.
// Only failed tasks can be retried; the retry is a new pending task.
func (h *TaskHandler) RetryTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathTaskID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	newID, err := h.queue.Retry(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retry task")
		return
	}

	log.Info("task retried", slog.Int64("task_id", id), slog.Int64("new_task_id", newID))
	shared.RespondWithJSON(w, r, http.StatusAccepted, RetryResponse{TaskID: id, NewTaskID: newID})
}

// Cleanup handles POST /api/maintenance/cleanup requests.
// The body is optional; days_old defaults to the cleanup task's default.
func (h *TaskHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}

	id, err := h.queue.Enqueue(r.Context(), task.TaskTypeCleanupRecordings,
		recording.CleanupRecordingsPayload{DaysOld: req.DaysOld})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to queue cleanup")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskQueuedResponse{
		TaskID: id,
		Type:   task.TaskTypeCleanupRecordings,
	})
}
