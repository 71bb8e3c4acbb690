package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
)

// TaskHandler serves the task endpoints. Every request names its caller by
// email, which the verifier turns into the owner ID the service works with.
type TaskHandler struct {
	tasks    service.TaskService
	verifier auth.Verifier
	logger   *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks service.TaskService, verifier auth.Verifier, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{
		tasks:    tasks,
		verifier: verifier,
		logger:   log.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /tasks?email=.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("email"))
}

// ListTasksByOwner handles GET /tasks/{email}.
func (h *TaskHandler) ListTasksByOwner(w http.ResponseWriter, r *http.Request) {
	email, err := pathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.list(w, r, email)
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, email string) {
	caller, ok := identify(w, r, h.verifier, email)
	if !ok {
		return
	}

	tasks, err := h.tasks.ListTasks(r.Context(), caller.Email)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toTaskResponses(tasks))
}

// CreateTask handles POST /tasks. The task is appended to the end of its
// category.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	caller, ok := identify(w, r, h.verifier, req.Email)
	if !ok {
		return
	}

	task, err := h.tasks.Insert(r.Context(), caller.Email, req.Category, req.Title, req.Description)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.log(r).Debug("task created",
		slog.String("task_id", task.ID),
		slog.Int("order", task.Order))
	shared.RespondWithJSON(w, r, http.StatusCreated, TaskMutationResponse{
		Message: "Task added successfully",
		Task:    toTaskResponse(task),
	})
}

// UpdateTask handles PUT /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	caller, ok := identify(w, r, h.verifier, req.Email)
	if !ok {
		return
	}

	task, err := h.tasks.Update(r.Context(), id, caller.Email, req.ToDomain())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskMutationResponse{
		Message: "Task updated successfully",
		Task:    toTaskResponse(task),
	})
}

// DeleteTask handles DELETE /tasks/{id}. The caller's email comes from the
// JSON body or, for clients that cannot send a DELETE body, the email query
// parameter.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if r.ContentLength != 0 {
		var req DeleteTaskRequest
		if err := shared.DecodeJSON(w, r, &req); err != nil && err != shared.ErrEmptyBody {
			HandleAPIError(w, r, invalidBody(err), "")
			return
		}
		if req.Email != "" {
			email = req.Email
		}
	}

	caller, ok := identify(w, r, h.verifier, email)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), id, caller.Email); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithMessage(w, r, http.StatusOK, "Task deleted and reordered successfully")
}

// ReorderTasks handles PUT /tasks/reorder?email=. Items that do not name a
// task of the caller in the stated category are skipped and reported.
func (h *TaskHandler) ReorderTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := identify(w, r, h.verifier, r.URL.Query().Get("email"))
	if !ok {
		return
	}

	var reqs []ReorderItemRequest
	if err := shared.DecodeJSON(w, r, &reqs); err != nil {
		HandleAPIError(w, r, invalidBody(err), "Invalid data format")
		return
	}
	for i := range reqs {
		if err := shared.ValidateRequest(&reqs[i]); err != nil {
			HandleAPIError(w, r, err, "Invalid data format")
			return
		}
	}

	result, err := h.tasks.ReorderBulk(r.Context(), caller.Email, toReorderItems(reqs))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if result.Skipped > 0 || len(result.Repaired) > 0 {
		h.log(r).Info("reorder partially applied",
			slog.Int("applied", result.Applied),
			slog.Int("skipped", result.Skipped),
			slog.Any("repaired", result.Repaired))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ReorderResponse{
		Message:       "Tasks reordered successfully",
		ReorderResult: result,
	})
}

func (h *TaskHandler) log(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), h.logger)
}
