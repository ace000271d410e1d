package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/taskboard-be/internal/auth"
	"github.com/isdelr/taskboard-be/internal/models"
	"github.com/isdelr/taskboard-be/internal/services"
	"github.com/rs/zerolog/log"
)

// TaskHandler handles HTTP requests for the caller's tasks.
type TaskHandler struct {
	service services.TaskServiceProvider
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider) *TaskHandler {
	return &TaskHandler{service: service}
}

// CreateTaskPayload is the body of POST /tasks. A client-supplied status is ignored.
type CreateTaskPayload struct {
	Title string `json:"title"`
}

// AlreadyCurrentResponse is returned when an update asks for the status the task already has.
type AlreadyCurrentResponse struct {
	Message string      `json:"message"`
	Task    models.Task `json:"task"`
}

// GetAll lists the caller's tasks.
func (h *TaskHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), caller.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", caller.UserID).Msg("Failed to list tasks")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create adds a task owned by the caller.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var payload CreateTaskPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	task, err := h.service.CreateTask(r.Context(), caller.UserID, payload.Title)
	if err != nil {
		log.Error().Err(err).Str("user_id", caller.UserID).Msg("Failed to create task")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to create task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Update applies a partial update to one of the caller's tasks.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var patch models.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	res, err := h.service.UpdateTask(r.Context(), caller.UserID, id, patch)
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task_not_found", "Task not found")
	case errors.Is(err, services.ErrForbidden):
		log.Warn().Str("user_id", caller.UserID).Str("task_id", id).Msg("Rejected update of another user's task")
		writeError(w, http.StatusForbidden, "forbidden", "You are not allowed to modify this task")
	case errors.Is(err, services.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "Task was modified concurrently, please retry")
	case err != nil:
		log.Error().Err(err).Str("task_id", id).Msg("Failed to update task")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to update task")
	case res.AlreadyCurrent:
		writeJSON(w, http.StatusOK, AlreadyCurrentResponse{Message: "status already current", Task: res.Task})
	default:
		writeJSON(w, http.StatusOK, res.Task)
	}
}

// callerFrom reads the identity attached by auth.Gate.
func callerFrom(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		log.Error().Str("path", r.URL.Path).Msg("Handler reached without an authenticated caller")
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
	}
	return id, ok
}
