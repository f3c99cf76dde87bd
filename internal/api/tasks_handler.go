package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/task"
)

// tasksHandler groups task HTTP handlers, all scoped under a project.
type tasksHandler struct {
	tasks   *task.Service
	checker *policy.Checker
}

func newTasksHandler(tasks *task.Service, checker *policy.Checker) *tasksHandler {
	return &tasksHandler{tasks: tasks, checker: checker}
}

// authorize runs the policy check and writes the error response on deny.
// Returns true when the handler may proceed.
func (h *tasksHandler) authorize(w http.ResponseWriter, r *http.Request, action policy.Action, projectID string) bool {
	actor := auth.ActorFromContext(r.Context())
	ok, err := h.checker.CanPerform(r.Context(), actor, action, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "you are not allowed to perform this action")
		return false
	}
	return true
}

// getProjectTask loads a task and verifies it belongs to the project in the
// URL. Writes the error response on failure.
func (h *tasksHandler) getProjectTask(w http.ResponseWriter, r *http.Request, projectID, taskID string) *task.Task {
	t, err := h.tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
			return nil
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get task")
		return nil
	}
	if t.ProjectID != projectID {
		writeError(w, http.StatusNotFound, "not_found", "task not found in this project")
		return nil
	}
	return t
}

func isTaskValidationErr(err error) bool {
	return errors.Is(err, task.ErrTitleRequired) ||
		errors.Is(err, task.ErrStatusInvalid) ||
		errors.Is(err, task.ErrPriorityInvalid) ||
		errors.Is(err, task.ErrDueDateRequired) ||
		errors.Is(err, task.ErrDueDateInvalid)
}

// ListTasks handles GET /api/v1/projects/{projectID}/tasks.
func (h *tasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.ProjectView, projectID) {
		return
	}

	tasks, err := h.tasks.ListByProject(r.Context(), projectID, task.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// FilterTasks handles GET /api/v1/projects/{projectID}/tasks/filter.
// Absent query parameters place no constraint on the matching column.
func (h *tasksHandler) FilterTasks(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.ProjectView, projectID) {
		return
	}

	f := task.Filter{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
	}

	tasks, err := h.tasks.ListByProject(r.Context(), projectID, f)
	if err != nil {
		if isTaskValidationErr(err) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to filter tasks")
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// CreateTask handles POST /api/v1/projects/{projectID}/tasks.
func (h *tasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.TaskCreate, projectID) {
		return
	}

	var req task.CreateTaskInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	t, err := h.tasks.Create(r.Context(), projectID, req)
	if err != nil {
		if isTaskValidationErr(err) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"task": t})
}

// UpdateTask handles PUT /api/v1/projects/{projectID}/tasks/{taskID}.
func (h *tasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	taskID := chi.URLParam(r, "taskID")
	if !h.authorize(w, r, policy.TaskEdit, projectID) {
		return
	}
	if h.getProjectTask(w, r, projectID, taskID) == nil {
		return
	}

	var req task.UpdateTaskInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	t, err := h.tasks.Update(r.Context(), taskID, req)
	if err != nil {
		if isTaskValidationErr(err) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": t})
}

// UpdateTaskStatus handles PUT /api/v1/projects/{projectID}/tasks/{taskID}/status.
// The status-update action is granted to developers only; the admin flag is
// deliberately not consulted here.
func (h *tasksHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	taskID := chi.URLParam(r, "taskID")
	if !h.authorize(w, r, policy.TaskUpdateStatus, projectID) {
		return
	}
	if h.getProjectTask(w, r, projectID, taskID) == nil {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	t, err := h.tasks.UpdateStatus(r.Context(), taskID, req.Status)
	if err != nil {
		if isTaskValidationErr(err) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update task status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": t})
}

// AddTaskNote handles POST /api/v1/projects/{projectID}/tasks/{taskID}/note.
// The note replaces any previous tester notes on the task.
func (h *tasksHandler) AddTaskNote(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	taskID := chi.URLParam(r, "taskID")
	if !h.authorize(w, r, policy.TaskAddNote, projectID) {
		return
	}
	if h.getProjectTask(w, r, projectID, taskID) == nil {
		return
	}

	var req struct {
		TesterNotes string `json:"tester_notes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.TesterNotes == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "tester_notes is required")
		return
	}

	t, err := h.tasks.SetNote(r.Context(), taskID, req.TesterNotes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to add note")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": t})
}

// DeleteTask handles DELETE /api/v1/projects/{projectID}/tasks/{taskID}.
func (h *tasksHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	taskID := chi.URLParam(r, "taskID")
	if !h.authorize(w, r, policy.TaskDelete, projectID) {
		return
	}
	if h.getProjectTask(w, r, projectID, taskID) == nil {
		return
	}

	if err := h.tasks.Delete(r.Context(), taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LatestTask handles GET /api/v1/projects/{projectID}/tasks/latest.
func (h *tasksHandler) LatestTask(w http.ResponseWriter, r *http.Request) {
	h.singleTask(w, r, h.tasks.Latest)
}

// OldestTask handles GET /api/v1/projects/{projectID}/tasks/oldest.
func (h *tasksHandler) OldestTask(w http.ResponseWriter, r *http.Request) {
	h.singleTask(w, r, h.tasks.Oldest)
}

func (h *tasksHandler) singleTask(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, projectID string) (*task.Task, error)) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.ProjectView, projectID) {
		return
	}

	t, err := fetch(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "no tasks found for this project")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": t})
}

// HighestPriorityTask handles GET /api/v1/projects/{projectID}/tasks/highest-priority.
func (h *tasksHandler) HighestPriorityTask(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.ProjectView, projectID) {
		return
	}

	title := r.URL.Query().Get("title")

	t, err := h.tasks.HighestPriority(r.Context(), projectID, title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "no task found with the highest priority")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": t})
}
