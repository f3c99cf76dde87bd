package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/membership"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/task"
	"github.com/taskora/taskora/internal/user"
)

// usersHandler groups user administration HTTP handlers.
type usersHandler struct {
	users   *user.Store
	members *membership.Store
	tasks   *task.Service
	checker *policy.Checker
}

func newUsersHandler(users *user.Store, members *membership.Store, tasks *task.Service, checker *policy.Checker) *usersHandler {
	return &usersHandler{users: users, members: members, tasks: tasks, checker: checker}
}

// ListUsers handles GET /api/v1/users. Admin only.
func (h *usersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	ok, err := h.checker.CanPerform(r.Context(), actor, policy.UserDelete, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "you are not allowed to perform this action")
		return
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list users")
		return
	}
	if users == nil {
		users = []*user.User{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// DeleteUser handles DELETE /api/v1/users/{userID}. Admin only. Memberships,
// sessions and assignments cascade in the database.
func (h *usersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	ok, err := h.checker.CanPerform(r.Context(), actor, policy.UserDelete, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "you are not allowed to perform this action")
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.users.Delete(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UserProjectTasks handles GET /api/v1/users/{userID}/projects/{projectID}/tasks.
// Lists the tasks of a project a given user belongs to. The caller needs view
// access to the project; the target user must be a member of it.
func (h *usersHandler) UserProjectTasks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	projectID := chi.URLParam(r, "projectID")

	actor := auth.ActorFromContext(r.Context())
	ok, err := h.checker.CanPerform(r.Context(), actor, policy.ProjectView, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "you are not allowed to perform this action")
		return
	}

	if _, err := h.members.Get(r.Context(), projectID, userID); err != nil {
		if errors.Is(err, membership.ErrNotMember) {
			writeError(w, http.StatusNotFound, "not_a_member", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to look up membership")
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
