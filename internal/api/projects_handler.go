package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/project"
)

// projectsHandler groups project HTTP handlers.
type projectsHandler struct {
	projects *project.Store
	checker  *policy.Checker
}

func newProjectsHandler(projects *project.Store, checker *policy.Checker) *projectsHandler {
	return &projectsHandler{projects: projects, checker: checker}
}

// ListProjects handles GET /api/v1/projects — the actor's own projects.
func (h *projectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	projects, err := h.projects.ListForUser(r.Context(), actor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

// CreateProject handles POST /api/v1/projects (admin only).
func (h *projectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	ok, err := h.checker.CanPerform(r.Context(), actor, policy.ProjectCreate, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "only admins can create projects")
		return
	}

	var req project.CreateProjectInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	p, err := h.projects.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, project.ErrNameRequired) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"project": p})
}

// GetProject handles GET /api/v1/projects/{projectID} (members and admins).
func (h *projectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	projectID := chi.URLParam(r, "projectID")

	ok, err := h.checker.CanPerform(r.Context(), actor, policy.ProjectView, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "you are not a member of this project")
		return
	}

	p, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"project": p})
}

// UpdateProject handles PUT /api/v1/projects/{projectID} (admin only).
func (h *projectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	projectID := chi.URLParam(r, "projectID")

	ok, err := h.checker.CanPerform(r.Context(), actor, policy.ProjectUpdate, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "only admins can update projects")
		return
	}

	var req project.UpdateProjectInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	p, err := h.projects.Update(r.Context(), projectID, req)
	if err != nil {
		switch {
		case errors.Is(err, project.ErrNameRequired):
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "not_found", "project not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to update project")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"project": p})
}

// DeleteProject handles DELETE /api/v1/projects/{projectID} (admin only).
// Tasks and memberships cascade with the project.
func (h *projectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	projectID := chi.URLParam(r, "projectID")

	ok, err := h.checker.CanPerform(r.Context(), actor, policy.ProjectDelete, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "only admins can delete projects")
		return
	}

	if err := h.projects.Delete(r.Context(), projectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
