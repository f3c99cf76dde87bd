package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/membership"
	"github.com/taskora/taskora/internal/metrics"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/user"
)

// membersHandler groups membership and work-session HTTP handlers.
type membersHandler struct {
	members *membership.Store
	users   *user.Store
	checker *policy.Checker
	metrics *metrics.Metrics
}

func newMembersHandler(members *membership.Store, users *user.Store, checker *policy.Checker, m *metrics.Metrics) *membersHandler {
	return &membersHandler{members: members, users: users, checker: checker, metrics: m}
}

func (h *membersHandler) authorize(w http.ResponseWriter, r *http.Request, action policy.Action, projectID string) bool {
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

// ListMembers handles GET /api/v1/projects/{projectID}/members.
func (h *membersHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.ProjectView, projectID) {
		return
	}

	members, err := h.members.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list members")
		return
	}
	if members == nil {
		members = []*membership.Membership{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// AddMember handles POST /api/v1/projects/{projectID}/members.
func (h *membersHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.MemberAdd, projectID) {
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "user_id is required")
		return
	}

	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to look up user")
		return
	}

	m, err := h.members.AddMember(r.Context(), projectID, req.UserID, membership.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrRoleInvalid):
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		case errors.Is(err, membership.ErrAlreadyMember):
			writeError(w, http.StatusConflict, "already_member", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to add member")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"member": m})
}

// RemoveMember handles DELETE /api/v1/projects/{projectID}/members/{userID}.
func (h *membersHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	userID := chi.URLParam(r, "userID")
	if !h.authorize(w, r, policy.MemberRemove, projectID) {
		return
	}

	if err := h.members.Remove(r.Context(), projectID, userID); err != nil {
		if errors.Is(err, membership.ErrNotMember) {
			writeError(w, http.StatusNotFound, "not_a_member", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to remove member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SessionLogin handles POST /api/v1/projects/{projectID}/session/login.
// Logging in while already logged in restarts the work session: the previous
// login timestamp is overwritten and its time is not accrued.
func (h *membersHandler) SessionLogin(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.SessionLogin, projectID) {
		return
	}

	actor := auth.ActorFromContext(r.Context())
	m, err := h.members.RecordLogin(r.Context(), projectID, actor.ID)
	if err != nil {
		if errors.Is(err, membership.ErrNotMember) {
			writeError(w, http.StatusNotFound, "not_a_member", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to record login")
		return
	}

	if h.metrics != nil {
		h.metrics.SessionLoginsTotal.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"member": m})
}

// SessionLogout handles POST /api/v1/projects/{projectID}/session/logout.
func (h *membersHandler) SessionLogout(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.authorize(w, r, policy.SessionLogout, projectID) {
		return
	}

	actor := auth.ActorFromContext(r.Context())
	m, minutes, err := h.members.RecordLogout(r.Context(), projectID, actor.ID)
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrNotMember):
			writeError(w, http.StatusNotFound, "not_a_member", err.Error())
		case errors.Is(err, membership.ErrNotLoggedIn):
			writeError(w, http.StatusConflict, "not_logged_in", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to record logout")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.SessionLogoutsTotal.Inc()
		h.metrics.ContributionMinutesTotal.Add(float64(minutes))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"member":          m,
		"accrued_minutes": minutes,
	})
}
