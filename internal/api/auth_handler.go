package api

import (
	"errors"
	"net/http"

	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/metrics"
	"github.com/taskora/taskora/internal/ratelimit"
	"github.com/taskora/taskora/internal/user"
)

// authHandler groups authentication and registration HTTP handlers.
type authHandler struct {
	users   *user.Store
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
}

func newAuthHandler(users *user.Store, limiter *ratelimit.Limiter, m *metrics.Metrics) *authHandler {
	return &authHandler{users: users, limiter: limiter, metrics: m}
}

func userPayload(u *user.User) map[string]interface{} {
	return map[string]interface{}{
		"id":       u.ID,
		"name":     u.Name,
		"email":    u.Email,
		"is_admin": u.IsAdmin,
	}
}

// Register handles POST /api/v1/users. Accounts created through the API are
// never admins; the admin flag is granted out of band.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name, email and password are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "password must be at least 8 characters")
		return
	}

	u, err := h.users.Create(r.Context(), user.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "conflict", "email is already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": userPayload(u)})
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	if !h.limiter.Allow(req.Email) {
		h.metrics.LoginRateLimitRejectTotal.Inc()
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.metrics.AuthFailuresTotal.Inc()
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if !user.CheckPassword(u, req.Password) {
		h.metrics.AuthFailuresTotal.Inc()
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	token, _, err := h.users.CreateSession(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	h.metrics.AuthSuccessesTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  userPayload(u),
	})
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       actor.ID,
		"name":     actor.Name,
		"email":    actor.Email,
		"is_admin": actor.IsAdmin,
	})
}

// Refresh handles POST /api/v1/auth/refresh: the presented token is revoked
// and a fresh one issued.
func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed authorization header")
		return
	}

	fresh, _, err := h.users.RefreshSession(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": fresh})
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearerToken(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_ = h.users.DeleteSession(r.Context(), token)
	w.WriteHeader(http.StatusNoContent)
}
