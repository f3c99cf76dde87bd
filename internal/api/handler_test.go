package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/membership"
	"github.com/taskora/taskora/internal/metrics"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/ratelimit"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// stubSessions resolves every bearer token to a fixed actor.
type stubSessions struct {
	actor *auth.Actor
}

func (s *stubSessions) LookupSession(_ context.Context, token string) (*auth.Actor, error) {
	if s.actor == nil || token == "" {
		return nil, errors.New("invalid session")
	}
	return s.actor, nil
}

// stubRoles returns a fixed role for every (project, user) pair.
type stubRoles struct {
	role membership.Role
	ok   bool
}

func (s *stubRoles) FindRole(_ context.Context, _, _ string) (membership.Role, bool, error) {
	return s.role, s.ok, nil
}

// testRouter builds a router with stubbed auth and roles. The stores stay
// nil: every test below is denied by validation or policy before any store
// is touched.
func testRouter(actor *auth.Actor, roles *stubRoles) http.Handler {
	if roles == nil {
		roles = &stubRoles{}
	}
	return NewRouter(RouterDeps{
		Sessions:       &stubSessions{actor: actor},
		Checker:        policy.NewChecker(roles),
		LoginLimiter:   ratelimit.New(0, time.Minute),
		Metrics:        metrics.New(),
		AllowedOrigins: []string{"*"},
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

// ---------------------------------------------------------------------------
// Health check
// ---------------------------------------------------------------------------

func TestHealthCheck_OK(t *testing.T) {
	handler := NewRouter(RouterDeps{
		AllowedOrigins: []string{"*"},
		DB:             &fakePinger{},
	})

	rec := doJSON(t, handler, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", body["status"])
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	handler := NewRouter(RouterDeps{
		AllowedOrigins: []string{"*"},
		DB:             &fakePinger{err: errors.New("connection refused")},
	})

	rec := doJSON(t, handler, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected status=degraded, got %q", body["status"])
	}
}

// ---------------------------------------------------------------------------
// Registration and login validation
// ---------------------------------------------------------------------------

func TestRegister_Validation(t *testing.T) {
	handler := testRouter(nil, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "malformed body",
			body:     `{not json`,
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_body",
		},
		{
			name:     "missing name",
			body:     `{"email":"a@b.com","password":"longenough"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
		},
		{
			name:     "missing email",
			body:     `{"name":"Ada","password":"longenough"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
		},
		{
			name:     "missing password",
			body:     `{"name":"Ada","email":"a@b.com"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
		},
		{
			name:     "password too short",
			body:     `{"name":"Ada","email":"a@b.com","password":"short"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/v1/users", tt.body, false)
			if rec.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
			if code := decodeErrorCode(t, rec); code != tt.wantErr {
				t.Errorf("error code: got %q, want %q", code, tt.wantErr)
			}
		})
	}
}

func TestLogin_Validation(t *testing.T) {
	handler := testRouter(nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.com"}`, false)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "validation_error" {
		t.Errorf("error code: got %q, want validation_error", code)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	// A zero-capacity limiter rejects the first attempt.
	handler := testRouter(nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login",
		`{"email":"a@b.com","password":"whatever1"}`, false)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "rate_limited" {
		t.Errorf("error code: got %q, want rate_limited", code)
	}
}

// ---------------------------------------------------------------------------
// Session authentication on protected routes
// ---------------------------------------------------------------------------

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	handler := testRouter(nil, nil)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/projects"},
		{http.MethodPost, "/api/v1/projects"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/projects/p1/tasks"},
		{http.MethodDelete, "/api/v1/users/u1"},
	}

	for _, p := range paths {
		rec := doJSON(t, handler, p.method, p.path, "", false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401 without token, got %d", p.method, p.path, rec.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// Policy enforcement at the HTTP layer. Denials happen before any store
// call, so the nil stores in testRouter are never reached.
// ---------------------------------------------------------------------------

func TestAdminOnlyRoutes_ForbiddenForRegularUser(t *testing.T) {
	actor := &auth.Actor{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	handler := testRouter(actor, &stubRoles{role: membership.RoleManager, ok: true})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create project", http.MethodPost, "/api/v1/projects", `{"name":"x"}`},
		{"update project", http.MethodPut, "/api/v1/projects/p1", `{"name":"x"}`},
		{"delete project", http.MethodDelete, "/api/v1/projects/p1", ""},
		{"add member", http.MethodPost, "/api/v1/projects/p1/members", `{"user_id":"u2","role":"tester"}`},
		{"remove member", http.MethodDelete, "/api/v1/projects/p1/members/u2", ""},
		{"delete user", http.MethodDelete, "/api/v1/users/u2", ""},
		{"list users", http.MethodGet, "/api/v1/users", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.path, tt.body, true)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != "forbidden" {
				t.Errorf("error code: got %q, want forbidden", code)
			}
		})
	}
}

func TestTaskRoutes_RoleEnforcement(t *testing.T) {
	tests := []struct {
		name   string
		role   membership.Role
		member bool
		admin  bool
		method string
		path   string
		body   string
	}{
		{
			name:   "tester cannot create tasks",
			role:   membership.RoleTester,
			member: true,
			method: http.MethodPost,
			path:   "/api/v1/projects/p1/tasks",
			body:   `{"title":"t","description":"d","priority":"low","due_date":"2026-09-01"}`,
		},
		{
			name:   "manager cannot update status",
			role:   membership.RoleManager,
			member: true,
			method: http.MethodPut,
			path:   "/api/v1/projects/p1/tasks/t1/status",
			body:   `{"status":"completed"}`,
		},
		{
			name:   "admin without developer role cannot update status",
			admin:  true,
			method: http.MethodPut,
			path:   "/api/v1/projects/p1/tasks/t1/status",
			body:   `{"status":"completed"}`,
		},
		{
			name:   "developer cannot add notes",
			role:   membership.RoleDeveloper,
			member: true,
			method: http.MethodPost,
			path:   "/api/v1/projects/p1/tasks/t1/note",
			body:   `{"tester_notes":"flaky on retry"}`,
		},
		{
			name:   "non-member cannot view tasks",
			method: http.MethodGet,
			path:   "/api/v1/projects/p1/tasks",
		},
		{
			name:   "non-member cannot log in to project session",
			admin:  true,
			method: http.MethodPost,
			path:   "/api/v1/projects/p1/session/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := &auth.Actor{ID: "u1", IsAdmin: tt.admin}
			handler := testRouter(actor, &stubRoles{role: tt.role, ok: tt.member})

			rec := doJSON(t, handler, tt.method, tt.path, tt.body, true)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
}

func TestAddMember_RequiresBody(t *testing.T) {
	actor := &auth.Actor{ID: "admin", IsAdmin: true}
	handler := testRouter(actor, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/projects/p1/members", `{"role":"tester"}`, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing user_id, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "validation_error" {
		t.Errorf("error code: got %q, want validation_error", code)
	}
}

// ---------------------------------------------------------------------------
// Router middleware integration
// ---------------------------------------------------------------------------

func TestRouter_SecureHeadersApplied(t *testing.T) {
	handler := testRouter(nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/health", "", false)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options: nosniff on router responses")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options: DENY on router responses")
	}
}

func TestRouter_RequestIDApplied(t *testing.T) {
	handler := testRouter(nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/health", "", false)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID to be set on router responses")
	}
}

func TestRouter_CORSApplied(t *testing.T) {
	handler := NewRouter(RouterDeps{AllowedOrigins: []string{"https://app.taskora.io"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.taskora.io")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.taskora.io" {
		t.Errorf("expected Access-Control-Allow-Origin=https://app.taskora.io, got %q", got)
	}
}

func TestRouter_PreflightAtAnyPath(t *testing.T) {
	handler := testRouter(nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent && rec.Code != http.StatusOK {
		t.Errorf("expected 204 or 200 for OPTIONS preflight, got %d", rec.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	handler := testRouter(nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/nonexistent-path", "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	handler := testRouter(nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

// ---------------------------------------------------------------------------
// writeError / writeJSON / readJSON helpers
// ---------------------------------------------------------------------------

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "not_found", "resource not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Errorf("expected code=not_found, got %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "resource not found" {
		t.Errorf("expected message='resource not found', got %q", envelope.Error.Message)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"hello": "world"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["hello"] != "world" {
		t.Errorf("expected hello=world, got %q", body["hello"])
	}
}

func TestReadJSON_Valid(t *testing.T) {
	body := strings.NewReader(`{"name":"test","value":42}`)
	req := httptest.NewRequest(http.MethodPost, "/", body)

	var result struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	if err := readJSON(req, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "test" || result.Value != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestReadJSON_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))

	var result map[string]interface{}
	if err := readJSON(req, &result); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestReadJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	var result map[string]interface{}
	if err := readJSON(req, &result); err == nil {
		t.Error("expected error for empty body")
	}
}

// ---------------------------------------------------------------------------
// generateID
// ---------------------------------------------------------------------------

func TestGenerateID_Format(t *testing.T) {
	id := generateID()

	if len(id) != 32 {
		t.Errorf("expected 32-char hex string, got %d chars: %q", len(id), id)
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("non-hex character %c in generated ID %q", c, id)
			break
		}
	}
}

func TestGenerateID_Unique(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := generateID()
		if _, exists := ids[id]; exists {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		ids[id] = struct{}{}
	}
}
