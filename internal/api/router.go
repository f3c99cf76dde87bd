package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/membership"
	"github.com/taskora/taskora/internal/metrics"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/project"
	"github.com/taskora/taskora/internal/ratelimit"
	"github.com/taskora/taskora/internal/task"
	"github.com/taskora/taskora/internal/user"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users          *user.Store
	Sessions       auth.SessionLookup
	Projects       *project.Store
	Members        *membership.Store
	Tasks          *task.Service
	Checker        *policy.Checker
	LoginLimiter   *ratelimit.Limiter
	Metrics        *metrics.Metrics
	DB             Pinger
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(slogRequestLogger)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	authH := newAuthHandler(deps.Users, deps.LoginLimiter, deps.Metrics)
	projects := newProjectsHandler(deps.Projects, deps.Checker)
	tasks := newTasksHandler(deps.Tasks, deps.Checker)
	members := newMembersHandler(deps.Members, deps.Users, deps.Checker, deps.Metrics)
	users := newUsersHandler(deps.Users, deps.Members, deps.Tasks, deps.Checker)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(vr chi.Router) {
		// Public (unauthenticated) routes.
		vr.Post("/auth/login", authH.Login)
		vr.Post("/users", authH.Register)

		// Authenticated routes.
		vr.Group(func(ar chi.Router) {
			ar.Use(auth.SessionAuthMiddleware(deps.Sessions))

			ar.Get("/auth/me", authH.Me)
			ar.Post("/auth/refresh", authH.Refresh)
			ar.Post("/auth/logout", authH.Logout)

			// User administration.
			ar.Get("/users", users.ListUsers)
			ar.Delete("/users/{userID}", users.DeleteUser)
			ar.Get("/users/{userID}/projects/{projectID}/tasks", users.UserProjectTasks)

			// Projects.
			ar.Get("/projects", projects.ListProjects)
			ar.Post("/projects", projects.CreateProject)
			ar.Route("/projects/{projectID}", func(pr chi.Router) {
				pr.Get("/", projects.GetProject)
				pr.Put("/", projects.UpdateProject)
				pr.Delete("/", projects.DeleteProject)

				// Membership.
				pr.Get("/members", members.ListMembers)
				pr.Post("/members", members.AddMember)
				pr.Delete("/members/{userID}", members.RemoveMember)

				// Work sessions.
				pr.Post("/session/login", members.SessionLogin)
				pr.Post("/session/logout", members.SessionLogout)

				// Tasks. Fixed segments are registered before the {taskID}
				// wildcard so chi resolves them first.
				pr.Get("/tasks", tasks.ListTasks)
				pr.Post("/tasks", tasks.CreateTask)
				pr.Get("/tasks/filter", tasks.FilterTasks)
				pr.Get("/tasks/latest", tasks.LatestTask)
				pr.Get("/tasks/oldest", tasks.OldestTask)
				pr.Get("/tasks/highest-priority", tasks.HighestPriorityTask)
				pr.Put("/tasks/{taskID}", tasks.UpdateTask)
				pr.Put("/tasks/{taskID}/status", tasks.UpdateTaskStatus)
				pr.Post("/tasks/{taskID}/note", tasks.AddTaskNote)
				pr.Delete("/tasks/{taskID}", tasks.DeleteTask)
			})
		})
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
