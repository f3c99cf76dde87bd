package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/taskora/taskora/internal/api"
	"github.com/taskora/taskora/internal/config"
	"github.com/taskora/taskora/internal/membership"
	"github.com/taskora/taskora/internal/metrics"
	"github.com/taskora/taskora/internal/policy"
	"github.com/taskora/taskora/internal/project"
	"github.com/taskora/taskora/internal/ratelimit"
	"github.com/taskora/taskora/internal/task"
	"github.com/taskora/taskora/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Taskora API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

const sessionCleanupInterval = time.Hour

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	userStore := user.NewStore(pool, cfg.Auth.SessionDuration)
	projectStore := project.NewStore(pool)
	memberStore := membership.NewStore(pool)
	taskService := task.NewService(task.NewStore(pool))
	checker := policy.NewChecker(memberStore)
	limiter := ratelimit.New(cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window)

	m := metrics.New()
	m.RegisterDBCollector(func() (total, idle, acquired int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	})

	// Periodically purge expired bearer sessions.
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := userStore.CleanExpiredSessions(ctx)
				if err != nil {
					slog.Error("session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()

	router := api.NewRouter(api.RouterDeps{
		Users:          userStore,
		Sessions:       user.NewAuthAdapter(userStore),
		Projects:       projectStore,
		Members:        memberStore,
		Tasks:          taskService,
		Checker:        checker,
		LoginLimiter:   limiter,
		Metrics:        m,
		DB:             pool,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
