package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/taskora/taskora/internal/config"
	"github.com/taskora/taskora/internal/membership"
	"github.com/taskora/taskora/internal/project"
	"github.com/taskora/taskora/internal/task"
	"github.com/taskora/taskora/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo admin, team, project, and tasks",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var demoUsers = []user.CreateUserInput{
	{Name: "Admin", Email: "admin@taskora.local", Password: "admin-password", IsAdmin: true},
	{Name: "Maya Manager", Email: "maya@taskora.local", Password: "maya-password"},
	{Name: "Devon Developer", Email: "devon@taskora.local", Password: "devon-password"},
	{Name: "Tess Tester", Email: "tess@taskora.local", Password: "tess-password"},
}

var demoTasks = []task.CreateTaskInput{
	{
		Title:       "Set up CI pipeline",
		Description: "Run the test suite and linters on every push.",
		Priority:    "high",
		DueDate:     "2026-09-15",
	},
	{
		Title:       "Design onboarding flow",
		Description: "Wireframes for the first-run project setup experience.",
		Priority:    "medium",
		DueDate:     "2026-09-30",
	},
	{
		Title:       "Fix flaky session test",
		Description: "The logout test fails intermittently under parallel runs.",
		Priority:    "low",
		DueDate:     "2026-10-15",
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool, cfg.Auth.SessionDuration)
	projectStore := project.NewStore(pool)
	memberStore := membership.NewStore(pool)
	taskService := task.NewService(task.NewStore(pool))

	// Check if seed has already run.
	if _, err := userStore.GetByEmail(ctx, demoUsers[0].Email); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	users := make([]*user.User, 0, len(demoUsers))
	for _, input := range demoUsers {
		u, err := userStore.Create(ctx, input)
		if err != nil {
			return fmt.Errorf("creating user %q: %w", input.Email, err)
		}
		slog.Info("created user", "email", u.Email, "id", u.ID)
		users = append(users, u)
	}

	p, err := projectStore.Create(ctx, project.CreateProjectInput{
		Name:        "Demo Project",
		Description: "A sample project to explore roles, tasks, and time tracking.",
	})
	if err != nil {
		return fmt.Errorf("creating demo project: %w", err)
	}
	slog.Info("created project", "name", p.Name, "id", p.ID)

	roles := []membership.Role{membership.RoleManager, membership.RoleDeveloper, membership.RoleTester}
	for i, role := range roles {
		// users[0] is the admin; members start at index 1.
		member := users[i+1]
		if _, err := memberStore.AddMember(ctx, p.ID, member.ID, role); err != nil {
			return fmt.Errorf("adding %s as %s: %w", member.Email, role, err)
		}
		slog.Info("added member", "email", member.Email, "role", role)
	}

	for _, input := range demoTasks {
		t, err := taskService.Create(ctx, p.ID, input)
		if err != nil {
			return fmt.Errorf("creating task %q: %w", input.Title, err)
		}
		slog.Info("created task", "title", t.Title, "id", t.ID)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Project:  %s (%s)\n", p.Name, p.ID)
	fmt.Printf("Users:    %d created (1 admin, 3 members)\n", len(users))
	fmt.Printf("Tasks:    %d created\n", len(demoTasks))
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"admin@taskora.local\",\"password\":\"admin-password\"}'\n")
	fmt.Printf("  curl -H 'Authorization: Bearer <token>' http://localhost:8080/api/v1/projects\n")

	return nil
}
