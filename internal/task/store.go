package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, project_id, title, description, status, priority, due_date, tester_notes, created_at, updated_at`

// Store provides database operations for tasks.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a task store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanTask(row pgx.Row) (*Task, error) {
	t := &Task{}
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status,
		&t.Priority, &t.DueDate, &t.TesterNotes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new task owned by the given project.
func (s *Store) Create(ctx context.Context, projectID string, in CreateTaskInput, due time.Time) (*Task, error) {
	query := fmt.Sprintf(`INSERT INTO tasks (project_id, title, description, status, priority, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING %s`, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query,
		projectID, in.Title, in.Description, in.Status, in.Priority, due))
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

// GetByID retrieves a task by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// UpdateStatus overwrites the status column only.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (*Task, error) {
	query := fmt.Sprintf(`UPDATE tasks SET status = $2, updated_at = now()
		 WHERE id = $1 RETURNING %s`, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		return nil, fmt.Errorf("updating task status: %w", err)
	}
	return t, nil
}

// SetNote overwrites tester_notes; the previous note is replaced entirely.
func (s *Store) SetNote(ctx context.Context, id, note string) (*Task, error) {
	query := fmt.Sprintf(`UPDATE tasks SET tester_notes = $2, updated_at = now()
		 WHERE id = $1 RETURNING %s`, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, id, note))
	if err != nil {
		return nil, fmt.Errorf("setting task note: %w", err)
	}
	return t, nil
}

// Update performs a partial update on the task with the given id.
func (s *Store) Update(ctx context.Context, id string, in UpdateTaskInput, due *time.Time) (*Task, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.Title != nil {
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", argIdx))
		args = append(args, *in.Title)
		argIdx++
	}
	if in.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *in.Description)
		argIdx++
	}
	if in.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *in.Status)
		argIdx++
	}
	if in.Priority != nil {
		setClauses = append(setClauses, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, *in.Priority)
		argIdx++
	}
	if due != nil {
		setClauses = append(setClauses, fmt.Sprintf("due_date = $%d", argIdx))
		args = append(args, *due)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return t, nil
}

// Delete removes a task by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByProject returns the project's tasks, newest first. Empty filter
// fields add no WHERE clause.
func (s *Store) ListByProject(ctx context.Context, projectID string, f Filter) ([]*Task, error) {
	whereClauses := []string{"project_id = $1"}
	args := []any{projectID}
	argIdx := 2

	if f.Status != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, f.Status)
		argIdx++
	}
	if f.Priority != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, f.Priority)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC`,
		taskColumns, strings.Join(whereClauses, " AND "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Latest returns the most recently created task of a project.
func (s *Store) Latest(ctx context.Context, projectID string) (*Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE project_id = $1
		 ORDER BY created_at DESC LIMIT 1`, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, fmt.Errorf("getting latest task: %w", err)
	}
	return t, nil
}

// Oldest returns the first created task of a project.
func (s *Store) Oldest(ctx context.Context, projectID string) (*Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE project_id = $1
		 ORDER BY created_at ASC LIMIT 1`, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, fmt.Errorf("getting oldest task: %w", err)
	}
	return t, nil
}

// HighestPriority returns the project's top-priority task, newest first
// within the same priority. When title is given the lookup matches that
// title at priority "high" only.
func (s *Store) HighestPriority(ctx context.Context, projectID, title string) (*Task, error) {
	var query string
	args := []any{projectID}

	if title != "" {
		query = fmt.Sprintf(`SELECT %s FROM tasks
			 WHERE project_id = $1 AND title = $2 AND priority = 'high'
			 ORDER BY created_at DESC LIMIT 1`, taskColumns)
		args = append(args, title)
	} else {
		query = fmt.Sprintf(`SELECT %s FROM tasks
			 WHERE project_id = $1
			 ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
			          created_at DESC
			 LIMIT 1`, taskColumns)
	}

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("getting highest priority task: %w", err)
	}
	return t, nil
}
