package task

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Validation errors returned by the Service layer.
var (
	ErrTitleRequired   = errors.New("title is required")
	ErrStatusInvalid   = errors.New("status must be one of: new, in_progress, completed, failed")
	ErrPriorityInvalid = errors.New("priority must be one of: low, medium, high")
	ErrDueDateRequired = errors.New("due_date is required")
	ErrDueDateInvalid  = errors.New("due_date must be a date in YYYY-MM-DD format")
)

var validStatuses = map[string]bool{
	StatusNew:        true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusFailed:     true,
}

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

const dueDateLayout = "2006-01-02"

// Service provides validated task lifecycle operations over the Store.
type Service struct {
	store *Store
}

// NewService creates a Service wrapping the given Store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Create validates the input and persists a task owned by the project.
func (s *Service) Create(ctx context.Context, projectID string, in CreateTaskInput) (*Task, error) {
	if in.Status == "" {
		in.Status = StatusNew
	}
	due, err := validateCreate(in)
	if err != nil {
		return nil, err
	}
	return s.store.Create(ctx, projectID, in, due)
}

// GetByID retrieves a task by its ID.
func (s *Service) GetByID(ctx context.Context, id string) (*Task, error) {
	return s.store.GetByID(ctx, id)
}

// UpdateStatus overwrites the status field only. Any value in the canonical
// set may be written; there is no transition guard.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Task, error) {
	if !validStatuses[status] {
		return nil, ErrStatusInvalid
	}
	return s.store.UpdateStatus(ctx, id, status)
}

// SetNote replaces the task's tester notes wholesale; each call discards
// the previous note.
func (s *Service) SetNote(ctx context.Context, id, note string) (*Task, error) {
	return s.store.SetNote(ctx, id, note)
}

// Update validates the provided fields and applies a partial update.
func (s *Service) Update(ctx context.Context, id string, in UpdateTaskInput) (*Task, error) {
	due, err := validateUpdate(in)
	if err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, in, due)
}

// Delete removes a task by its ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ListByProject returns the project's tasks, optionally filtered by status
// and/or priority. Absent filters place no constraint.
func (s *Service) ListByProject(ctx context.Context, projectID string, f Filter) ([]*Task, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, ErrStatusInvalid
	}
	if f.Priority != "" && !validPriorities[f.Priority] {
		return nil, ErrPriorityInvalid
	}
	return s.store.ListByProject(ctx, projectID, f)
}

// Latest returns the most recently created task of a project.
func (s *Service) Latest(ctx context.Context, projectID string) (*Task, error) {
	return s.store.Latest(ctx, projectID)
}

// Oldest returns the first created task of a project.
func (s *Service) Oldest(ctx context.Context, projectID string) (*Task, error) {
	return s.store.Oldest(ctx, projectID)
}

// HighestPriority returns the project's top-priority task. With a title the
// lookup matches that title at priority "high" only.
func (s *Service) HighestPriority(ctx context.Context, projectID, title string) (*Task, error) {
	return s.store.HighestPriority(ctx, projectID, title)
}

// validateCreate checks required fields and enum membership, returning the
// parsed due date.
func validateCreate(in CreateTaskInput) (time.Time, error) {
	if strings.TrimSpace(in.Title) == "" {
		return time.Time{}, ErrTitleRequired
	}
	if !validStatuses[in.Status] {
		return time.Time{}, ErrStatusInvalid
	}
	if !validPriorities[in.Priority] {
		return time.Time{}, ErrPriorityInvalid
	}
	if in.DueDate == "" {
		return time.Time{}, ErrDueDateRequired
	}
	due, err := time.Parse(dueDateLayout, in.DueDate)
	if err != nil {
		return time.Time{}, ErrDueDateInvalid
	}
	return due, nil
}

// validateUpdate checks that any provided fields are valid. The returned
// due date is non-nil only when a due_date was provided.
func validateUpdate(in UpdateTaskInput) (*time.Time, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, ErrTitleRequired
	}
	if in.Status != nil && !validStatuses[*in.Status] {
		return nil, ErrStatusInvalid
	}
	if in.Priority != nil && !validPriorities[*in.Priority] {
		return nil, ErrPriorityInvalid
	}
	if in.DueDate != nil {
		due, err := time.Parse(dueDateLayout, *in.DueDate)
		if err != nil {
			return nil, ErrDueDateInvalid
		}
		return &due, nil
	}
	return nil, nil
}
