package task

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateTaskInput
		wantErr error
	}{
		{
			name: "valid input",
			input: CreateTaskInput{
				Title:    "Fix login flow",
				Status:   "new",
				Priority: "high",
				DueDate:  "2025-01-01",
			},
			wantErr: nil,
		},
		{
			name: "empty title",
			input: CreateTaskInput{
				Title:    "",
				Status:   "new",
				Priority: "low",
				DueDate:  "2025-01-01",
			},
			wantErr: ErrTitleRequired,
		},
		{
			name: "whitespace-only title",
			input: CreateTaskInput{
				Title:    "   ",
				Status:   "new",
				Priority: "low",
				DueDate:  "2025-01-01",
			},
			wantErr: ErrTitleRequired,
		},
		{
			name: "pending is not a valid status",
			input: CreateTaskInput{
				Title:    "Task",
				Status:   "pending",
				Priority: "low",
				DueDate:  "2025-01-01",
			},
			wantErr: ErrStatusInvalid,
		},
		{
			name: "misspelled failed is rejected",
			input: CreateTaskInput{
				Title:    "Task",
				Status:   "fialed",
				Priority: "low",
				DueDate:  "2025-01-01",
			},
			wantErr: ErrStatusInvalid,
		},
		{
			name: "failed is valid",
			input: CreateTaskInput{
				Title:    "Task",
				Status:   "failed",
				Priority: "low",
				DueDate:  "2025-01-01",
			},
			wantErr: nil,
		},
		{
			name: "invalid priority",
			input: CreateTaskInput{
				Title:    "Task",
				Status:   "new",
				Priority: "urgent",
				DueDate:  "2025-01-01",
			},
			wantErr: ErrPriorityInvalid,
		},
		{
			name: "missing due date",
			input: CreateTaskInput{
				Title:    "Task",
				Status:   "new",
				Priority: "medium",
			},
			wantErr: ErrDueDateRequired,
		},
		{
			name: "malformed due date",
			input: CreateTaskInput{
				Title:    "Task",
				Status:   "new",
				Priority: "medium",
				DueDate:  "01/01/2025",
			},
			wantErr: ErrDueDateInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateCreate(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateCreate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCreate_ParsesDueDate(t *testing.T) {
	due, err := validateCreate(CreateTaskInput{
		Title:    "Task",
		Status:   "new",
		Priority: "high",
		DueDate:  "2025-06-15",
	})
	if err != nil {
		t.Fatalf("validateCreate() error: %v", err)
	}
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !due.Equal(want) {
		t.Errorf("parsed due date = %v, want %v", due, want)
	}
}

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		input   UpdateTaskInput
		wantErr error
	}{
		{name: "empty update is valid", input: UpdateTaskInput{}, wantErr: nil},
		{name: "valid status", input: UpdateTaskInput{Status: strPtr("in_progress")}, wantErr: nil},
		{name: "pending rejected on update too", input: UpdateTaskInput{Status: strPtr("pending")}, wantErr: ErrStatusInvalid},
		{name: "misspelled failed rejected on update", input: UpdateTaskInput{Status: strPtr("fialed")}, wantErr: ErrStatusInvalid},
		{name: "empty title rejected", input: UpdateTaskInput{Title: strPtr("")}, wantErr: ErrTitleRequired},
		{name: "invalid priority", input: UpdateTaskInput{Priority: strPtr("critical")}, wantErr: ErrPriorityInvalid},
		{name: "valid priority", input: UpdateTaskInput{Priority: strPtr("medium")}, wantErr: nil},
		{name: "malformed due date", input: UpdateTaskInput{DueDate: strPtr("soon")}, wantErr: ErrDueDateInvalid},
		{name: "valid due date", input: UpdateTaskInput{DueDate: strPtr("2025-12-31")}, wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateUpdate(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateUpdate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUpdate_ReturnsDueDateOnlyWhenProvided(t *testing.T) {
	due, err := validateUpdate(UpdateTaskInput{Title: strPtr("Renamed")})
	if err != nil {
		t.Fatalf("validateUpdate() error: %v", err)
	}
	if due != nil {
		t.Errorf("expected nil due date, got %v", due)
	}

	due, err = validateUpdate(UpdateTaskInput{DueDate: strPtr("2025-03-01")})
	if err != nil {
		t.Fatalf("validateUpdate() error: %v", err)
	}
	if due == nil || due.Day() != 1 || due.Month() != time.March {
		t.Errorf("expected parsed due date 2025-03-01, got %v", due)
	}
}
