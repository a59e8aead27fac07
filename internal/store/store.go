// ABOUTME: TaskStore interface and data types for punch-gateway persistence
// ABOUTME: Defines the Task struct, list filters, partial updates, and ErrNotFound

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested task does not exist
var ErrNotFound = errors.New("not found")

// Task status values
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Task priority values
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// DefaultCategory is assigned when a task is created without one
const DefaultCategory = "general"

// Task represents a single row in the tasks table
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`   // pending, in_progress, completed
	Priority    string     `json:"priority"` // low, medium, high
	Category    string     `json:"category"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	Status   string
	Priority string
}

// TaskPatch describes a partial update. Nil fields are left untouched.
// ClearDueDate sets the due date to null and takes precedence over DueDate.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	Category     *string
	DueDate      *time.Time
	ClearDueDate bool
}

// TaskStore defines the persistence operations used by the task tools
type TaskStore interface {
	// CreateTask inserts a task and sets its ID and timestamps.
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id int64) (*Task, error)
	// ListTasks returns tasks ordered by due date ascending, undated tasks last.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)
	// UpdateTask applies patch to the task and always refreshes updated_at.
	// Returns ErrNotFound if no task has the given id.
	UpdateTask(ctx context.Context, id int64, patch TaskPatch) error
	// DeleteTask removes a task and reports how many rows were deleted.
	DeleteTask(ctx context.Context, id int64) (int64, error)

	// Close releases any resources held by the store
	Close() error
}

// applyDefaults fills the column defaults for a new task
func applyDefaults(task *Task, now time.Time) {
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Category == "" {
		task.Category = DefaultCategory
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
}
