// ABOUTME: Tasks pack: list_tasks, add_task, update_task, delete_task over a TaskStore.
// ABOUTME: Resolves natural-language due text through a duedate.Resolver.

package builtins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/punchai/punch-gateway/internal/duedate"
	"github.com/punchai/punch-gateway/internal/packs"
	"github.com/punchai/punch-gateway/internal/store"
)

// TasksPackID identifies the tasks pack in the registry
const TasksPackID = "builtin:tasks"

type taskHandlers struct {
	store    store.TaskStore
	resolver duedate.Resolver
	now      func() time.Time
}

// TasksPack creates the tasks pack backed by s, resolving due text with r.
func TasksPack(s store.TaskStore, r duedate.Resolver) *packs.BuiltinPack {
	h := &taskHandlers{store: s, resolver: r, now: time.Now}
	return &packs.BuiltinPack{
		ID: TasksPackID,
		Tools: []*packs.BuiltinTool{
			packs.TypedTool("list_tasks", "List tasks ordered by due date. Optionally filter by status and priority.", h.ListTasks),
			packs.TypedTool("add_task", "Add a new task. The due field accepts natural language like 'tomorrow 5pm'.", h.AddTask),
			packs.TypedTool("update_task", "Update an existing task. Only the supplied fields change.", h.UpdateTask),
			packs.TypedTool("delete_task", "Delete a task by id.", h.DeleteTask),
		},
	}
}

type listTasksInput struct {
	Status   string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	Priority string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
}

// ListTasks returns {"tasks": [...], "count": n}.
func (h *taskHandlers) ListTasks(ctx context.Context, callerID string, in listTasksInput) (any, error) {
	tasks, err := h.store.ListTasks(ctx, store.TaskFilter{Status: in.Status, Priority: in.Priority})
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

type addTaskInput struct {
	Title       string  `json:"title" jsonschema:"description=Short title of the task"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
	Status      string  `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	Category    string  `json:"category,omitempty"`
	Due         *string `json:"due,omitempty" jsonschema:"description=When the task is due in natural language"`
	DueDate     *string `json:"due_date,omitempty" jsonschema:"description=Alias for due"`
}

// AddTask creates a task and returns its id.
func (h *taskHandlers) AddTask(ctx context.Context, callerID string, in addTaskInput) (any, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}

	task := &store.Task{
		Title:       title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		Category:    in.Category,
	}
	if text := dueText(in.Due, in.DueDate); text != nil {
		task.DueDate = h.resolver.Resolve(*text, h.now())
	}

	if err := h.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}

	return map[string]any{
		"id":       task.ID,
		"message":  "Task added successfully",
		"due_date": task.DueDate,
	}, nil
}

type updateTaskInput struct {
	ID          int64   `json:"id" jsonschema:"description=Id of the task to update"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	Priority    *string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
	Category    *string `json:"category,omitempty"`
	Due         *string `json:"due,omitempty" jsonschema:"description=New due date in natural language; empty clears it"`
	DueDate     *string `json:"due_date,omitempty" jsonschema:"description=Alias for due"`
}

// UpdateTask applies the supplied fields. An unknown id is an error.
func (h *taskHandlers) UpdateTask(ctx context.Context, callerID string, in updateTaskInput) (any, error) {
	patch := store.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Category:    in.Category,
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, errors.New("title must not be empty")
	}
	if text := dueText(in.Due, in.DueDate); text != nil {
		if resolved := h.resolver.Resolve(*text, h.now()); resolved != nil {
			patch.DueDate = resolved
		} else {
			patch.ClearDueDate = true
		}
	}

	if err := h.store.UpdateTask(ctx, in.ID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("task %d %w", in.ID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("updating task: %w", err)
	}

	return map[string]any{"id": in.ID, "message": "Task updated successfully"}, nil
}

type deleteTaskInput struct {
	ID int64 `json:"id" jsonschema:"description=Id of the task to delete"`
}

// DeleteTask removes a task; a missing id reports zero changes.
func (h *taskHandlers) DeleteTask(ctx context.Context, callerID string, in deleteTaskInput) (any, error) {
	n, err := h.store.DeleteTask(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("deleting task: %w", err)
	}
	return map[string]any{"id": in.ID, "deleted": n > 0, "changes": n}, nil
}

// dueText picks "due" over its "due_date" alias.
func dueText(due, alias *string) *string {
	if due != nil {
		return due
	}
	return alias
}
