// ABOUTME: Tests for the SQLite and mock TaskStore implementations
// ABOUTME: Runs the same behavioural checks against both stores

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// storeFactories lets each behavioural test run against both implementations.
func storeFactories() map[string]func(t *testing.T) TaskStore {
	return map[string]func(t *testing.T) TaskStore{
		"sqlite": func(t *testing.T) TaskStore { return newTestStore(t) },
		"mock":   func(t *testing.T) TaskStore { return NewMockStore() },
	}
}

func strPtr(s string) *string { return &s }

func TestNewSQLiteStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='tasks'`).Scan(&name)
	if err != nil {
		t.Fatalf("tasks table missing: %v", err)
	}
}

func TestNewSQLiteStore_MigratesCategoryColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// Simulate a database created before the category column existed.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT NOT NULL DEFAULT 'medium',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO tasks (title, created_at, updated_at) VALUES ('old', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	_ = db.Close()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	got, err := s.GetTask(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Category != DefaultCategory {
		t.Errorf("Category = %q, want %q", got.Category, DefaultCategory)
	}
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			due := time.Date(2030, 5, 1, 17, 0, 0, 0, time.UTC)
			task := &Task{Title: "write report", Description: "quarterly", DueDate: &due}
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			if task.ID == 0 {
				t.Fatal("expected ID to be set")
			}

			got, err := s.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("GetTask: %v", err)
			}
			if got.Title != "write report" || got.Description != "quarterly" {
				t.Errorf("unexpected task: %+v", got)
			}
			if got.Status != StatusPending || got.Priority != PriorityMedium || got.Category != DefaultCategory {
				t.Errorf("defaults not applied: status=%q priority=%q category=%q", got.Status, got.Priority, got.Category)
			}
			if got.DueDate == nil || !got.DueDate.Equal(due) {
				t.Errorf("DueDate = %v, want %v", got.DueDate, due)
			}
			if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Error("expected timestamps to be set")
			}
		})
	}
}

func TestTaskStore_GetMissing(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			_, err := factory(t).GetTask(context.Background(), 999)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestTaskStore_ListFiltersAndOrder(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			later := time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
			sooner := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

			seed := []*Task{
				{Title: "undated", Priority: PriorityHigh},
				{Title: "later", Priority: PriorityHigh, DueDate: &later},
				{Title: "sooner", Priority: PriorityLow, DueDate: &sooner},
				{Title: "done", Priority: PriorityHigh, Status: StatusCompleted, DueDate: &sooner},
			}
			for _, task := range seed {
				if err := s.CreateTask(ctx, task); err != nil {
					t.Fatalf("CreateTask: %v", err)
				}
			}

			all, err := s.ListTasks(ctx, TaskFilter{})
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			wantOrder := []string{"sooner", "done", "later", "undated"}
			if len(all) != len(wantOrder) {
				t.Fatalf("expected %d tasks, got %d", len(wantOrder), len(all))
			}
			for i, title := range wantOrder {
				if all[i].Title != title {
					t.Errorf("position %d: got %q, want %q", i, all[i].Title, title)
				}
			}

			pendingHigh, err := s.ListTasks(ctx, TaskFilter{Status: StatusPending, Priority: PriorityHigh})
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(pendingHigh) != 2 {
				t.Fatalf("expected 2 pending high tasks, got %d", len(pendingHigh))
			}
			if pendingHigh[0].Title != "later" || pendingHigh[1].Title != "undated" {
				t.Errorf("unexpected filtered order: %q, %q", pendingHigh[0].Title, pendingHigh[1].Title)
			}

			none, err := s.ListTasks(ctx, TaskFilter{Status: "archived"})
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if none == nil || len(none) != 0 {
				t.Errorf("expected empty non-nil slice, got %v", none)
			}
		})
	}
}

func TestTaskStore_UpdatePartial(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			due := time.Date(2030, 5, 1, 17, 0, 0, 0, time.UTC)
			task := &Task{Title: "original", Description: "keep me", DueDate: &due}
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			err := s.UpdateTask(ctx, task.ID, TaskPatch{Title: strPtr("renamed"), Status: strPtr(StatusCompleted)})
			if err != nil {
				t.Fatalf("UpdateTask: %v", err)
			}

			got, err := s.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("GetTask: %v", err)
			}
			if got.Title != "renamed" || got.Status != StatusCompleted {
				t.Errorf("patch not applied: %+v", got)
			}
			if got.Description != "keep me" || got.Priority != PriorityMedium {
				t.Errorf("untouched fields changed: %+v", got)
			}
			if got.DueDate == nil || !got.DueDate.Equal(due) {
				t.Errorf("due date changed: %v", got.DueDate)
			}

			if err := s.UpdateTask(ctx, task.ID, TaskPatch{ClearDueDate: true}); err != nil {
				t.Fatalf("UpdateTask clear: %v", err)
			}
			got, _ = s.GetTask(ctx, task.ID)
			if got.DueDate != nil {
				t.Errorf("expected due date cleared, got %v", got.DueDate)
			}
		})
	}
}

func TestTaskStore_UpdateMissing(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			if err := s.CreateTask(ctx, &Task{Title: "only"}); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			err := s.UpdateTask(ctx, 42, TaskPatch{Title: strPtr("ghost")})
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			all, _ := s.ListTasks(ctx, TaskFilter{})
			if len(all) != 1 || all[0].Title != "only" {
				t.Errorf("store mutated by failed update: %+v", all)
			}
		})
	}
}

func TestTaskStore_DeleteTwice(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			task := &Task{Title: "temporary"}
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			n, err := s.DeleteTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("DeleteTask: %v", err)
			}
			if n != 1 {
				t.Errorf("first delete changes = %d, want 1", n)
			}

			n, err = s.DeleteTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("second DeleteTask: %v", err)
			}
			if n != 0 {
				t.Errorf("second delete changes = %d, want 0", n)
			}
		})
	}
}
