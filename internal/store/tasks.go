// ABOUTME: SQLiteStore methods for the tasks table
// ABOUTME: Create, get, filtered list ordered by due date, partial update, delete

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const taskColumns = `id, title, description, due_date, status, priority, category, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var dueDate sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&t.ID, &t.Title, &t.Description, &dueDate, &t.Status, &t.Priority, &t.Category, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if dueDate.Valid {
		if d, err := time.Parse(time.RFC3339, dueDate.String); err == nil {
			t.DueDate = &d
		}
	}
	return &t, nil
}

// CreateTask inserts a new task. ID, defaults and timestamps are set on task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *Task) error {
	applyDefaults(task, time.Now())

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, due_date, status, priority, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, task.Title, task.Description, nullTime(task.DueDate), task.Status, task.Priority, task.Category,
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks lists tasks with optional filters, soonest due first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var args []any
	sqlQuery := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`

	if filter.Status != "" {
		sqlQuery += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		sqlQuery += ` AND priority = ?`
		args = append(args, filter.Priority)
	}
	sqlQuery += ` ORDER BY due_date IS NULL, due_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies a partial update in a single statement.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id int64, patch TaskPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	switch {
	case patch.ClearDueDate:
		add("due_date", nil)
	case patch.DueDate != nil:
		add("due_date", formatTime(*patch.DueDate))
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask deletes a task by ID. A missing id is not an error; it reports zero changes.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
