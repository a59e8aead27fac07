// ABOUTME: Mock TaskStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory TaskStore implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	tasks  map[int64]*Task
	nextID int64

	// Now returns the current time; tests may replace it.
	Now func() time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		tasks:  make(map[int64]*Task),
		nextID: 1,
		Now:    time.Now,
	}
}

// CreateTask stores a copy of task and assigns the next id.
func (m *MockStore) CreateTask(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	applyDefaults(task, m.Now())
	task.ID = m.nextID
	m.nextID++

	t := *task
	m.tasks[t.ID] = &t
	return nil
}

// GetTask returns a copy of the task with the given id.
func (m *MockStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	return &c, nil
}

// ListTasks returns matching tasks ordered like SQLiteStore.ListTasks.
func (m *MockStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := []*Task{}
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		c := *t
		tasks = append(tasks, &c)
	}

	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.ID < b.ID
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		default:
			return a.ID < b.ID
		}
	})
	return tasks, nil
}

// UpdateTask applies patch to the stored task.
func (m *MockStore) UpdateTask(ctx context.Context, id int64, patch TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	switch {
	case patch.ClearDueDate:
		t.DueDate = nil
	case patch.DueDate != nil:
		d := *patch.DueDate
		t.DueDate = &d
	}
	t.UpdatedAt = m.Now()
	return nil
}

// DeleteTask removes the task and reports 1 if it existed, 0 otherwise.
func (m *MockStore) DeleteTask(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return 0, nil
	}
	delete(m.tasks, id)
	return 1, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var (
	_ TaskStore = (*SQLiteStore)(nil)
	_ TaskStore = (*MockStore)(nil)
)
