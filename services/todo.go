package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github/itish2003/studybuddy/models"
	"github/itish2003/studybuddy/store"
)

const (
	TaskPending   = "Pending"
	TaskCompleted = "Completed"
)

var (
	ErrEmptyTask     = errors.New("task cannot be empty")
	ErrDuplicateTask = errors.New("task already exists")
	ErrTaskNotFound  = errors.New("task not found")
)

// TodoList is a session's ordered task list. Task events are appended to the
// history store when one is configured.
type TodoList struct {
	mu      sync.Mutex
	tasks   []models.Task
	history store.HistoryStore
	now     func() time.Time
}

func NewTodoList(history store.HistoryStore) *TodoList {
	return &TodoList{history: history, now: time.Now}
}

// Add appends a pending task. Titles are trimmed and must be unique.
func (t *TodoList) Add(ctx context.Context, title string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, ErrEmptyTask
	}

	t.mu.Lock()
	for _, existing := range t.tasks {
		if existing.Title == title {
			t.mu.Unlock()
			return models.Task{}, ErrDuplicateTask
		}
	}
	task := models.Task{Index: len(t.tasks), Title: title, Status: TaskPending}
	t.tasks = append(t.tasks, task)
	t.mu.Unlock()

	t.record(ctx, "added: "+title)
	return task, nil
}

// Toggle flips the task at index between Pending and Completed.
func (t *TodoList) Toggle(ctx context.Context, index int) (models.Task, error) {
	t.mu.Lock()
	if index < 0 || index >= len(t.tasks) {
		t.mu.Unlock()
		return models.Task{}, ErrTaskNotFound
	}
	if t.tasks[index].Status == TaskPending {
		t.tasks[index].Status = TaskCompleted
	} else {
		t.tasks[index].Status = TaskPending
	}
	task := t.tasks[index]
	t.mu.Unlock()

	t.record(ctx, strings.ToLower(task.Status)+": "+task.Title)
	return task, nil
}

func (t *TodoList) List() []models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Task{}, t.tasks...)
}

// Current is the task at the head of the list.
func (t *TodoList) Current() (models.Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.tasks) == 0 {
		return models.Task{}, false
	}
	return t.tasks[0], true
}

func (t *TodoList) record(ctx context.Context, value string) {
	if t.history == nil {
		return
	}
	rec := store.Record{Kind: store.KindTask, Value: value, Timestamp: t.now()}
	if err := t.history.Append(ctx, rec); err != nil {
		log.Printf("TODO WARN: could not record task event '%s': %v", value, err)
	}
}
