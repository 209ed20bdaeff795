package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// TaskID is an opaque, backend-assigned identifier. Local stores render their
// integer keys in decimal; remote stores use their native string ids.
type TaskID string

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone} //nolint:gochecknoglobals // fixed enumeration

func (s TaskStatus) Valid() bool {
	return slices.Contains(TaskStatuses, s)
}

// ParseStatus accepts the canonical status text case-insensitively.
func ParseStatus(s string) (TaskStatus, error) {
	v := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("invalid status %q (want todo, in_progress or done): %w", s, ErrValidation)
	}
	return v, nil
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskPriorities lists every priority from lowest to highest.
var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent} //nolint:gochecknoglobals // fixed enumeration

func (p TaskPriority) Valid() bool {
	return slices.Contains(TaskPriorities, p)
}

// ParsePriority accepts the canonical priority text case-insensitively.
func ParsePriority(s string) (TaskPriority, error) {
	v := TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("invalid priority %q (want low, medium, high or urgent): %w", s, ErrValidation)
	}
	return v, nil
}

type Task struct {
	ID               TaskID
	Title            string
	Description      string
	Status           TaskStatus
	Priority         TaskPriority
	DueDate          *time.Time // nullable
	Tags             []string
	Project          string
	TimeSpentMinutes int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewTask returns an unsaved task with default status and priority.
func NewTask(title string) *Task {
	return &Task{
		Title:    title,
		Status:   TaskStatusTodo,
		Priority: TaskPriorityMedium,
	}
}

// Validate checks the fields every backend requires.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title must not be empty: %w", ErrValidation)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q: %w", t.Status, ErrValidation)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q: %w", t.Priority, ErrValidation)
	}
	if t.TimeSpentMinutes < 0 {
		return fmt.Errorf("time spent must be >= 0, got %d: %w", t.TimeSpentMinutes, ErrValidation)
	}
	return nil
}

func (t *Task) MarkDone()       { t.Status = TaskStatusDone }
func (t *Task) MarkInProgress() { t.Status = TaskStatusInProgress }

// Pause moves an in-progress task back to todo. Other statuses are left alone.
func (t *Task) Pause() {
	if t.Status == TaskStatusInProgress {
		t.Status = TaskStatusTodo
	}
}

// AddTime accumulates minutes. Non-positive deltas are ignored.
func (t *Task) AddTime(minutes int) {
	if minutes > 0 {
		t.TimeSpentMinutes += minutes
	}
}

// FormatTimeSpent renders the accumulator as "1h 30m", "2h" or "45m".
func (t *Task) FormatTimeSpent() string {
	return FormatMinutes(t.TimeSpentMinutes)
}

func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// IsOverdue reports whether the due date has passed and the task is not done.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskStatusDone {
		return false
	}
	return now.After(*t.DueDate)
}

// DaysUntilDue returns whole calendar days until the due date, negative when
// overdue. ok is false when no due date is set.
func (t *Task) DaysUntilDue(now time.Time) (days int, ok bool) {
	if t.DueDate == nil {
		return 0, false
	}
	due := t.DueDate.UTC()
	n := now.UTC()
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today).Hours() / 24), true
}

// HasTag matches case-insensitively.
func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// AddTags appends tags not already present, preserving insertion order.
func (t *Task) AddTags(tags ...string) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || t.HasTag(tag) {
			continue
		}
		t.Tags = append(t.Tags, tag)
	}
}

// Clone returns a deep copy so stores never alias caller-owned slices or pointers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Tags != nil {
		c.Tags = slices.Clone(t.Tags)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}

// TaskRepository is the capability set every storage backend implements.
//
// GetByID returns (nil, nil) when the task does not exist, and Delete
// reports false rather than failing. ListAll with a nil status returns every task.
type TaskRepository interface {
	Save(ctx context.Context, t *Task) (*Task, error)
	GetByID(ctx context.Context, id TaskID) (*Task, error)
	ListAll(ctx context.Context, status *TaskStatus) ([]*Task, error)
	Delete(ctx context.Context, id TaskID) (bool, error)
}

// Named is implemented by repositories that report a backend name for
// exports and logs.
type Named interface {
	Name() string
}

// BackendName returns repo's name, or "unknown" when it does not report one.
func BackendName(repo TaskRepository) string {
	if n, ok := repo.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
