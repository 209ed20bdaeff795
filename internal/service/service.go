// Package service is the single entry point the CLI, the web UI and the API
// use to work with tasks. It validates input and delegates storage to the
// configured domain.TaskRepository.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Service orchestrates task operations over one repository.
type Service struct {
	repo domain.TaskRepository
	now  func() time.Time
}

func New(repo domain.TaskRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock returns a copy of the service using now for overdue checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Backend names the active repository.
func (s *Service) Backend() string {
	return domain.BackendName(s.repo)
}

// Repository exposes the underlying repository to import and export.
func (s *Service) Repository() domain.TaskRepository {
	return s.repo
}

// CreateParams is the field-by-field creation convention.
type CreateParams struct {
	Title            string
	Description      string
	Status           domain.TaskStatus
	Priority         domain.TaskPriority
	DueDate          *time.Time
	Tags             []string
	Project          string
	TimeSpentMinutes int
}

// Create persists a new task from individual fields. It produces the same
// result as CreateTask given an equivalent task.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Task, error) {
	t := &domain.Task{
		Title:            p.Title,
		Description:      p.Description,
		Status:           p.Status,
		Priority:         p.Priority,
		DueDate:          p.DueDate,
		Tags:             p.Tags,
		Project:          p.Project,
		TimeSpentMinutes: p.TimeSpentMinutes,
	}
	return s.create(ctx, "service.Create", t)
}

// CreateTask persists a pre-built task. The caller's value is not modified
// and any id it carries is ignored.
func (s *Service) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("service.CreateTask: nil task: %w", domain.ErrValidation)
	}
	return s.create(ctx, "service.CreateTask", t)
}

func (s *Service) create(ctx context.Context, op string, t *domain.Task) (*domain.Task, error) {
	prepared, err := prepareNew(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := s.repo.Save(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug().Str("task_id", string(saved.ID)).Str("backend", s.Backend()).Msg("task created")

	return saved, nil
}

// prepareNew is the one normalisation path for both creation conventions.
func prepareNew(in *domain.Task) (*domain.Task, error) {
	t := in.Clone()
	t.ID = ""
	t.CreatedAt, t.UpdatedAt = time.Time{}, time.Time{}
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = domain.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = domain.TaskPriorityMedium
	}
	t.Tags = normalizeTags(t.Tags)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// normalizeTags trims, drops empties and de-duplicates while keeping order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	t := &domain.Task{}
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			t.AddTags(tag)
		}
	}
	return t.Tags
}

// Get returns the task or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	if id == "" {
		return nil, nil
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.Get: %w", err)
	}
	return t, nil
}

// ListFilter narrows List. Status is pushed down to the repository; the other
// criteria are applied to its result, preserving order.
type ListFilter struct {
	Status  *domain.TaskStatus
	Project string
	Tag     string
	// Overdue keeps only open tasks past their due date.
	Overdue bool
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*domain.Task, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("service.List: invalid status %q: %w", *f.Status, domain.ErrValidation)
	}

	all, err := s.repo.ListAll(ctx, f.Status)
	if err != nil {
		return nil, fmt.Errorf("service.List: %w", err)
	}

	if f.Project == "" && f.Tag == "" && !f.Overdue {
		return all, nil
	}

	now := s.now()
	out := make([]*domain.Task, 0, len(all))
	for _, t := range all {
		if f.Project != "" && !strings.EqualFold(t.Project, f.Project) {
			continue
		}
		if f.Tag != "" && !t.HasTag(f.Tag) {
			continue
		}
		if f.Overdue && !t.IsOverdue(now) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateParams lists the fields to change; nil fields are left alone.
type UpdateParams struct {
	Title        *string
	Description  *string
	Priority     *domain.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
	Project      *string
}

// Update applies a partial change through get-then-save. It returns nil when
// the task does not exist.
func (s *Service) Update(ctx context.Context, id domain.TaskID, p UpdateParams) (*domain.Task, error) {
	return s.mutate(ctx, "service.Update", id, func(t *domain.Task) error {
		if p.Title != nil {
			t.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Priority != nil {
			if !p.Priority.Valid() {
				return fmt.Errorf("invalid priority %q: %w", *p.Priority, domain.ErrValidation)
			}
			t.Priority = *p.Priority
		}
		switch {
		case p.ClearDueDate:
			t.DueDate = nil
		case p.DueDate != nil:
			due := *p.DueDate
			t.DueDate = &due
		}
		if p.Tags != nil {
			t.Tags = normalizeTags(*p.Tags)
		}
		if p.Project != nil {
			t.Project = strings.TrimSpace(*p.Project)
		}
		return nil
	})
}

// SetStatus moves a task to status. It returns nil when the task does not exist.
func (s *Service) SetStatus(ctx context.Context, id domain.TaskID, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("service.SetStatus: invalid status %q: %w", status, domain.ErrValidation)
	}
	return s.mutate(ctx, "service.SetStatus", id, func(t *domain.Task) error {
		t.Status = status
		return nil
	})
}

func (s *Service) Start(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	return s.mutate(ctx, "service.Start", id, func(t *domain.Task) error {
		t.MarkInProgress()
		return nil
	})
}

func (s *Service) Complete(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	return s.mutate(ctx, "service.Complete", id, func(t *domain.Task) error {
		t.MarkDone()
		return nil
	})
}

// Pause moves an in-progress task back to todo; other statuses are kept.
func (s *Service) Pause(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	return s.mutate(ctx, "service.Pause", id, func(t *domain.Task) error {
		t.Pause()
		return nil
	})
}

// AddTime adds minutes to the task's accumulator.
//
// This is a read followed by a full save, not an atomic increment: two
// concurrent calls for the same task can lose one of the deltas.
func (s *Service) AddTime(ctx context.Context, id domain.TaskID, minutes int) (*domain.Task, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("service.AddTime: minutes must be >= 0, got %d: %w", minutes, domain.ErrValidation)
	}
	return s.mutate(ctx, "service.AddTime", id, func(t *domain.Task) error {
		t.AddTime(minutes)
		return nil
	})
}

// Replace overwrites every mutable field of task id with t's, keeping the id.
// The caller's value is not modified.
func (s *Service) Replace(ctx context.Context, id domain.TaskID, t *domain.Task) (*domain.Task, error) {
	if id == "" || t == nil {
		return nil, fmt.Errorf("service.Replace: id and task are required: %w", domain.ErrValidation)
	}

	prepared, err := prepareNew(t)
	if err != nil {
		return nil, fmt.Errorf("service.Replace: %w", err)
	}
	prepared.ID = id

	saved, err := s.repo.Save(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("service.Replace: %w", err)
	}

	log.Debug().Str("task_id", string(saved.ID)).Str("backend", s.Backend()).Msg("task replaced")

	return saved, nil
}

// Delete reports whether a task existed and was removed.
func (s *Service) Delete(ctx context.Context, id domain.TaskID) (bool, error) {
	if id == "" {
		return false, nil
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("service.Delete: %w", err)
	}
	if ok {
		log.Debug().Str("task_id", string(id)).Str("backend", s.Backend()).Msg("task deleted")
	}
	return ok, nil
}

// mutate loads a task, applies fn and saves the result. A missing task
// yields (nil, nil).
func (s *Service) mutate(ctx context.Context, op string, id domain.TaskID, fn func(*domain.Task) error) (*domain.Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if t == nil {
		return nil, nil
	}

	if err := fn(t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := s.repo.Save(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug().Str("op", op).Str("task_id", string(saved.ID)).Str("backend", s.Backend()).Msg("task updated")

	return saved, nil
}
