// Package memory is a process-local task backend used for demos and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gosuda/vibetodo/internal/domain"
)

// TaskRepo keeps tasks in insertion order behind a mutex. Stored values are
// cloned on the way in and out so callers never share state with the store.
type TaskRepo struct {
	mu     sync.RWMutex
	nextID int64
	order  []domain.TaskID
	tasks  map[domain.TaskID]*domain.Task
	now    func() time.Time
}

var _ domain.TaskRepository = (*TaskRepo)(nil)

func NewTaskRepo() *TaskRepo {
	return &TaskRepo{
		tasks: make(map[domain.TaskID]*domain.Task),
		now:   time.Now,
	}
}

func (r *TaskRepo) Name() string { return "memory" }

func (r *TaskRepo) Save(_ context.Context, t *domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("memory.Save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	stored := t.Clone()
	stored.UpdatedAt = now

	if stored.ID == "" {
		r.nextID++
		stored.ID = domain.TaskID(strconv.FormatInt(r.nextID, 10))
		stored.CreatedAt = now
		r.order = append(r.order, stored.ID)
	} else {
		existing, ok := r.tasks[stored.ID]
		if !ok {
			return nil, fmt.Errorf("memory.Save: unknown task id %q: %w", t.ID, domain.ErrValidation)
		}
		stored.CreatedAt = existing.CreatedAt
	}

	r.tasks[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *TaskRepo) GetByID(_ context.Context, id domain.TaskID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tasks[id].Clone(), nil
}

func (r *TaskRepo) ListAll(_ context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*domain.Task, 0, len(r.order))
	for _, id := range r.order {
		t := r.tasks[id]
		if status != nil && t.Status != *status {
			continue
		}
		tasks = append(tasks, t.Clone())
	}
	return tasks, nil
}

func (r *TaskRepo) Delete(_ context.Context, id domain.TaskID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return false, nil
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}
