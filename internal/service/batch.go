package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Batch operations run sequentially. Ids that do not exist are skipped and
// not counted. The first storage error stops the batch and is returned with
// the count reached so far.

func (s *Service) BatchSetStatus(ctx context.Context, ids []domain.TaskID, status domain.TaskStatus) (int, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("service.BatchSetStatus: invalid status %q: %w", status, domain.ErrValidation)
	}
	return s.batch(ctx, "service.BatchSetStatus", ids, func(t *domain.Task) error {
		t.Status = status
		return nil
	})
}

func (s *Service) BatchSetPriority(ctx context.Context, ids []domain.TaskID, priority domain.TaskPriority) (int, error) {
	if !priority.Valid() {
		return 0, fmt.Errorf("service.BatchSetPriority: invalid priority %q: %w", priority, domain.ErrValidation)
	}
	return s.batch(ctx, "service.BatchSetPriority", ids, func(t *domain.Task) error {
		t.Priority = priority
		return nil
	})
}

// BatchSetProject assigns project; an empty project clears it.
func (s *Service) BatchSetProject(ctx context.Context, ids []domain.TaskID, project string) (int, error) {
	return s.batch(ctx, "service.BatchSetProject", ids, func(t *domain.Task) error {
		t.Project = project
		return nil
	})
}

// BatchAddTags merges tags into each task, keeping existing tags first.
func (s *Service) BatchAddTags(ctx context.Context, ids []domain.TaskID, tags []string) (int, error) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return 0, fmt.Errorf("service.BatchAddTags: no tags given: %w", domain.ErrValidation)
	}
	return s.batch(ctx, "service.BatchAddTags", ids, func(t *domain.Task) error {
		t.AddTags(tags...)
		return nil
	})
}

func (s *Service) BatchDelete(ctx context.Context, ids []domain.TaskID) (int, error) {
	n := 0
	for _, id := range ids {
		ok, err := s.Delete(ctx, id)
		if err != nil {
			return n, fmt.Errorf("service.BatchDelete: %w", err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Service) batch(ctx context.Context, op string, ids []domain.TaskID, fn func(*domain.Task) error) (int, error) {
	n := 0
	for _, id := range ids {
		t, err := s.mutate(ctx, op, id, fn)
		if err != nil {
			return n, err
		}
		if t != nil {
			n++
		}
	}

	log.Debug().Str("op", op).Int("requested", len(ids)).Int("affected", n).Msg("batch finished")

	return n, nil
}
