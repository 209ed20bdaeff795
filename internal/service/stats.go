package service

import (
	"context"
	"fmt"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Stats summarises every task in the active backend.
type Stats struct {
	Total            int
	Todo             int
	InProgress       int
	Done             int
	Overdue          int
	TotalTimeMinutes int
}

// TotalTimeHours is the accumulated time in fractional hours.
func (s Stats) TotalTimeHours() float64 {
	return float64(s.TotalTimeMinutes) / 60
}

func (s *Service) Statistics(ctx context.Context) (Stats, error) {
	all, err := s.repo.ListAll(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("service.Statistics: %w", err)
	}

	now := s.now()
	st := Stats{Total: len(all)}
	for _, t := range all {
		switch t.Status {
		case domain.TaskStatusTodo:
			st.Todo++
		case domain.TaskStatusInProgress:
			st.InProgress++
		case domain.TaskStatusDone:
			st.Done++
		}
		if t.IsOverdue(now) {
			st.Overdue++
		}
		st.TotalTimeMinutes += t.TimeSpentMinutes
	}
	return st, nil
}
