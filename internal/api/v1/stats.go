package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type StatsOutput struct {
	Body struct {
		Backend          string  `json:"backend"`
		Total            int     `json:"total"`
		Todo             int     `json:"todo"`
		InProgress       int     `json:"in_progress"`
		Done             int     `json:"done"`
		Overdue          int     `json:"overdue"`
		TotalTimeMinutes int     `json:"total_time_minutes"`
		TotalTimeHours   float64 `json:"total_time_hours"`
	}
}

func RegisterStatsRoutes(api huma.API, svc TaskService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Task statistics for the active backend",
		Tags:        []string{"Stats"},
	}, func(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
		st, err := svc.Statistics(ctx)
		if err != nil {
			return nil, httpError(err, "failed to compute statistics")
		}

		out := &StatsOutput{}
		out.Body.Backend = svc.Backend()
		out.Body.Total = st.Total
		out.Body.Todo = st.Todo
		out.Body.InProgress = st.InProgress
		out.Body.Done = st.Done
		out.Body.Overdue = st.Overdue
		out.Body.TotalTimeMinutes = st.TotalTimeMinutes
		out.Body.TotalTimeHours = st.TotalTimeHours()
		return out, nil
	})
}
