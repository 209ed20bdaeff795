package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
)

// Task is the API representation of a task.
type Task struct {
	ID               string    `json:"id" doc:"Backend-assigned task ID"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Status           string    `json:"status" enum:"todo,in_progress,done"`
	Priority         string    `json:"priority" enum:"low,medium,high,urgent"`
	DueDate          *string   `json:"due_date" doc:"YYYY-MM-DD, or RFC 3339 when a time is set"`
	Tags             []string  `json:"tags"`
	Project          string    `json:"project"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	TimeSpent        string    `json:"time_spent" doc:"Human readable time spent, e.g. 1h 30m"`
	Overdue          bool      `json:"overdue"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func taskFromDomain(t *domain.Task, now time.Time) *Task {
	out := &Task{
		ID:               string(t.ID),
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		Priority:         string(t.Priority),
		Tags:             t.Tags,
		Project:          t.Project,
		TimeSpentMinutes: t.TimeSpentMinutes,
		TimeSpent:        t.FormatTimeSpent(),
		Overdue:          t.IsOverdue(now),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if t.DueDate != nil {
		due := domain.FormatDate(*t.DueDate)
		out.DueDate = &due
	}
	return out
}

type CreateTaskInput struct {
	Body struct {
		Title            string   `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
		Description      string   `json:"description,omitempty" doc:"Task description"`
		Status           string   `json:"status,omitempty" doc:"todo, in_progress or done (default todo)"`
		Priority         string   `json:"priority,omitempty" doc:"low, medium, high or urgent (default medium)"`
		DueDate          string   `json:"due_date,omitempty" doc:"YYYY-MM-DD or an ISO-8601 timestamp"`
		Tags             []string `json:"tags,omitempty" doc:"Tags"`
		Project          string   `json:"project,omitempty" doc:"Project label"`
		TimeSpentMinutes int      `json:"time_spent_minutes,omitempty" minimum:"0" doc:"Initial time spent"`
	}
}

type TaskOutput struct {
	Body *Task
}

type ListTasksInput struct {
	Status  string `query:"status" doc:"Filter by status"`
	Project string `query:"project" doc:"Filter by project (case-insensitive)"`
	Tag     string `query:"tag" doc:"Filter by tag (case-insensitive)"`
	Overdue bool   `query:"overdue" doc:"Only open tasks past their due date"`
}

type ListTasksOutput struct {
	Body []*Task
}

type TaskIDInput struct {
	ID string `path:"id" doc:"Task ID"`
}

type UpdateTaskInput struct {
	ID   string `path:"id" doc:"Task ID"`
	Body struct {
		Title       *string  `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Description *string  `json:"description,omitempty" doc:"Task description"`
		Priority    *string  `json:"priority,omitempty" doc:"Task priority"`
		DueDate     *string  `json:"due_date,omitempty" doc:"Due date; an empty string clears it"`
		Tags        []string `json:"tags,omitempty" doc:"Replaces all tags when present"`
		Project     *string  `json:"project,omitempty" doc:"Project label; an empty string clears it"`
	}
}

type SetStatusInput struct {
	ID   string `path:"id" doc:"Task ID"`
	Body struct {
		Status string `json:"status" minLength:"1" doc:"Target status"`
	}
}

type AddTimeInput struct {
	ID   string `path:"id" doc:"Task ID"`
	Body struct {
		Minutes int `json:"minutes" minimum:"0" doc:"Minutes to add"`
	}
}

func RegisterTaskRoutes(api huma.API, svc TaskService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a new task",
		Tags:          []string{"Tasks"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
		p := service.CreateParams{
			Title:            input.Body.Title,
			Description:      input.Body.Description,
			Tags:             input.Body.Tags,
			Project:          input.Body.Project,
			TimeSpentMinutes: input.Body.TimeSpentMinutes,
		}

		var err error
		if input.Body.Status != "" {
			if p.Status, err = domain.ParseStatus(input.Body.Status); err != nil {
				return nil, httpError(err, "invalid status")
			}
		}
		if input.Body.Priority != "" {
			if p.Priority, err = domain.ParsePriority(input.Body.Priority); err != nil {
				return nil, httpError(err, "invalid priority")
			}
		}
		if input.Body.DueDate != "" {
			due, err := domain.ParseDate(input.Body.DueDate)
			if err != nil {
				return nil, httpError(err, "invalid due date")
			}
			p.DueDate = &due
		}

		t, err := svc.Create(ctx, p)
		if err != nil {
			return nil, httpError(err, "failed to create task")
		}

		return &TaskOutput{Body: taskFromDomain(t, time.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
		f := service.ListFilter{
			Project: strings.TrimSpace(input.Project),
			Tag:     strings.TrimSpace(input.Tag),
			Overdue: input.Overdue,
		}
		if input.Status != "" {
			status, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, httpError(err, "invalid status")
			}
			f.Status = &status
		}

		tasks, err := svc.List(ctx, f)
		if err != nil {
			return nil, httpError(err, "failed to list tasks")
		}

		now := time.Now()
		out := make([]*Task, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, taskFromDomain(t, now))
		}
		return &ListTasksOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task by ID",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskIDInput) (*TaskOutput, error) {
		t, err := svc.Get(ctx, domain.TaskID(input.ID))
		if err != nil {
			return nil, httpError(err, "failed to get task")
		}
		if t == nil {
			return nil, taskNotFound()
		}
		return &TaskOutput{Body: taskFromDomain(t, time.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update a task",
		Description: "Only the fields present in the body are changed.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		b := input.Body
		p := service.UpdateParams{
			Title:       b.Title,
			Description: b.Description,
			Project:     b.Project,
		}
		if b.Priority != nil {
			priority, err := domain.ParsePriority(*b.Priority)
			if err != nil {
				return nil, httpError(err, "invalid priority")
			}
			p.Priority = &priority
		}
		if b.DueDate != nil {
			if strings.TrimSpace(*b.DueDate) == "" {
				p.ClearDueDate = true
			} else {
				due, err := domain.ParseDate(*b.DueDate)
				if err != nil {
					return nil, httpError(err, "invalid due date")
				}
				p.DueDate = &due
			}
		}
		if b.Tags != nil {
			p.Tags = &b.Tags
		}

		t, err := svc.Update(ctx, domain.TaskID(input.ID), p)
		if err != nil {
			return nil, httpError(err, "failed to update task")
		}
		if t == nil {
			return nil, taskNotFound()
		}
		return &TaskOutput{Body: taskFromDomain(t, time.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/status",
		Summary:     "Set task status",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *SetStatusInput) (*TaskOutput, error) {
		status, err := domain.ParseStatus(input.Body.Status)
		if err != nil {
			return nil, httpError(err, "invalid status")
		}

		t, err := svc.SetStatus(ctx, domain.TaskID(input.ID), status)
		if err != nil {
			return nil, httpError(err, "failed to update task status")
		}
		if t == nil {
			return nil, taskNotFound()
		}
		return &TaskOutput{Body: taskFromDomain(t, time.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-task-time",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/time",
		Summary:     "Add time spent to a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *AddTimeInput) (*TaskOutput, error) {
		t, err := svc.AddTime(ctx, domain.TaskID(input.ID), input.Body.Minutes)
		if err != nil {
			return nil, httpError(err, "failed to add time")
		}
		if t == nil {
			return nil, taskNotFound()
		}
		return &TaskOutput{Body: taskFromDomain(t, time.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskIDInput) (*struct{}, error) {
		ok, err := svc.Delete(ctx, domain.TaskID(input.ID))
		if err != nil {
			return nil, httpError(err, "failed to delete task")
		}
		if !ok {
			return nil, taskNotFound()
		}
		return nil, nil
	})
}
