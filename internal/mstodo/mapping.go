package mstodo

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Graph todoTask status values.
const (
	statusNotStarted      = "notStarted"
	statusInProgress      = "inProgress"
	statusCompleted       = "completed"
	statusWaitingOnOthers = "waitingOnOthers"
	statusDeferred        = "deferred"
)

// Graph importance values. There is no level above high.
const (
	importanceLow    = "low"
	importanceNormal = "normal"
	importanceHigh   = "high"
)

// Graph writes dateTimeTimeZone values without an offset and with up to
// seven fractional digits.
const graphDateTime = "2006-01-02T15:04:05.9999999"

// StatusValue returns the Graph status used for s.
func StatusValue(s domain.TaskStatus) string {
	switch s {
	case domain.TaskStatusInProgress:
		return statusInProgress
	case domain.TaskStatusDone:
		return statusCompleted
	default:
		return statusNotStarted
	}
}

// ParseStatusValue maps a Graph status back; waitingOnOthers, deferred and
// anything unrecognised read as todo.
func ParseStatusValue(v string) domain.TaskStatus {
	switch v {
	case statusInProgress:
		return domain.TaskStatusInProgress
	case statusCompleted:
		return domain.TaskStatusDone
	case statusNotStarted, statusWaitingOnOthers, statusDeferred:
		return domain.TaskStatusTodo
	default:
		log.Debug().Str("status", v).Msg("unknown graph task status, reading as todo")
		return domain.TaskStatusTodo
	}
}

// ImportanceValue returns the Graph importance for p. Urgent collapses to
// high and reads back as high.
func ImportanceValue(p domain.TaskPriority) string {
	switch p {
	case domain.TaskPriorityLow:
		return importanceLow
	case domain.TaskPriorityHigh, domain.TaskPriorityUrgent:
		return importanceHigh
	default:
		return importanceNormal
	}
}

func ParseImportanceValue(v string) domain.TaskPriority {
	switch strings.ToLower(v) {
	case importanceLow:
		return domain.TaskPriorityLow
	case importanceHigh:
		return domain.TaskPriorityHigh
	default:
		return domain.TaskPriorityMedium
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type todoTask struct {
	ID                   string            `json:"id,omitempty"`
	Title                string            `json:"title"`
	Body                 *itemBody         `json:"body"`
	Importance           string            `json:"importance"`
	Status               string            `json:"status"`
	DueDateTime          *dateTimeTimeZone `json:"dueDateTime"`
	Categories           []string          `json:"categories"`
	CreatedDateTime      time.Time         `json:"createdDateTime,omitzero"`
	LastModifiedDateTime time.Time         `json:"lastModifiedDateTime,omitzero"`
}

type itemBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type todoList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	WellknownListName string `json:"wellknownListName"`
}

type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// ---------------------------------------------------------------------------
// Task <-> todoTask
// ---------------------------------------------------------------------------

// graphBody renders a full replacement of every mapped field. Time spent and
// project have no Graph counterpart and are dropped.
func graphBody(t *domain.Task) map[string]any {
	body := map[string]any{
		"title":      t.Title,
		"importance": ImportanceValue(t.Priority),
		"status":     StatusValue(t.Status),
		"body":       itemBody{Content: t.Description, ContentType: "text"},
	}

	body["dueDateTime"] = nil
	if t.DueDate != nil {
		body["dueDateTime"] = dateTimeTimeZone{
			DateTime: t.DueDate.UTC().Format(graphDateTime),
			TimeZone: "UTC",
		}
	}

	categories := make([]string, 0, len(t.Tags))
	categories = append(categories, t.Tags...)
	body["categories"] = categories

	return body
}

func taskFromGraph(g *todoTask) *domain.Task {
	t := &domain.Task{
		ID:        domain.TaskID(g.ID),
		Title:     g.Title,
		Status:    ParseStatusValue(g.Status),
		Priority:  ParseImportanceValue(g.Importance),
		CreatedAt: g.CreatedDateTime,
		UpdatedAt: g.LastModifiedDateTime,
	}
	if g.Body != nil {
		t.Description = g.Body.Content
	}
	if g.DueDateTime != nil {
		if due, ok := parseDateTime(*g.DueDateTime); ok {
			t.DueDate = &due
		}
	}
	if len(g.Categories) > 0 {
		t.Tags = append([]string(nil), g.Categories...)
	}
	return t
}

func parseDateTime(v dateTimeTimeZone) (time.Time, bool) {
	loc := time.UTC
	if v.TimeZone != "" && !strings.EqualFold(v.TimeZone, "UTC") {
		if l, err := time.LoadLocation(v.TimeZone); err == nil {
			loc = l
		}
	}

	if t, err := time.ParseInLocation(graphDateTime, v.DateTime, loc); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, v.DateTime); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation(time.DateOnly, v.DateTime, loc); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
