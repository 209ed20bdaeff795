package notion

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Database property names.
const (
	propName        = "Name"
	propDescription = "Description"
	propStatus      = "Status"
	propPriority    = "Priority"
	propTimeSpent   = "Time Spent"
	propDueDate     = "Due Date"
	propTags        = "Tags"
	propProject     = "Project"
)

// Notion caps a single rich text object at 2000 characters.
const maxTextChunk = 2000

var statusToSelect = map[domain.TaskStatus]string{ //nolint:gochecknoglobals // fixed mapping
	domain.TaskStatusTodo:       "To Do",
	domain.TaskStatusInProgress: "In Progress",
	domain.TaskStatusDone:       "Done",
}

var priorityToSelect = map[domain.TaskPriority]string{ //nolint:gochecknoglobals // fixed mapping
	domain.TaskPriorityLow:    "Low",
	domain.TaskPriorityMedium: "Medium",
	domain.TaskPriorityHigh:   "High",
	domain.TaskPriorityUrgent: "Urgent",
}

// StatusName returns the select option used for s.
func StatusName(s domain.TaskStatus) string {
	return statusToSelect[s]
}

// ParseStatusName maps a select option back to a status; unknown options read as todo.
func ParseStatusName(name string) domain.TaskStatus {
	for s, n := range statusToSelect {
		if strings.EqualFold(n, name) {
			return s
		}
	}
	return domain.TaskStatusTodo
}

// PriorityName returns the select option used for p.
func PriorityName(p domain.TaskPriority) string {
	return priorityToSelect[p]
}

// ParsePriorityName maps a select option back to a priority; unknown options read as medium.
func ParsePriorityName(name string) domain.TaskPriority {
	for p, n := range priorityToSelect {
		if strings.EqualFold(n, name) {
			return p
		}
	}
	return domain.TaskPriorityMedium
}

// ---------------------------------------------------------------------------
// Wire types (read side)
// ---------------------------------------------------------------------------

type page struct {
	ID             string              `json:"id"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Archived       bool                `json:"archived"`
	InTrash        bool                `json:"in_trash"`
	Parent         parent              `json:"parent"`
	Properties     map[string]property `json:"properties"`
}

type parent struct {
	Type         string `json:"type"`
	DatabaseID   string `json:"database_id,omitempty"`
	DataSourceID string `json:"data_source_id,omitempty"`
}

type property struct {
	Title       []richText     `json:"title"`
	RichText    []richText     `json:"rich_text"`
	Select      *selectOption  `json:"select"`
	MultiSelect []selectOption `json:"multi_select"`
	Number      *float64       `json:"number"`
	Date        *dateValue     `json:"date"`
}

type richText struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text"`
}

type selectOption struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type database struct {
	ID          string `json:"id"`
	DataSources []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data_sources"`
}

type queryResponse struct {
	Results    []page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// ---------------------------------------------------------------------------
// Task <-> page
// ---------------------------------------------------------------------------

func pageToTask(p *page) *domain.Task {
	t := &domain.Task{
		ID:          domain.TaskID(p.ID),
		Title:       joinText(p.Properties[propName].Title),
		Description: joinText(p.Properties[propDescription].RichText),
		Status:      domain.TaskStatusTodo,
		Priority:    domain.TaskPriorityMedium,
		CreatedAt:   p.CreatedTime,
		UpdatedAt:   p.LastEditedTime,
	}

	if sel := p.Properties[propStatus].Select; sel != nil {
		t.Status = ParseStatusName(sel.Name)
	}
	if sel := p.Properties[propPriority].Select; sel != nil {
		t.Priority = ParsePriorityName(sel.Name)
	}
	if n := p.Properties[propTimeSpent].Number; n != nil && *n > 0 {
		t.TimeSpentMinutes = int(math.Round(*n))
	}
	if d := p.Properties[propDueDate].Date; d != nil {
		if due, ok := parseDate(d.Start); ok {
			t.DueDate = &due
		}
	}
	for _, opt := range p.Properties[propTags].MultiSelect {
		t.Tags = append(t.Tags, opt.Name)
	}
	if sel := p.Properties[propProject].Select; sel != nil {
		t.Project = sel.Name
	}

	return t
}

// taskProperties renders every mapped property. Empty optional fields are
// written as explicit empty values so an update fully replaces the page.
func taskProperties(t *domain.Task) map[string]any {
	props := map[string]any{
		propName:        map[string]any{"title": textChunks(t.Title)},
		propDescription: map[string]any{"rich_text": textChunks(t.Description)},
		propStatus:      map[string]any{"select": map[string]string{"name": StatusName(t.Status)}},
		propPriority:    map[string]any{"select": map[string]string{"name": PriorityName(t.Priority)}},
		propTimeSpent:   map[string]any{"number": t.TimeSpentMinutes},
	}

	if t.DueDate != nil {
		props[propDueDate] = map[string]any{"date": map[string]string{"start": formatDate(*t.DueDate)}}
	} else {
		props[propDueDate] = map[string]any{"date": nil}
	}

	tags := make([]map[string]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		// Commas are not allowed in multi-select option names.
		tags = append(tags, map[string]string{"name": strings.ReplaceAll(tag, ",", " ")})
	}
	props[propTags] = map[string]any{"multi_select": tags}

	if t.Project != "" {
		props[propProject] = map[string]any{"select": map[string]string{"name": t.Project}}
	} else {
		props[propProject] = map[string]any{"select": nil}
	}

	return props
}

func joinText(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		switch {
		case p.PlainText != "":
			b.WriteString(p.PlainText)
		case p.Text != nil:
			b.WriteString(p.Text.Content)
		}
	}
	return b.String()
}

// textChunks splits s into rich text objects of at most maxTextChunk runes.
func textChunks(s string) []map[string]any {
	chunks := make([]map[string]any, 0, 1)
	for s != "" {
		n := len(s)
		if utf8.RuneCountInString(s) > maxTextChunk {
			n = 0
			for i := 0; i < maxTextChunk; i++ {
				_, size := utf8.DecodeRuneInString(s[n:])
				n += size
			}
		}
		chunks = append(chunks, map[string]any{
			"type": "text",
			"text": map[string]string{"content": s[:n]},
		})
		s = s[n:]
	}
	return chunks
}

// formatDate writes a plain date when the value carries no time of day.
func formatDate(t time.Time) string {
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(time.DateOnly)
	}
	return u.Format(time.RFC3339)
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
