// Package transfer moves tasks in and out of the active backend as JSON or
// CSV files. Export writes every task, or a chosen subset; import applies a
// conflict strategy per record and reports what happened to each one.
package transfer

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Version is written into every JSON export envelope.
const Version = "0.2.0"

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("transfer.ParseFormat: unsupported format %q (want json or csv): %w", s, domain.ErrValidation)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("transfer.FormatFromPath: %q has no extension: %w", path, domain.ErrValidation)
	}
	return ParseFormat(ext)
}

// Strategy decides what happens when an imported record carries the id of a
// task that already exists.
type Strategy string

const (
	StrategySkip      Strategy = "skip"
	StrategyOverwrite Strategy = "overwrite"
	StrategyCreateNew Strategy = "create_new"
)

// ParseStrategy accepts the strategy name case-insensitively; an empty
// string selects create_new.
func ParseStrategy(s string) (Strategy, error) {
	v := Strategy(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "":
		return StrategyCreateNew, nil
	case StrategySkip, StrategyOverwrite, StrategyCreateNew:
		return v, nil
	default:
		return "", fmt.Errorf("transfer.ParseStrategy: unknown strategy %q (want skip, overwrite or create_new): %w", s, domain.ErrValidation)
	}
}

// fields is the column order shared by the JSON record and the CSV header.
var fields = []string{ //nolint:gochecknoglobals // fixed column order
	"id", "title", "description", "status", "priority", "due_date",
	"tags", "project", "time_spent_minutes", "created_at", "updated_at",
}

const tagSeparator = ";"

type envelope struct {
	Version    string   `json:"version"`
	ExportDate string   `json:"export_date"`
	Backend    string   `json:"backend"`
	Tasks      []record `json:"tasks"`
}

// recordID is the id a record was exported with. SQL backends write their
// integer keys as JSON numbers; it is kept in decimal form.
type recordID string

func (id *recordID) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*id = ""
	case string:
		*id = recordID(v)
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return fmt.Errorf("id %s is not an integer: %w", b, domain.ErrValidation)
		}
		*id = recordID(strconv.FormatInt(int64(v), 10))
	default:
		return fmt.Errorf("id must be a string or an integer, got %s: %w", b, domain.ErrValidation)
	}
	return nil
}

type record struct {
	ID               recordID `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Status           string   `json:"status"`
	Priority         string   `json:"priority"`
	DueDate          *string  `json:"due_date"`
	Tags             []string `json:"tags"`
	Project          string   `json:"project"`
	TimeSpentMinutes int      `json:"time_spent_minutes"`
	CreatedAt        *string  `json:"created_at"`
	UpdatedAt        *string  `json:"updated_at"`
}

func recordFromTask(t *domain.Task) record {
	r := record{
		ID:               recordID(t.ID),
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		Priority:         string(t.Priority),
		Tags:             t.Tags,
		Project:          t.Project,
		TimeSpentMinutes: t.TimeSpentMinutes,
		CreatedAt:        timestamp(t.CreatedAt),
		UpdatedAt:        timestamp(t.UpdatedAt),
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if t.DueDate != nil {
		due := domain.FormatDate(*t.DueDate)
		r.DueDate = &due
	}
	return r
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// row renders r in fields order.
func (r record) row() []string {
	return []string{
		string(r.ID),
		r.Title,
		r.Description,
		r.Status,
		r.Priority,
		deref(r.DueDate),
		strings.Join(r.Tags, tagSeparator),
		r.Project,
		strconv.Itoa(r.TimeSpentMinutes),
		deref(r.CreatedAt),
		deref(r.UpdatedAt),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toTask validates r and converts it into an unsaved task. Every failure
// wraps domain.ErrValidation.
func (r record) toTask() (*domain.Task, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Status) == "" {
		return nil, fmt.Errorf("status is required: %w", domain.ErrValidation)
	}
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Priority) == "" {
		return nil, fmt.Errorf("priority is required: %w", domain.ErrValidation)
	}
	priority, err := domain.ParsePriority(r.Priority)
	if err != nil {
		return nil, err
	}
	if r.TimeSpentMinutes < 0 {
		return nil, fmt.Errorf("time_spent_minutes must be >= 0, got %d: %w", r.TimeSpentMinutes, domain.ErrValidation)
	}

	t := &domain.Task{
		Title:            title,
		Description:      strings.TrimSpace(r.Description),
		Status:           status,
		Priority:         priority,
		Project:          strings.TrimSpace(r.Project),
		TimeSpentMinutes: r.TimeSpentMinutes,
	}
	t.AddTags(r.Tags...)

	if due := strings.TrimSpace(deref(r.DueDate)); due != "" {
		d, err := domain.ParseDate(due)
		if err != nil {
			return nil, err
		}
		t.DueDate = &d
	}

	return t, nil
}
