// Package mstodo stores tasks in a Microsoft To Do list through Microsoft
// Graph.
package mstodo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/remote"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	pageSize = 100
)

// Config holds the parameters for a Microsoft To Do backed repository.
type Config struct {
	// TokenSource supplies Graph access tokens. The repository never starts
	// an interactive sign-in.
	TokenSource oauth2.TokenSource
	// ListID selects the task list. Empty means the default list, resolved on
	// first use.
	ListID string

	BaseURL           string
	Transport         http.RoundTripper
	RequestsPerSecond float64
}

// Repository implements domain.TaskRepository over the Graph To Do API.
type Repository struct {
	client *remote.Client

	mu     sync.Mutex
	listID string
}

var _ domain.TaskRepository = (*Repository)(nil)

func New(cfg Config) (*Repository, error) {
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("mstodo.New: token source is required: %w", domain.ErrConfiguration)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}

	client, err := remote.New(remote.Options{
		Service:     "mstodo",
		BaseURL:     baseURL,
		TokenSource: cfg.TokenSource,
		Transport:   cfg.Transport,

		RequestsPerSecond: rps,
		Burst:             4,
	})
	if err != nil {
		return nil, fmt.Errorf("mstodo.New: %w", err)
	}

	return &Repository{client: client, listID: cfg.ListID}, nil
}

func (r *Repository) Name() string { return "microsoft" }

func (r *Repository) Save(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("mstodo.Save: %w", err)
	}

	tasksPath, err := r.tasksPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("mstodo.Save: %w", err)
	}

	var out todoTask
	if t.ID == "" {
		if err := r.client.Do(ctx, http.MethodPost, tasksPath, nil, graphBody(t), &out); err != nil {
			return nil, fmt.Errorf("mstodo.Save: create: %w", err)
		}
		return taskFromGraph(&out), nil
	}

	err = r.client.Do(ctx, http.MethodPatch, taskPath(tasksPath, t.ID), nil, graphBody(t), &out)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, fmt.Errorf("mstodo.Save: unknown task %q: %w", t.ID, domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("mstodo.Save: update: %w", err)
	}

	return taskFromGraph(&out), nil
}

func (r *Repository) GetByID(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	if id == "" {
		return nil, nil
	}
	tasksPath, err := r.tasksPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("mstodo.GetByID: %w", err)
	}

	var out todoTask
	err = r.client.Do(ctx, http.MethodGet, taskPath(tasksPath, id), nil, nil, &out)
	if isAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mstodo.GetByID: %w", err)
	}
	return taskFromGraph(&out), nil
}

func (r *Repository) ListAll(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	tasksPath, err := r.tasksPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("mstodo.ListAll: %w", err)
	}

	first := url.Values{"$top": {strconv.Itoa(pageSize)}}
	if status != nil {
		first.Set("$filter", fmt.Sprintf("status eq '%s'", StatusValue(*status)))
	}

	items, err := remote.Paginate(ctx, func(ctx context.Context, next string) ([]todoTask, string, error) {
		// nextLink carries the original query, so only the first request
		// adds one.
		ref, query := tasksPath, first
		if next != "" {
			ref, query = next, nil
		}

		var page collection[todoTask]
		if err := r.client.Do(ctx, http.MethodGet, ref, query, nil, &page); err != nil {
			return nil, "", err
		}
		return page.Value, page.NextLink, nil
	})
	if err != nil {
		return nil, fmt.Errorf("mstodo.ListAll: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(items))
	for i := range items {
		tasks = append(tasks, taskFromGraph(&items[i]))
	}
	return tasks, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.TaskID) (bool, error) {
	if id == "" {
		return false, nil
	}
	tasksPath, err := r.tasksPath(ctx)
	if err != nil {
		return false, fmt.Errorf("mstodo.Delete: %w", err)
	}

	err = r.client.Do(ctx, http.MethodDelete, taskPath(tasksPath, id), nil, nil, nil)
	if isAbsent(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mstodo.Delete: %w", err)
	}
	return true, nil
}

// ListID returns the list in use, resolving the default list if needed.
func (r *Repository) ListID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listID != "" {
		return r.listID, nil
	}

	lists, err := remote.Paginate(ctx, func(ctx context.Context, next string) ([]todoList, string, error) {
		ref := "me/todo/lists"
		if next != "" {
			ref = next
		}
		var page collection[todoList]
		if err := r.client.Do(ctx, http.MethodGet, ref, nil, nil, &page); err != nil {
			return nil, "", err
		}
		return page.Value, page.NextLink, nil
	})
	if err != nil {
		return "", fmt.Errorf("resolving default list: %w", err)
	}
	if len(lists) == 0 {
		return "", fmt.Errorf("account has no To Do lists: %w", domain.ErrConfiguration)
	}

	chosen := lists[0]
	for _, l := range lists {
		if l.WellknownListName == "defaultList" {
			chosen = l
			break
		}
	}
	r.listID = chosen.ID

	log.Debug().Str("list_id", chosen.ID).Str("list", chosen.DisplayName).Msg("resolved microsoft to do list")

	return r.listID, nil
}

func (r *Repository) tasksPath(ctx context.Context) (string, error) {
	listID, err := r.ListID(ctx)
	if err != nil {
		return "", err
	}
	return "me/todo/lists/" + url.PathEscape(listID) + "/tasks", nil
}

func taskPath(tasksPath string, id domain.TaskID) string {
	return tasksPath + "/" + url.PathEscape(string(id))
}

// isAbsent reports errors that mean the task does not exist. Graph answers
// malformed ids with 400 rather than 404.
func isAbsent(err error) bool {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest
	}
	return errors.Is(err, remote.ErrNotFound)
}
