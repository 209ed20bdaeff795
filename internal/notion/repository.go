// Package notion stores tasks as pages of a Notion database.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/remote"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2025-09-03"

	pageSize = 100
)

// Config holds the parameters for a Notion-backed repository.
type Config struct {
	Token      string
	DatabaseID string
	// DataSourceID is a previously resolved id for DatabaseID. When empty it
	// is resolved on first use and reported through OnDataSourceResolved.
	DataSourceID         string
	OnDataSourceResolved func(id string)

	BaseURL   string
	Transport http.RoundTripper
	// RequestsPerSecond overrides the default pacing of three requests per
	// second, the average Notion allows per integration.
	RequestsPerSecond float64
}

// Repository implements domain.TaskRepository over the Notion REST API.
type Repository struct {
	client     *remote.Client
	databaseID string
	onResolved func(string)

	mu           sync.Mutex
	dataSourceID string
}

var _ domain.TaskRepository = (*Repository)(nil)

func New(cfg Config) (*Repository, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("notion.New: token is required: %w", domain.ErrConfiguration)
	}
	if cfg.DatabaseID == "" {
		return nil, fmt.Errorf("notion.New: database id is required: %w", domain.ErrConfiguration)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}

	client, err := remote.New(remote.Options{
		Service:     "notion",
		BaseURL:     baseURL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
		Transport:   cfg.Transport,
		Headers:     map[string]string{"Notion-Version": APIVersion},

		RequestsPerSecond: rps,
		Burst:             3,
	})
	if err != nil {
		return nil, fmt.Errorf("notion.New: %w", err)
	}

	return &Repository{
		client:       client,
		databaseID:   cfg.DatabaseID,
		dataSourceID: cfg.DataSourceID,
		onResolved:   cfg.OnDataSourceResolved,
	}, nil
}

func (r *Repository) Name() string { return "notion" }

func (r *Repository) Save(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("notion.Save: %w", err)
	}

	var out page
	if t.ID == "" {
		body := map[string]any{
			"parent":     r.parent(),
			"properties": taskProperties(t),
		}
		if err := r.client.Do(ctx, http.MethodPost, "pages", nil, body, &out); err != nil {
			return nil, fmt.Errorf("notion.Save: create: %w", err)
		}
		return pageToTask(&out), nil
	}

	id, ok := pageID(t.ID)
	if !ok {
		return nil, fmt.Errorf("notion.Save: malformed page id %q: %w", t.ID, domain.ErrValidation)
	}
	body := map[string]any{"properties": taskProperties(t)}
	if err := r.client.Do(ctx, http.MethodPatch, "pages/"+id, nil, body, &out); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, fmt.Errorf("notion.Save: unknown page %q: %w", t.ID, domain.ErrValidation)
		}
		return nil, fmt.Errorf("notion.Save: update: %w", err)
	}

	return pageToTask(&out), nil
}

func (r *Repository) GetByID(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	p, err := r.getPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("notion.GetByID: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	return pageToTask(p), nil
}

func (r *Repository) ListAll(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	dsID, err := r.dataSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("notion.ListAll: %w", err)
	}

	base := map[string]any{
		"page_size": pageSize,
		"sorts":     []map[string]string{{"timestamp": "created_time", "direction": "ascending"}},
	}
	if status != nil {
		base["filter"] = map[string]any{
			"property": propStatus,
			"select":   map[string]string{"equals": StatusName(*status)},
		}
	}

	pages, err := remote.Paginate(ctx, func(ctx context.Context, cursor string) ([]page, string, error) {
		body := make(map[string]any, len(base)+1)
		for k, v := range base {
			body[k] = v
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := r.client.Do(ctx, http.MethodPost, "data_sources/"+dsID+"/query", nil, body, &resp); err != nil {
			return nil, "", err
		}
		next := ""
		if resp.HasMore && resp.NextCursor != nil {
			next = *resp.NextCursor
		}
		return resp.Results, next, nil
	})
	if errors.Is(err, remote.ErrNotFound) {
		return nil, fmt.Errorf("notion.ListAll: data source %s not found; reconfigure the notion backend: %w", dsID, domain.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("notion.ListAll: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(pages))
	for i := range pages {
		if pages[i].Archived || pages[i].InTrash {
			continue
		}
		tasks = append(tasks, pageToTask(&pages[i]))
	}
	return tasks, nil
}

// Delete archives the page. Notion has no hard delete through the API, so an
// already archived page counts as absent.
func (r *Repository) Delete(ctx context.Context, id domain.TaskID) (bool, error) {
	p, err := r.getPage(ctx, id)
	if err != nil {
		return false, fmt.Errorf("notion.Delete: %w", err)
	}
	if p == nil {
		return false, nil
	}

	err = r.client.Do(ctx, http.MethodPatch, "pages/"+p.ID, nil, map[string]any{"archived": true}, nil)
	if errors.Is(err, remote.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("notion.Delete: %w", err)
	}
	return true, nil
}

// getPage returns nil for malformed ids, missing pages, archived pages and
// pages belonging to another database.
func (r *Repository) getPage(ctx context.Context, id domain.TaskID) (*page, error) {
	pid, ok := pageID(id)
	if !ok {
		return nil, nil
	}

	var p page
	err := r.client.Do(ctx, http.MethodGet, "pages/"+pid, nil, nil, &p)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Archived || p.InTrash || !r.ownsPage(&p) {
		return nil, nil
	}
	return &p, nil
}

func (r *Repository) ownsPage(p *page) bool {
	if p.Parent.DatabaseID == "" {
		return true
	}
	return sameID(p.Parent.DatabaseID, r.databaseID)
}

// parent addresses new pages by data source once it is known, and by
// database otherwise; creating never forces resolution.
func (r *Repository) parent() map[string]string {
	r.mu.Lock()
	dsID := r.dataSourceID
	r.mu.Unlock()

	if dsID != "" && !sameID(dsID, r.databaseID) {
		return map[string]string{"type": "data_source_id", "data_source_id": dsID}
	}
	return map[string]string{"type": "database_id", "database_id": r.databaseID}
}

// dataSource returns the data source id, resolving it from the database on
// first use. A configured id is trusted and never refreshed.
func (r *Repository) dataSource(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dataSourceID != "" {
		return r.dataSourceID, nil
	}

	var db database
	if err := r.client.Do(ctx, http.MethodGet, "databases/"+r.databaseID, nil, nil, &db); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return "", fmt.Errorf("database %s not found or not shared with the integration: %w", r.databaseID, domain.ErrConfiguration)
		}
		return "", fmt.Errorf("resolving data source: %w", err)
	}

	id := r.databaseID
	if len(db.DataSources) > 0 && db.DataSources[0].ID != "" {
		id = db.DataSources[0].ID
	}
	r.dataSourceID = id

	log.Debug().Str("database_id", r.databaseID).Str("data_source_id", id).Msg("resolved notion data source")

	if r.onResolved != nil {
		r.onResolved(id)
	}
	return id, nil
}

// pageID normalises a page id to its dashed UUID form.
func pageID(id domain.TaskID) (string, bool) {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func sameID(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ua == ub
}
