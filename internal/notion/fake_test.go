package notion_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeNotion is an in-process stand-in for the subset of the Notion API the
// repository uses. Pages keep the properties exactly as written.
type fakeNotion struct {
	t *testing.T

	mu           sync.Mutex
	databaseID   string
	dataSourceID string
	pageSize     int
	pages        []*fakePage
	clock        time.Time

	databaseGets int
	queries      int
	lastParent   map[string]string
}

type fakePage struct {
	ID       string
	Created  time.Time
	Edited   time.Time
	Archived bool
	Props    map[string]json.RawMessage
}

func newFakeNotion(t *testing.T) (*fakeNotion, *httptest.Server) {
	t.Helper()

	f := &fakeNotion{
		t:            t,
		databaseID:   uuid.NewString(),
		dataSourceID: uuid.NewString(),
		pageSize:     100,
		clock:        time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/databases/{id}", f.getDatabase)
	mux.HandleFunc("POST /v1/pages", f.createPage)
	mux.HandleFunc("GET /v1/pages/{id}", f.getPage)
	mux.HandleFunc("PATCH /v1/pages/{id}", f.updatePage)
	mux.HandleFunc("POST /v1/data_sources/{id}/query", f.query)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret_test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Notion-Version"))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeNotion) getDatabase(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.databaseGets++
	if r.PathValue("id") != f.databaseID {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}
	writeJSON(w, map[string]any{
		"object":       "database",
		"id":           f.databaseID,
		"data_sources": []map[string]string{{"id": f.dataSourceID, "name": "Tasks"}},
	})
}

func (f *fakeNotion) createPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent     map[string]string          `json:"parent"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastParent = req.Parent
	if req.Parent["database_id"] != f.databaseID && req.Parent["data_source_id"] != f.dataSourceID {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}

	f.clock = f.clock.Add(time.Minute)
	p := &fakePage{ID: uuid.NewString(), Created: f.clock, Edited: f.clock, Props: req.Properties}
	f.pages = append(f.pages, p)
	writeJSON(w, f.render(p))
}

func (f *fakeNotion) getPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.find(r.PathValue("id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}
	writeJSON(w, f.render(p))
}

func (f *fakeNotion) updatePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Archived   *bool                      `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.find(r.PathValue("id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}
	for k, v := range req.Properties {
		p.Props[k] = v
	}
	if req.Archived != nil {
		p.Archived = *req.Archived
	}
	f.clock = f.clock.Add(time.Minute)
	p.Edited = f.clock
	writeJSON(w, f.render(p))
}

func (f *fakeNotion) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageSize    int    `json:"page_size"`
		StartCursor string `json:"start_cursor"`
		Filter      *struct {
			Property string `json:"property"`
			Select   struct {
				Equals string `json:"equals"`
			} `json:"select"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	if r.PathValue("id") != f.dataSourceID {
		writeError(w, http.StatusNotFound, "object_not_found")
		return
	}

	var matched []*fakePage
	for _, p := range f.pages {
		if p.Archived {
			continue
		}
		if req.Filter != nil && selectName(p.Props[req.Filter.Property]) != req.Filter.Select.Equals {
			continue
		}
		matched = append(matched, p)
	}

	start := 0
	if req.StartCursor != "" {
		start, _ = strconv.Atoi(req.StartCursor)
	}
	size := min(req.PageSize, f.pageSize)
	end := min(start+size, len(matched))

	results := make([]map[string]any, 0, end-start)
	for _, p := range matched[start:end] {
		results = append(results, f.render(p))
	}
	resp := map[string]any{"object": "list", "results": results, "has_more": end < len(matched), "next_cursor": nil}
	if end < len(matched) {
		resp["next_cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, resp)
}

// The accessors below lock so tests can inspect state without racing the
// server goroutines.

func (f *fakeNotion) setPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

func (f *fakeNotion) counts() (databaseGets, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.databaseGets, f.queries
}

func (f *fakeNotion) parentOfLastCreate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastParent
}

func (f *fakeNotion) rawProperty(i int, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.pages[i].Props[name])
}

func (f *fakeNotion) find(id string) *fakePage {
	for _, p := range f.pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakeNotion) render(p *fakePage) map[string]any {
	return map[string]any{
		"object":           "page",
		"id":               p.ID,
		"created_time":     p.Created.Format(time.RFC3339),
		"last_edited_time": p.Edited.Format(time.RFC3339),
		"archived":         p.Archived,
		"in_trash":         p.Archived,
		"parent":           map[string]string{"type": "database_id", "database_id": f.databaseID},
		"properties":       p.Props,
	}
}

func selectName(raw json.RawMessage) string {
	var v struct {
		Select *struct {
			Name string `json:"name"`
		} `json:"select"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Select == nil {
		return ""
	}
	return v.Select.Name
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "error", "status": status, "code": code, "message": code})
}
