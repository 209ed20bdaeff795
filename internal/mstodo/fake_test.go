package mstodo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeGraph serves the To Do slice of Microsoft Graph. Tasks are stored as
// the JSON objects the client sent, merged on PATCH.
type fakeGraph struct {
	mu       sync.Mutex
	lists    []map[string]any
	tasks    map[string][]map[string]any
	pageSize int
	nextID   int
	clock    time.Time

	listGets  int
	taskPages int
	filters   []string
}

func newFakeGraph(t *testing.T) (*fakeGraph, *httptest.Server) {
	t.Helper()

	f := &fakeGraph{
		lists: []map[string]any{
			{"id": "list-groceries", "displayName": "Groceries", "wellknownListName": "none"},
			{"id": "list-default", "displayName": "Tasks", "wellknownListName": "defaultList"},
		},
		tasks:    map[string][]map[string]any{"list-groceries": nil, "list-default": nil},
		pageSize: 100,
		clock:    time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1.0/me/todo/lists", f.getLists)
	mux.HandleFunc("GET /v1.0/me/todo/lists/{list}/tasks", f.listTasks)
	mux.HandleFunc("POST /v1.0/me/todo/lists/{list}/tasks", f.createTask)
	mux.HandleFunc("GET /v1.0/me/todo/lists/{list}/tasks/{id}", f.getTask)
	mux.HandleFunc("PATCH /v1.0/me/todo/lists/{list}/tasks/{id}", f.updateTask)
	mux.HandleFunc("DELETE /v1.0/me/todo/lists/{list}/tasks/{id}", f.deleteTask)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeGraph) getLists(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listGets++
	writeJSON(w, http.StatusOK, map[string]any{"value": f.lists})
}

func (f *fakeGraph) listTasks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tasks, ok := f.tasks[r.PathValue("list")]
	if !ok {
		writeError(w, http.StatusNotFound, "ErrorItemNotFound")
		return
	}
	f.taskPages++

	q := r.URL.Query()
	filter := q.Get("$filter")
	if filter != "" {
		f.filters = append(f.filters, filter)
	}
	want := ""
	if rest, found := strings.CutPrefix(filter, "status eq '"); found {
		want = strings.TrimSuffix(rest, "'")
	}

	var matched []map[string]any
	for _, tk := range tasks {
		if want != "" && tk["status"] != want {
			continue
		}
		matched = append(matched, tk)
	}

	skip, _ := strconv.Atoi(q.Get("$skip"))
	size := f.pageSize
	if top, err := strconv.Atoi(q.Get("$top")); err == nil && top < size {
		size = top
	}
	end := min(skip+size, len(matched))

	resp := map[string]any{"value": append([]map[string]any{}, matched[skip:end]...)}
	if end < len(matched) {
		next := url.Values{"$skip": {strconv.Itoa(end)}, "$top": {strconv.Itoa(size)}}
		if filter != "" {
			next.Set("$filter", filter)
		}
		resp["@odata.nextLink"] = "http://" + r.Host + r.URL.Path + "?" + next.Encode()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *fakeGraph) createTask(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidRequest")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	list := r.PathValue("list")
	if _, ok := f.tasks[list]; !ok {
		writeError(w, http.StatusNotFound, "ErrorItemNotFound")
		return
	}

	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	body["id"] = "AAMkTask" + strconv.Itoa(f.nextID)
	body["createdDateTime"] = f.clock.Format(time.RFC3339Nano)
	body["lastModifiedDateTime"] = f.clock.Format(time.RFC3339Nano)
	if v, ok := body["dueDateTime"].(map[string]any); ok {
		// Graph echoes dates with seven fractional digits.
		v["dateTime"] = v["dateTime"].(string) + ".0000000"
	}
	f.tasks[list] = append(f.tasks[list], body)

	writeJSON(w, http.StatusCreated, body)
}

func (f *fakeGraph) getTask(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, tk := f.find(r.PathValue("list"), r.PathValue("id"))
	if tk == nil {
		writeError(w, http.StatusNotFound, "ErrorItemNotFound")
		return
	}
	writeJSON(w, http.StatusOK, tk)
}

func (f *fakeGraph) updateTask(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidRequest")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, tk := f.find(r.PathValue("list"), r.PathValue("id"))
	if tk == nil {
		writeError(w, http.StatusNotFound, "ErrorItemNotFound")
		return
	}
	for k, v := range body {
		tk[k] = v
	}
	f.clock = f.clock.Add(time.Minute)
	tk["lastModifiedDateTime"] = f.clock.Format(time.RFC3339Nano)

	writeJSON(w, http.StatusOK, tk)
}

func (f *fakeGraph) deleteTask(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := r.PathValue("list")
	i, tk := f.find(list, r.PathValue("id"))
	if tk == nil {
		writeError(w, http.StatusNotFound, "ErrorItemNotFound")
		return
	}
	f.tasks[list] = append(f.tasks[list][:i], f.tasks[list][i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGraph) find(list, id string) (int, map[string]any) {
	for i, tk := range f.tasks[list] {
		if tk["id"] == id {
			return i, tk
		}
	}
	return -1, nil
}

func (f *fakeGraph) setPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

func (f *fakeGraph) stats() (listGets, taskPages int, filters []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listGets, f.taskPages, append([]string(nil), f.filters...)
}

func (f *fakeGraph) taskCount(list string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks[list])
}

func (f *fakeGraph) rawTask(list string, i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[list][i]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": code}})
}
