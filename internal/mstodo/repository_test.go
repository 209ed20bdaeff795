package mstodo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/mstodo"
	"github.com/gosuda/vibetodo/internal/storetest"
)

func tokens() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "graph-token", TokenType: "Bearer"})
}

func newRepo(t *testing.T, srv *httptest.Server, mutate ...func(*mstodo.Config)) *mstodo.Repository {
	t.Helper()

	cfg := mstodo.Config{
		TokenSource:       tokens(),
		BaseURL:           srv.URL + "/v1.0",
		RequestsPerSecond: 10_000,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	repo, err := mstodo.New(cfg)
	require.NoError(t, err)
	return repo
}

// graphReadBack is what Graph returns for a task as written: urgent collapses
// to high, and time spent and project are not stored.
func graphReadBack(tk *domain.Task) *domain.Task {
	out := tk.Clone()
	if out.Priority == domain.TaskPriorityUrgent {
		out.Priority = domain.TaskPriorityHigh
	}
	out.TimeSpentMinutes = 0
	out.Project = ""
	return out
}

func TestRepository_Contract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) domain.TaskRepository {
		_, srv := newFakeGraph(t)
		return newRepo(t, srv)
	}, storetest.Options{Expect: graphReadBack})
}

// ---------------------------------------------------------------------------
// List resolution
// ---------------------------------------------------------------------------

func TestRepository_ResolvesDefaultListOnce(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	repo := newRepo(t, srv)
	ctx := context.Background()

	for range 3 {
		_, err := repo.Save(ctx, domain.NewTask("milk"))
		require.NoError(t, err)
	}

	id, err := repo.ListID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "list-default", id)

	listGets, _, _ := f.stats()
	assert.Equal(t, 1, listGets)
	assert.Equal(t, 3, f.taskCount("list-default"))
	assert.Equal(t, 0, f.taskCount("list-groceries"))
}

func TestRepository_ConfiguredListSkipsResolution(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	repo := newRepo(t, srv, func(c *mstodo.Config) { c.ListID = "list-groceries" })

	_, err := repo.Save(context.Background(), domain.NewTask("eggs"))
	require.NoError(t, err)

	listGets, _, _ := f.stats()
	assert.Equal(t, 0, listGets)
	assert.Equal(t, 1, f.taskCount("list-groceries"))
}

func TestRepository_FallsBackToFirstList(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	f.mu.Lock()
	f.lists[1]["wellknownListName"] = "none"
	f.mu.Unlock()
	repo := newRepo(t, srv)

	id, err := repo.ListID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "list-groceries", id)
}

func TestRepository_NoListsIsConfigurationError(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	f.mu.Lock()
	f.lists = nil
	f.mu.Unlock()
	repo := newRepo(t, srv)

	_, err := repo.ListAll(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

func TestRepository_ListFollowsNextLink(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	f.setPageSize(2)
	repo := newRepo(t, srv)
	ctx := context.Background()

	var want []domain.TaskID
	for _, title := range []string{"one", "two", "three", "four", "five"} {
		saved, err := repo.Save(ctx, domain.NewTask(title))
		require.NoError(t, err)
		want = append(want, saved.ID)
	}

	all, err := repo.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, tk := range all {
		assert.Equal(t, want[i], tk.ID)
	}

	_, pages, _ := f.stats()
	assert.Equal(t, 3, pages)
}

func TestRepository_ListFilterSurvivesPagination(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	f.setPageSize(1)
	repo := newRepo(t, srv)
	ctx := context.Background()

	for _, s := range []domain.TaskStatus{
		domain.TaskStatusDone, domain.TaskStatusTodo, domain.TaskStatusDone, domain.TaskStatusDone,
	} {
		tk := domain.NewTask(string(s))
		tk.Status = s
		_, err := repo.Save(ctx, tk)
		require.NoError(t, err)
	}

	done := domain.TaskStatusDone
	got, err := repo.ListAll(ctx, &done)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, _, filters := f.stats()
	require.Len(t, filters, 3)
	for _, fl := range filters {
		assert.Equal(t, "status eq 'completed'", fl)
	}
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func TestRepository_UrgentIsStoredAsHigh(t *testing.T) {
	t.Parallel()

	f, srv := newFakeGraph(t)
	repo := newRepo(t, srv)
	ctx := context.Background()

	tk := domain.NewTask("fire")
	tk.Priority = domain.TaskPriorityUrgent
	tk.Project = "ops"
	tk.TimeSpentMinutes = 30

	saved, err := repo.Save(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPriorityHigh, saved.Priority)
	assert.Zero(t, saved.TimeSpentMinutes)
	assert.Empty(t, saved.Project)

	raw := f.rawTask("list-default", 0)
	assert.Equal(t, "high", raw["importance"])
	assert.NotContains(t, raw, "project")
}

func TestRepository_StatusRoundTrip(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGraph(t)
	repo := newRepo(t, srv)
	ctx := context.Background()

	for _, s := range domain.TaskStatuses {
		tk := domain.NewTask(string(s))
		tk.Status = s
		saved, err := repo.Save(ctx, tk)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, s, got.Status)
	}
}

func TestRepository_ClearingOptionalFields(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGraph(t)
	repo := newRepo(t, srv)
	ctx := context.Background()

	saved, err := repo.Save(ctx, storetest.SampleTask("full"))
	require.NoError(t, err)
	require.NotNil(t, saved.DueDate)

	saved.DueDate = nil
	saved.Tags = nil
	saved.Description = ""
	cleared, err := repo.Save(ctx, saved)
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
	assert.Empty(t, cleared.Tags)
	assert.Empty(t, cleared.Description)
	assert.True(t, cleared.UpdatedAt.After(cleared.CreatedAt))
}

func TestRepository_UpdateUnknownTask(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGraph(t)
	repo := newRepo(t, srv)

	tk := domain.NewTask("ghost")
	tk.ID = "AAMkMissing"
	_, err := repo.Save(context.Background(), tk)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("no cached token; run vibe login microsoft")
}

func TestRepository_TokenFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGraph(t)
	repo := newRepo(t, srv, func(c *mstodo.Config) { c.TokenSource = failingSource{} })

	_, err := repo.ListAll(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "vibe login microsoft")
}

func TestRepository_ServerErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "serviceNotAvailable")
	}))
	defer srv.Close()

	repo := newRepo(t, srv, func(c *mstodo.Config) { c.ListID = "list-default" })
	ctx := context.Background()

	_, err := repo.ListAll(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, err = repo.GetByID(ctx, "AAMkTask1")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, err = repo.Delete(ctx, "AAMkTask1")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestRepository_CancelledContext(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGraph(t)
	repo := newRepo(t, srv, func(c *mstodo.Config) { c.ListID = "list-default" })

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := repo.ListAll(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestNew_RequiresTokenSource(t *testing.T) {
	t.Parallel()

	_, err := mstodo.New(mstodo.Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestParseStatusValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want domain.TaskStatus
	}{
		{"notStarted", domain.TaskStatusTodo},
		{"inProgress", domain.TaskStatusInProgress},
		{"completed", domain.TaskStatusDone},
		{"waitingOnOthers", domain.TaskStatusTodo},
		{"deferred", domain.TaskStatusTodo},
		{"archivedSomehow", domain.TaskStatusTodo},
		{"", domain.TaskStatusTodo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mstodo.ParseStatusValue(tt.in), tt.in)
	}
}
