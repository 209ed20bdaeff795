package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vibetodo/internal/auth"
	"github.com/gosuda/vibetodo/internal/cli"
	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
	"github.com/gosuda/vibetodo/internal/store/memory"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test clock

func newService() *service.Service {
	return service.New(memory.NewTaskRepo()).WithClock(func() time.Time { return fixedNow })
}

// runCLI executes one command against svc and returns stdout.
func runCLI(t *testing.T, svc *service.Service, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := cli.New(strings.NewReader(stdin), &stdout, &stderr,
		cli.WithService(svc),
		cli.WithClock(func() time.Time { return fixedNow }),
	)
	err := app.Run(context.Background(), args)
	return stdout.String(), err
}

func mustRun(t *testing.T, svc *service.Service, args ...string) string {
	t.Helper()

	out, err := runCLI(t, svc, "", args...)
	require.NoError(t, err, out)
	return out
}

// isolateLogging restores the global logger after a test that loads a
// config file, since loading applies the configured log settings.
func isolateLogging(t *testing.T) {
	t.Helper()

	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})
}

func getTask(t *testing.T, svc *service.Service, id string) *domain.Task {
	t.Helper()

	got, err := svc.Get(context.Background(), domain.TaskID(id))
	require.NoError(t, err)
	return got
}

// ---------------------------------------------------------------------------
// Time input
// ---------------------------------------------------------------------------

func TestParseTimeInput(t *testing.T) {
	t.Parallel()

	valid := []struct {
		in   string
		want int
	}{
		{"90", 90},
		{"120", 120},
		{"1", 1},
		{"0", 0},
		{"1.5h", 90},
		{"2h", 120},
		{"2.0h", 120},
		{"0.5h", 30},
		{"0.25h", 15},
		{"1.5 h", 90},
		{"2 h", 120},
		{"2h30m", 150},
		{"1h15m", 75},
		{"3h45m", 225},
		{"0h30m", 30},
		{"2h 30m", 150},
		{"1h 15m", 75},
		{"2 h 30 m", 150},
		{"45m", 45},
		{"15 m", 15},
		{"1.5H", 90},
		{"2H30M", 150},
		{"45M", 45},
		{"0h", 0},
		{"0m", 0},
		{"0h0m", 0},
		{"  25m  ", 25},
		{"8h", 480},
	}
	for _, tt := range valid {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := cli.ParseTimeInput(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	invalid := []string{"abc", "1.5", "h30m", "2h30", "", "  ", "-5", "1.5m", "m", "h"}
	for _, in := range invalid {
		t.Run("invalid_"+in, func(t *testing.T) {
			t.Parallel()

			_, err := cli.ParseTimeInput(in)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

// ---------------------------------------------------------------------------
// Task commands
// ---------------------------------------------------------------------------

func TestAdd(t *testing.T) {
	t.Parallel()

	t.Run("all_flags", func(t *testing.T) {
		t.Parallel()

		svc := newService()
		out := mustRun(t, svc, "add", "buy", "milk", "-p", "HIGH", "--due", "2026-03-20",
			"-t", "home, errand,", "--project", "chores", "--time", "1h15m", "-d", "two litres")

		assert.Contains(t, out, "created #1 buy milk")
		got := getTask(t, svc, "1")
		require.NotNil(t, got)
		assert.Equal(t, "buy milk", got.Title)
		assert.Equal(t, "two litres", got.Description)
		assert.Equal(t, domain.TaskPriorityHigh, got.Priority)
		assert.Equal(t, domain.TaskStatusTodo, got.Status)
		require.NotNil(t, got.DueDate)
		assert.Equal(t, "2026-03-20", domain.FormatDate(*got.DueDate))
		assert.Equal(t, []string{"home", "errand"}, got.Tags)
		assert.Equal(t, "chores", got.Project)
		assert.Equal(t, 75, got.TimeSpentMinutes)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		svc := newService()
		mustRun(t, svc, "add", "plain")

		got := getTask(t, svc, "1")
		require.NotNil(t, got)
		assert.Equal(t, domain.TaskPriorityMedium, got.Priority)
		assert.Equal(t, domain.TaskStatusTodo, got.Status)
		assert.Nil(t, got.DueDate)
	})

	tests := []struct {
		name string
		args []string
	}{
		{"no_title", []string{"add"}},
		{"blank_title", []string{"add", "   "}},
		{"bad_priority", []string{"add", "x", "-p", "asap"}},
		{"bad_status", []string{"add", "x", "-s", "blocked"}},
		{"bad_due", []string{"add", "x", "--due", "tomorrow"}},
		{"bad_time", []string{"add", "x", "--time", "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newService()
			_, err := runCLI(t, svc, "", tt.args...)
			require.ErrorIs(t, err, domain.ErrValidation)

			all, err := svc.List(context.Background(), service.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	svc := newService()
	assert.Contains(t, mustRun(t, svc, "list"), "no tasks")

	mustRun(t, svc, "add", "write report", "--project", "Work", "-t", "q1")
	mustRun(t, svc, "add", "late thing", "--due", "2026-03-01")
	mustRun(t, svc, "add", "finished", "-s", "done")

	out := mustRun(t, svc, "list")
	for _, want := range []string{"ID", "TITLE", "write report", "late thing", "finished", "2026-03-01", "q1"} {
		assert.Contains(t, out, want)
	}

	out = mustRun(t, svc, "list", "-s", "done")
	assert.Contains(t, out, "finished")
	assert.NotContains(t, out, "write report")

	out = mustRun(t, svc, "list", "-p", "work")
	assert.Contains(t, out, "write report")
	assert.NotContains(t, out, "late thing")

	out = mustRun(t, svc, "list", "--overdue")
	assert.Contains(t, out, "late thing")
	assert.NotContains(t, out, "write report")

	out = mustRun(t, svc, "list", "--tag", "Q1")
	assert.Contains(t, out, "write report")

	_, err := runCLI(t, svc, "", "list", "-s", "blocked")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = runCLI(t, svc, "", "list", "extra")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestShow(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "review PR", "--due", "2026-03-17", "--time", "45m")

	out := mustRun(t, svc, "show", "1")
	assert.Contains(t, out, "Task #1")
	assert.Contains(t, out, "review PR")
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "45m")
	assert.Contains(t, out, "due in 2 day(s)")

	_, err := runCLI(t, svc, "", "show", "42")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = runCLI(t, svc, "", "show")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "task")

	assert.Contains(t, mustRun(t, svc, "start", "1"), "started #1")
	assert.Equal(t, domain.TaskStatusInProgress, getTask(t, svc, "1").Status)

	assert.Contains(t, mustRun(t, svc, "pause", "1"), "paused #1")
	assert.Equal(t, domain.TaskStatusTodo, getTask(t, svc, "1").Status)

	assert.Contains(t, mustRun(t, svc, "done", "1"), "completed #1")
	assert.Equal(t, domain.TaskStatusDone, getTask(t, svc, "1").Status)

	for _, cmd := range []string{"start", "done", "pause"} {
		_, err := runCLI(t, svc, "", cmd, "99")
		require.ErrorIsf(t, err, domain.ErrNotFound, "%s on a missing task", cmd)
	}
}

func TestTime(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "task")

	out := mustRun(t, svc, "time", "1", "2", "h", "30", "m")
	assert.Contains(t, out, "added 2h 30m to #1")
	assert.Contains(t, out, "total: 2h 30m")

	out = mustRun(t, svc, "time", "1", "15")
	assert.Contains(t, out, "total: 2h 45m")
	assert.Equal(t, 165, getTask(t, svc, "1").TimeSpentMinutes)

	_, err := runCLI(t, svc, "", "time", "1", "soon")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = runCLI(t, svc, "", "time", "7", "10m")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = runCLI(t, svc, "", "time", "1")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "draft", "--due", "2026-04-01", "-t", "a", "--project", "old")

	out := mustRun(t, svc, "update", "1", "--title", "final", "-p", "urgent", "-t", "x,y", "--project", "")
	assert.Contains(t, out, "updated #1 final")

	got := getTask(t, svc, "1")
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, domain.TaskPriorityUrgent, got.Priority)
	assert.Equal(t, []string{"x", "y"}, got.Tags)
	assert.Empty(t, got.Project)
	require.NotNil(t, got.DueDate, "untouched fields survive")

	mustRun(t, svc, "update", "--clear-due", "1")
	assert.Nil(t, getTask(t, svc, "1").DueDate)

	_, err := runCLI(t, svc, "", "update", "1")
	require.ErrorIs(t, err, domain.ErrValidation, "no flags")

	_, err = runCLI(t, svc, "", "update", "1", "--due", "2026-05-01", "--clear-due")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = runCLI(t, svc, "", "update", "1", "--title", " ")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = runCLI(t, svc, "", "update", "8", "--title", "x")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "keep me")

	out, err := runCLI(t, svc, "n\n", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")
	assert.NotNil(t, getTask(t, svc, "1"))

	out, err = runCLI(t, svc, "", "delete", "1")
	require.NoError(t, err, "EOF on stdin means no")
	assert.Contains(t, out, "cancelled")

	out, err = runCLI(t, svc, "yes\n", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted #1")
	assert.Nil(t, getTask(t, svc, "1"))

	_, err = runCLI(t, svc, "", "delete", "-y", "1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "a", "--time", "90")
	mustRun(t, svc, "add", "b", "-s", "done", "--time", "30")
	mustRun(t, svc, "add", "c", "--due", "2026-01-01")

	out := mustRun(t, svc, "stats")
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "2.0 h")
}

// ---------------------------------------------------------------------------
// Import, export and batch
// ---------------------------------------------------------------------------

func TestExportImport_RoundTrip(t *testing.T) {
	t.Parallel()

	src := newService()
	mustRun(t, src, "add", "one", "-t", "a,b", "--due", "2026-06-01")
	mustRun(t, src, "add", "two, with comma", "-p", "low", "-s", "in_progress", "--time", "20m")

	dir := t.TempDir()
	for _, name := range []string{"tasks.json", "tasks.csv"} {
		path := filepath.Join(dir, name)
		out := mustRun(t, src, "export", "-o", path)
		assert.Contains(t, out, "exported 2 task(s)")

		dst := newService()
		out = mustRun(t, dst, "import", path)
		assert.Contains(t, out, "created 2")
		assert.Contains(t, out, "rejected 0")

		got, err := dst.List(context.Background(), service.ListFilter{})
		require.NoError(t, err)
		require.Len(t, got, 2, name)
		assert.Equal(t, "two, with comma", got[1].Title)
		assert.Equal(t, 20, got[1].TimeSpentMinutes)
		assert.Equal(t, []string{"a", "b"}, got[0].Tags)
	}
}

func TestExport_Stdout(t *testing.T) {
	t.Parallel()

	svc := newService()
	mustRun(t, svc, "add", "one")
	mustRun(t, svc, "add", "two")

	out := mustRun(t, svc, "export", "-f", "csv", "--ids", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,title,"))
	assert.Contains(t, lines[1], "two")

	out = mustRun(t, svc, "export")
	assert.Contains(t, out, `"version": "0.2.0"`)

	_, err := runCLI(t, svc, "", "export", "-o", filepath.Join(t.TempDir(), "tasks.xml"))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestImport_ReportsRejections(t *testing.T) {
	t.Parallel()

	svc := newService()
	csvData := "title,status,priority\nok,todo,low\nbad,blocked,low\n"

	out, err := runCLI(t, svc, csvData, "import", "-", "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "created 1")
	assert.Contains(t, out, "rejected 1")
	assert.Contains(t, out, "blocked")
	assert.Contains(t, out, "RECORD")

	_, err = runCLI(t, svc, "", "import", "missing.json")
	require.Error(t, err)

	_, err = runCLI(t, svc, csvData, "import", "-", "-f", "csv", "--strategy", "merge")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestBatch(t *testing.T) {
	t.Parallel()

	svc := newService()
	for _, title := range []string{"a", "b", "c"} {
		mustRun(t, svc, "add", title)
	}

	assert.Contains(t, mustRun(t, svc, "batch", "status", "done", "1", "2", "99"), "updated 2 of 3")
	assert.Equal(t, domain.TaskStatusDone, getTask(t, svc, "2").Status)

	assert.Contains(t, mustRun(t, svc, "batch", "priority", "urgent", "3"), "updated 1 of 1")
	assert.Equal(t, domain.TaskPriorityUrgent, getTask(t, svc, "3").Priority)

	mustRun(t, svc, "batch", "project", "home", "1", "3")
	assert.Equal(t, "home", getTask(t, svc, "1").Project)

	assert.Contains(t, mustRun(t, svc, "batch", "tags", "x, y", "1"), "tagged 1 of 1")
	assert.Equal(t, []string{"x", "y"}, getTask(t, svc, "1").Tags)

	out, err := runCLI(t, svc, "n\n", "batch", "delete", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	assert.Contains(t, mustRun(t, svc, "batch", "delete", "-y", "1", "2", "1"), "deleted 2 of 3")
	assert.Nil(t, getTask(t, svc, "1"))

	for _, args := range [][]string{
		{"batch"},
		{"batch", "status", "done"},
		{"batch", "status", "blocked", "3"},
		{"batch", "tags", " , ", "3"},
		{"batch", "archive", "x", "3"},
	} {
		_, err := runCLI(t, svc, "", args...)
		require.ErrorIsf(t, err, domain.ErrValidation, "%v", args)
	}
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func TestDispatch(t *testing.T) {
	t.Parallel()

	svc := newService()

	out := mustRun(t, svc)
	assert.Contains(t, out, "Usage: vibe")
	assert.Contains(t, out, "login microsoft")

	assert.Contains(t, mustRun(t, svc, "help"), "Commands:")
	assert.Contains(t, mustRun(t, svc, "-version"), "vibe ")

	_, err := runCLI(t, svc, "", "frobnicate")
	require.ErrorContains(t, err, "unknown command")

	_, err = runCLI(t, svc, "", "login", "google")
	require.ErrorIs(t, err, domain.ErrValidation)
}

// ---------------------------------------------------------------------------
// Configuration (not parallel: loading a config sets the global logger)
// ---------------------------------------------------------------------------

func runWithConfig(t *testing.T, path, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := cli.New(strings.NewReader(stdin), &stdout, &stderr, cli.WithConfigPath(path))
	err := app.Run(context.Background(), args)
	return stdout.String(), err
}

func TestConfigCommands(t *testing.T) {
	isolateLogging(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "tasks.db")

	out, err := runWithConfig(t, path, "", "config", "set-backend", "sqlite", "--db-path="+dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "backend set to local")

	out, err = runWithConfig(t, path, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, dbPath)
	assert.Contains(t, out, "disabled")

	_, err = runWithConfig(t, path, "", "config", "set-backend", "notion", "database_id=abc")
	require.ErrorIs(t, err, domain.ErrConfiguration, "notion needs a token")

	_, err = runWithConfig(t, path, "", "config", "set-backend", "notion", "tokenonly")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = runWithConfig(t, path, "", "config", "set-backend", "carrier-pigeon")
	require.ErrorIs(t, err, domain.ErrConfiguration)

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendLocal, cfg.Backend.Type)
	assert.Equal(t, dbPath, cfg.Backend.Local.DBPath)

	_, err = runWithConfig(t, path, "", "config", "rotate")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestConfigSetAccessToken(t *testing.T) {
	isolateLogging(t)

	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := runWithConfig(t, path, "", "config", "set-access-token")
	require.NoError(t, err)

	var token string
	for _, line := range strings.Split(out, "\n") {
		if s := strings.TrimSpace(line); strings.HasPrefix(s, "vibe_") {
			token = s
		}
	}
	require.NotEmpty(t, token, out)

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Server.AccessTokenHash)
	assert.NotContains(t, cfg.Server.AccessTokenHash, token)
	assert.True(t, auth.VerifyAccessToken(token, cfg.Server.AccessTokenHash))
}

func TestLocalBackend_PersistsAcrossRuns(t *testing.T) {
	isolateLogging(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
type = "local"

[backend.local]
db_path = "`+filepath.ToSlash(filepath.Join(dir, "vibe.db"))+`"

[log]
level = "warn"
format = "json"
`), 0o600))

	out, err := runWithConfig(t, path, "", "add", "persisted", "-p", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "created #1 persisted")

	_, err = runWithConfig(t, path, "", "time", "1", "1.5h")
	require.NoError(t, err)

	out, err = runWithConfig(t, path, "", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "persisted")
	assert.Contains(t, out, "1h 30m")
	assert.Contains(t, out, "high")
}

func TestLogin_RequiresClientID(t *testing.T) {
	isolateLogging(t)

	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runWithConfig(t, path, "", "login", "microsoft")
	require.ErrorIs(t, err, domain.ErrConfiguration)
}
