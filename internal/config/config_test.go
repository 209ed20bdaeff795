package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vibetodo/internal/domain"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "VIBE_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "VIBE_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "VIBE_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			assert.Equal(t, tc.want, getEnv(tc.key, tc.fallback))
		})
	}
}

func TestGetEnvNumeric(t *testing.T) {
	t.Setenv("VIBE_TEST_INT", "12")
	t.Setenv("VIBE_TEST_INT_BAD", "1.5")
	t.Setenv("VIBE_TEST_FLOAT", "2.5")
	t.Setenv("VIBE_TEST_DURATION", "90s")
	t.Setenv("VIBE_TEST_DURATION_BAD", "soon")

	n, err := getEnvInt("VIBE_TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = getEnvInt("VIBE_TEST_INT_BAD", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VIBE_TEST_INT_BAD")

	f, err := getEnvFloat("VIBE_TEST_FLOAT", 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 0.0001)

	d, err := getEnvDuration("VIBE_TEST_DURATION", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = getEnvDuration("VIBE_TEST_DURATION_BAD", 0)
	require.Error(t, err)
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("VIBE_TEST_LIST", " a, ,b ,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("VIBE_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("VIBE_TEST_LIST_UNSET", []string{"x"}))
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

func TestLoadFrom_MissingFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Backend.Type)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.NotContains(t, cfg.Backend.Local.DBPath, "~", "home dir must be expanded")
	assert.Equal(t, path, cfg.Path())
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
type = "remote_a"

[backend.notion]
token = "secret_abc"
database_id = "db-1"
data_source_id = "ds-1"

[server]
addr = ":9000"
read_timeout = "5s"

[log]
level = "debug"
format = "json"
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, BackendNotion, cfg.Backend.Type)
	assert.Equal(t, "secret_abc", cfg.Backend.Notion.Token)
	assert.Equal(t, "ds-1", cfg.Backend.Notion.DataSourceID)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Duration, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
type = "notion"
[backend.notion]
token = "secret_file"
database_id = "db-file"
data_source_id = "ds-file"
`), 0o600))

	t.Setenv("VIBE_NOTION_TOKEN", "secret_env")
	t.Setenv("VIBE_NOTION_DATABASE_ID", "db-env")
	t.Setenv("VIBE_RATE_LIMIT_RPS", "3.5")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "secret_env", cfg.Backend.Notion.Token)
	assert.Equal(t, "db-env", cfg.Backend.Notion.DatabaseID)
	assert.Empty(t, cfg.Backend.Notion.DataSourceID, "cache for a different database must be dropped")
	assert.InDelta(t, 3.5, cfg.Server.RateLimitRPS, 0.0001)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "unknown backend", content: "[backend]\ntype = \"dropbox\"\n"},
		{name: "bad log level", content: "[log]\nlevel = \"loud\"\n"},
		{name: "bad log format", content: "[log]\nformat = \"xml\"\n"},
		{name: "bad duration", content: "[server]\nread_timeout = \"soon\"\n"},
		{name: "zero burst", content: "[server]\nrate_limit_burst = 0\n"},
		{name: "bad env int", content: "", env: map[string]string{"VIBE_PG_MAX_CONNS": "many"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			_, err := LoadFrom(path)
			require.Error(t, err)
		})
	}
}

func TestLoadFrom_ValidationWrapsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\ntype = \"dropbox\"\n"), 0o600))

	_, err := LoadFrom(path)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.UseNotion("secret_x", "db-x")
	cfg.CacheNotionDataSource("ds-x")
	require.NoError(t, cfg.SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, BackendNotion, loaded.Backend.Type)
	assert.Equal(t, "db-x", loaded.Backend.Notion.DatabaseID)
	assert.Equal(t, "ds-x", loaded.Backend.Notion.DataSourceID)
	assert.Equal(t, cfg.Server.WriteTimeout, loaded.Server.WriteTimeout)
}

func TestUpdate_DoesNotPersistEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Default().SaveTo(path))

	t.Setenv("VIBE_NOTION_TOKEN", "secret_from_env")

	require.NoError(t, Update(path, func(c *Config) error {
		c.CacheNotionDataSource("ds-1")
		return nil
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ds-1")
	assert.NotContains(t, string(raw), "secret_from_env")
}

// ---------------------------------------------------------------------------
// Backend selection
// ---------------------------------------------------------------------------

func TestNormalizeBackendType(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":          BackendLocal,
		"sqlite":    BackendLocal,
		"LOCAL":     BackendLocal,
		"remote_a":  BackendNotion,
		"Notion":    BackendNotion,
		"remote_b":  BackendMicrosoft,
		"mstodo":    BackendMicrosoft,
		"pg":        BackendPostgres,
		"memory":    BackendMemory,
		"something": "something",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeBackendType(in), in)
	}
}

func TestUseNotion_ClearsCachedDataSource(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.UseNotion("secret_a", "db-a")
	cfg.CacheNotionDataSource("ds-a")

	cfg.UseNotion("", "db-b")
	assert.Equal(t, "secret_a", cfg.Backend.Notion.Token, "empty token keeps the existing one")
	assert.Equal(t, "db-b", cfg.Backend.Notion.DatabaseID)
	assert.Empty(t, cfg.Backend.Notion.DataSourceID)
}

func TestSetBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     string
		params   map[string]string
		wantType string
		wantErr  bool
	}{
		{name: "local", kind: "local", params: map[string]string{"db_path": "/tmp/x.db"}, wantType: BackendLocal},
		{name: "notion", kind: "remote_a", params: map[string]string{"token": "secret_t", "database_id": "d"}, wantType: BackendNotion},
		{name: "notion missing db", kind: "notion", params: map[string]string{"token": "secret_t"}, wantErr: true},
		{name: "notion missing token", kind: "notion", params: map[string]string{"database_id": "d"}, wantErr: true},
		{name: "microsoft", kind: "microsoft", params: map[string]string{"client_id": "c"}, wantType: BackendMicrosoft},
		{name: "microsoft missing client", kind: "remote_b", params: nil, wantErr: true},
		{name: "postgres", kind: "postgres", params: map[string]string{"dsn": "postgres://x"}, wantType: BackendPostgres},
		{name: "postgres missing dsn", kind: "postgres", params: nil, wantErr: true},
		{name: "unknown", kind: "dropbox", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			err := cfg.SetBackend(tc.kind, tc.params)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantType, cfg.Backend.Type)
		})
	}
}

func TestDuration_Text(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}

func strPtr(s string) *string { return &s }
