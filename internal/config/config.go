package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Backend type names as written in the config file.
const (
	BackendLocal     = "local"
	BackendNotion    = "notion"
	BackendMicrosoft = "microsoft"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Config holds all application configuration. It is loaded from a TOML file
// and then overridden from VIBE_* environment variables.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`

	path string
}

// BackendConfig selects the active backend and holds one block per type.
type BackendConfig struct {
	Type      string          `toml:"type"`
	Local     LocalConfig     `toml:"local"`
	Notion    NotionConfig    `toml:"notion"`
	Microsoft MicrosoftConfig `toml:"microsoft"`
	Postgres  PostgresConfig  `toml:"postgres"`
}

// LocalConfig holds embedded SQLite settings.
type LocalConfig struct {
	DBPath string `toml:"db_path"`
}

// NotionConfig holds Notion integration settings. DataSourceID is a cache of
// the id resolved from DatabaseID and is cleared whenever Notion is reconfigured.
type NotionConfig struct {
	Token        string `toml:"token"` //nolint:gosec // integration token config
	DatabaseID   string `toml:"database_id"`
	DataSourceID string `toml:"data_source_id,omitempty"`
	BaseURL      string `toml:"base_url,omitempty"`
}

// MicrosoftConfig holds Microsoft To Do settings.
type MicrosoftConfig struct {
	ClientID   string `toml:"client_id"`
	Tenant     string `toml:"tenant"`
	ListID     string `toml:"list_id,omitempty"`
	TokenCache string `toml:"token_cache"`
	BaseURL    string `toml:"base_url,omitempty"`
}

// PostgresConfig holds shared SQL store settings.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
	AccessTokenHash string   `toml:"access_token_hash,omitempty"`
	RateLimitRPS    float64  `toml:"rate_limit_rps"`
	RateLimitBurst  int      `toml:"rate_limit_burst"`
}

// LogConfig holds zerolog settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration wraps time.Duration so it round-trips through TOML as "10s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Type: BackendLocal,
			Local: LocalConfig{
				DBPath: "~/.local/share/vibetodo/vibe_todo.db",
			},
			Microsoft: MicrosoftConfig{
				Tenant:     "common",
				TokenCache: "~/.config/vibetodo/mstodo_token.json",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8000",
			ReadTimeout:    Duration{10 * time.Second},
			WriteTimeout:   Duration{30 * time.Second},
			CORSOrigins:    []string{"http://localhost:8000"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at DefaultPath and applies environment overrides.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path (a missing file yields defaults),
// applies environment overrides, expands ~ in paths and validates.
func LoadFrom(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config.Load: %w: %w", domain.ErrConfiguration, err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w: %w", domain.ErrConfiguration, err)
	}

	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// NormalizeBackendType maps accepted aliases onto canonical backend names.
// Unknown names are returned lower-cased and unchanged.
func NormalizeBackendType(s string) string {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "sqlite", BackendLocal:
		return BackendLocal
	case "remote_a", BackendNotion:
		return BackendNotion
	case "remote_b", "mstodo", "ms_todo", BackendMicrosoft:
		return BackendMicrosoft
	case "postgresql", "pg", BackendPostgres:
		return BackendPostgres
	default:
		return v
	}
}

// KnownBackend reports whether s names a supported backend type.
func KnownBackend(s string) bool {
	switch NormalizeBackendType(s) {
	case BackendLocal, BackendNotion, BackendMicrosoft, BackendPostgres, BackendMemory:
		return true
	default:
		return false
	}
}

// UseLocal activates the local backend.
func (c *Config) UseLocal(dbPath string) {
	c.Backend.Type = BackendLocal
	if dbPath != "" {
		c.Backend.Local.DBPath = dbPath
	}
}

// UseNotion activates Notion and drops any cached data source id, since the
// cache belongs to the previously configured database.
func (c *Config) UseNotion(token, databaseID string) {
	c.Backend.Type = BackendNotion
	if token != "" {
		c.Backend.Notion.Token = token
	}
	c.Backend.Notion.DatabaseID = databaseID
	c.Backend.Notion.DataSourceID = ""
}

// UseMicrosoft activates Microsoft To Do.
func (c *Config) UseMicrosoft(clientID, listID string) {
	c.Backend.Type = BackendMicrosoft
	if clientID != "" {
		c.Backend.Microsoft.ClientID = clientID
	}
	c.Backend.Microsoft.ListID = listID
}

// UsePostgres activates the shared SQL backend.
func (c *Config) UsePostgres(dsn string) {
	c.Backend.Type = BackendPostgres
	c.Backend.Postgres.DSN = dsn
}

// CacheNotionDataSource records the data source id resolved for the
// configured database.
func (c *Config) CacheNotionDataSource(id string) {
	c.Backend.Notion.DataSourceID = id
}

// SetBackend switches the active backend from key=value parameters, as
// accepted by the CLI.
func (c *Config) SetBackend(kind string, params map[string]string) error {
	switch NormalizeBackendType(kind) {
	case BackendLocal:
		c.UseLocal(expandPath(params["db_path"]))
	case BackendNotion:
		token, dbID := params["token"], params["database_id"]
		if token == "" && c.Backend.Notion.Token == "" {
			return fmt.Errorf("config.SetBackend: notion requires token: %w", domain.ErrConfiguration)
		}
		if dbID == "" {
			return fmt.Errorf("config.SetBackend: notion requires database_id: %w", domain.ErrConfiguration)
		}
		c.UseNotion(token, dbID)
	case BackendMicrosoft:
		clientID := params["client_id"]
		if clientID == "" && c.Backend.Microsoft.ClientID == "" {
			return fmt.Errorf("config.SetBackend: microsoft requires client_id: %w", domain.ErrConfiguration)
		}
		c.UseMicrosoft(clientID, params["list_id"])
		if tenant := params["tenant"]; tenant != "" {
			c.Backend.Microsoft.Tenant = tenant
		}
	case BackendPostgres:
		if params["dsn"] == "" {
			return fmt.Errorf("config.SetBackend: postgres requires dsn: %w", domain.ErrConfiguration)
		}
		c.UsePostgres(params["dsn"])
	case BackendMemory:
		c.Backend.Type = BackendMemory
	default:
		return fmt.Errorf("config.SetBackend: unknown backend %q: %w", kind, domain.ErrConfiguration)
	}
	return nil
}

// validate checks value bounds. Backend-specific required parameters are
// checked by the factory when the backend is built.
func (c *Config) validate() error {
	c.Backend.Type = NormalizeBackendType(c.Backend.Type)
	if !KnownBackend(c.Backend.Type) {
		return fmt.Errorf("unknown backend type %q", c.Backend.Type)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}

	if c.Backend.Postgres.MaxConns < 1 {
		return fmt.Errorf("postgres max_conns must be >= 1, got %d", c.Backend.Postgres.MaxConns)
	}
	if c.Server.ReadTimeout.Duration <= 0 {
		return fmt.Errorf("server read_timeout must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout.Duration <= 0 {
		return fmt.Errorf("server write_timeout must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return errors.New("server rate_limit_rps must be positive")
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("server rate_limit_burst must be >= 1, got %d", c.Server.RateLimitBurst)
	}

	if c.Backend.Type == BackendNotion && c.Backend.Notion.Token != "" && !strings.HasPrefix(c.Backend.Notion.Token, "secret_") && !strings.HasPrefix(c.Backend.Notion.Token, "ntn_") {
		log.Warn().Msg("notion token has an unexpected prefix; expected secret_ or ntn_")
	}

	return nil
}
