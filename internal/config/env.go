package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overrides file values with VIBE_* environment variables.
func (c *Config) applyEnv() error {
	var err error

	c.Backend.Type = getEnv("VIBE_BACKEND", c.Backend.Type)
	c.Backend.Local.DBPath = getEnv("VIBE_DB_PATH", c.Backend.Local.DBPath)

	c.Backend.Notion.Token = getEnv("VIBE_NOTION_TOKEN", c.Backend.Notion.Token)
	if dbID := os.Getenv("VIBE_NOTION_DATABASE_ID"); dbID != "" && dbID != c.Backend.Notion.DatabaseID {
		c.Backend.Notion.DatabaseID = dbID
		c.Backend.Notion.DataSourceID = ""
	}

	c.Backend.Microsoft.ClientID = getEnv("VIBE_MS_CLIENT_ID", c.Backend.Microsoft.ClientID)
	c.Backend.Microsoft.Tenant = getEnv("VIBE_MS_TENANT", c.Backend.Microsoft.Tenant)
	c.Backend.Microsoft.ListID = getEnv("VIBE_MS_LIST_ID", c.Backend.Microsoft.ListID)
	c.Backend.Microsoft.TokenCache = getEnv("VIBE_MS_TOKEN_CACHE", c.Backend.Microsoft.TokenCache)

	c.Backend.Postgres.DSN = getEnv("VIBE_PG_DSN", c.Backend.Postgres.DSN)
	if c.Backend.Postgres.MaxConns, err = getEnvInt("VIBE_PG_MAX_CONNS", c.Backend.Postgres.MaxConns); err != nil {
		return err
	}

	c.Server.Addr = getEnv("VIBE_SERVER_ADDR", c.Server.Addr)
	if c.Server.ReadTimeout.Duration, err = getEnvDuration("VIBE_SERVER_READ_TIMEOUT", c.Server.ReadTimeout.Duration); err != nil {
		return err
	}
	if c.Server.WriteTimeout.Duration, err = getEnvDuration("VIBE_SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout.Duration); err != nil {
		return err
	}
	c.Server.CORSOrigins = getEnvList("VIBE_CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.AccessTokenHash = getEnv("VIBE_ACCESS_TOKEN_HASH", c.Server.AccessTokenHash)
	if c.Server.RateLimitRPS, err = getEnvFloat("VIBE_RATE_LIMIT_RPS", c.Server.RateLimitRPS); err != nil {
		return err
	}
	if c.Server.RateLimitBurst, err = getEnvInt("VIBE_RATE_LIMIT_BURST", c.Server.RateLimitBurst); err != nil {
		return err
	}

	c.Log.Level = getEnv("VIBE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("VIBE_LOG_FORMAT", c.Log.Format)

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
