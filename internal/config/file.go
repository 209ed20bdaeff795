package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultPath returns $VIBE_CONFIG or ~/.config/vibetodo/config.toml.
func DefaultPath() (string, error) {
	if p := os.Getenv("VIBE_CONFIG"); p != "" {
		return expandPath(p), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(homeDir, ".config", "vibetodo", "config.toml"), nil
}

// readFile decodes path over the defaults without applying the environment.
func readFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fmt.Errorf("config.Save: %w", err)
		}
		c.path = p
	}
	return c.SaveTo(c.path)
}

// SaveTo writes the configuration to path atomically with 0600 permissions.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("config.SaveTo: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config.SaveTo: creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("config.SaveTo: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("config.SaveTo: writing: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config.SaveTo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config.SaveTo: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config.SaveTo: %w", err)
	}

	c.path = path
	return nil
}

// Update applies fn to the file contents at path, without environment
// overrides, and writes the result. Use it to persist a change without
// leaking environment-provided secrets into the file.
func Update(path string, fn func(*Config) error) error {
	cfg, err := readFile(path)
	if err != nil {
		return fmt.Errorf("config.Update: %w", err)
	}
	if err := fn(cfg); err != nil {
		return fmt.Errorf("config.Update: %w", err)
	}
	return cfg.SaveTo(path)
}

func (c *Config) expandPaths() {
	c.Backend.Local.DBPath = expandPath(c.Backend.Local.DBPath)
	c.Backend.Microsoft.TokenCache = expandPath(c.Backend.Microsoft.TokenCache)
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
