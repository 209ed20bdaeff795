package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/gosuda/vibetodo/internal/domain"
)

// ErrNoToken is returned by FileTokenStore.Load when nothing is cached.
var ErrNoToken = errors.New("auth: no cached token")

// FileTokenStore keeps one OAuth2 token as JSON in a file only the owner can
// read.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("auth.FileTokenStore.Load: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("auth.FileTokenStore.Load: %s is corrupt: %w", s.path, domain.ErrConfiguration)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Save replaces the cached token atomically.
func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("auth.FileTokenStore.Save: %w", err)
	}
	return nil
}

// Clear removes the cached token. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("auth.FileTokenStore.Clear: %w", err)
	}
	return nil
}

// persistingSource writes every newly issued token back to the store.
type persistingSource struct {
	base  oauth2.TokenSource
	store *FileTokenStore
	hint  string

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token (run %q to sign in again): %w", p.hint, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			// The token is still usable for this process.
			log.Warn().Err(err).Str("path", p.store.Path()).Msg("could not persist refreshed token")
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
