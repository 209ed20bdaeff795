// Package backend builds the task repository selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"

	"golang.org/x/oauth2"

	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/domain"
)

// ErrUnknownBackend is returned when a requested backend type is not registered.
var ErrUnknownBackend = fmt.Errorf("backend: unknown backend type: %w", domain.ErrConfiguration) //nolint:gochecknoglobals // sentinel error

// Options carries hooks and overrides that are not part of the persisted
// configuration.
type Options struct {
	// OnNotionDataSourceResolved is called once when the Notion adapter
	// resolves its data source id, so the caller can cache it.
	OnNotionDataSourceResolved func(id string)
	// MicrosoftTokenSource replaces the cached-token source for Microsoft.
	MicrosoftTokenSource oauth2.TokenSource
	// Transport is used by the remote adapters instead of the default.
	Transport http.RoundTripper
}

// Backend is an opened repository together with the resources behind it.
type Backend struct {
	Type string
	Repo domain.TaskRepository

	close func() error
}

// Close releases the store's resources. It is safe on a nil receiver.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// Factory opens the repository for one backend type. The returned close func
// may be nil.
type Factory func(ctx context.Context, cfg *config.Config, opts Options) (domain.TaskRepository, func() error, error)

// Registry manages backend factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for a backend type.
func (r *Registry) Register(backendType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backendType] = factory
}

// Create opens the backend for the given type. Aliases such as "sqlite" are
// normalised first.
func (r *Registry) Create(ctx context.Context, backendType string, cfg *config.Config, opts Options) (*Backend, error) {
	name := config.NormalizeBackendType(backendType)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend.Registry.Create(%q): %w", backendType, ErrUnknownBackend)
	}

	repo, closeFn, err := factory(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("backend.Registry.Create(%q): %w", name, err)
	}
	if repo == nil {
		return nil, fmt.Errorf("backend.Registry.Create(%q): %w", name, errors.New("factory returned no repository"))
	}

	return &Backend{Type: name, Repo: repo, close: closeFn}, nil
}

// Available returns registered backend type names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.factories {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}
