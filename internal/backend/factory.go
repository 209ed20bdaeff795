package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/auth"
	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/mstodo"
	"github.com/gosuda/vibetodo/internal/notion"
	"github.com/gosuda/vibetodo/internal/store/memory"
	"github.com/gosuda/vibetodo/internal/store/postgres"
	"github.com/gosuda/vibetodo/internal/store/sqlite"
)

// DefaultRegistry returns a registry with every built-in backend.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.BackendLocal, openLocal)
	r.Register(config.BackendNotion, openNotion)
	r.Register(config.BackendMicrosoft, openMicrosoft)
	r.Register(config.BackendPostgres, openPostgres)
	r.Register(config.BackendMemory, openMemory)
	return r
}

// New opens the backend named by cfg.Backend.Type. Missing required
// parameters are reported as domain.ErrConfiguration; nothing is defaulted
// here.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Backend, error) {
	b, err := DefaultRegistry().Create(ctx, cfg.Backend.Type, cfg, opts)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("backend", b.Type).Str("repository", domain.BackendName(b.Repo)).Msg("backend opened")

	return b, nil
}

func openLocal(ctx context.Context, cfg *config.Config, _ Options) (domain.TaskRepository, func() error, error) {
	path := cfg.Backend.Local.DBPath
	if path == "" {
		return nil, nil, fmt.Errorf("local backend requires db_path: %w", domain.ErrConfiguration)
	}

	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return store.Tasks(), store.Close, nil
}

func openNotion(_ context.Context, cfg *config.Config, opts Options) (domain.TaskRepository, func() error, error) {
	nc := cfg.Backend.Notion
	if nc.Token == "" {
		return nil, nil, fmt.Errorf("notion backend requires token: %w", domain.ErrConfiguration)
	}
	if nc.DatabaseID == "" {
		return nil, nil, fmt.Errorf("notion backend requires database_id: %w", domain.ErrConfiguration)
	}

	repo, err := notion.New(notion.Config{
		Token:                nc.Token,
		DatabaseID:           nc.DatabaseID,
		DataSourceID:         nc.DataSourceID,
		OnDataSourceResolved: opts.OnNotionDataSourceResolved,
		BaseURL:              nc.BaseURL,
		Transport:            opts.Transport,
	})
	if err != nil {
		return nil, nil, err
	}
	return repo, nil, nil
}

func openMicrosoft(ctx context.Context, cfg *config.Config, opts Options) (domain.TaskRepository, func() error, error) {
	mc := cfg.Backend.Microsoft
	if mc.ClientID == "" {
		return nil, nil, fmt.Errorf("microsoft backend requires client_id: %w", domain.ErrConfiguration)
	}

	ts := opts.MicrosoftTokenSource
	if ts == nil {
		if mc.TokenCache == "" {
			return nil, nil, fmt.Errorf("microsoft backend requires token_cache: %w", domain.ErrConfiguration)
		}
		provider := auth.NewMicrosoftProvider(mc.ClientID, mc.Tenant)
		// Refreshes happen long after the opening context may be gone.
		src, err := provider.TokenSource(context.WithoutCancel(ctx), auth.NewFileTokenStore(mc.TokenCache))
		if err != nil {
			return nil, nil, err
		}
		ts = src
	}

	repo, err := mstodo.New(mstodo.Config{
		TokenSource: ts,
		ListID:      mc.ListID,
		BaseURL:     mc.BaseURL,
		Transport:   opts.Transport,
	})
	if err != nil {
		return nil, nil, err
	}
	return repo, nil, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, _ Options) (domain.TaskRepository, func() error, error) {
	pc := cfg.Backend.Postgres
	if pc.DSN == "" {
		return nil, nil, fmt.Errorf("postgres backend requires dsn: %w", domain.ErrConfiguration)
	}

	maxConns := max(pc.MaxConns, 1)
	store, err := postgres.New(ctx, pc.DSN, int32(maxConns)) //nolint:gosec // validated small positive value
	if err != nil {
		return nil, nil, err
	}
	return store.Tasks(), func() error {
		store.Close()
		return nil
	}, nil
}

func openMemory(context.Context, *config.Config, Options) (domain.TaskRepository, func() error, error) {
	return memory.NewTaskRepo(), nil, nil
}
