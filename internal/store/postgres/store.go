// Package postgres implements a shared task backend on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                 BIGSERIAL   PRIMARY KEY,
	title              TEXT        NOT NULL CHECK (length(btrim(title)) > 0),
	description        TEXT        NOT NULL DEFAULT '',
	status             TEXT        NOT NULL DEFAULT 'todo'
	                               CHECK (status IN ('todo', 'in_progress', 'done')),
	priority           TEXT        NOT NULL DEFAULT 'medium'
	                               CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
	due_date           TIMESTAMPTZ,
	tags               TEXT[]      NOT NULL DEFAULT '{}',
	project            TEXT        NOT NULL DEFAULT '',
	time_spent_minutes INTEGER     NOT NULL DEFAULT 0 CHECK (time_spent_minutes >= 0),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);
`

type Store struct {
	pool  *pgxpool.Pool
	tasks *TaskRepo
}

// New connects, pings and ensures the tasks table exists.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w: %w", domain.ErrConfiguration, err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w: %w", domain.ErrBackendUnavailable, err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w: %w", domain.ErrBackendUnavailable, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: schema: %w", err)
	}

	log.Debug().Str("host", cfg.ConnConfig.Host).Msg("postgres task store connected")

	return &Store{
		pool:  pool,
		tasks: NewTaskRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tasks() *TaskRepo { return s.tasks }
