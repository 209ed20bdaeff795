// Package sqlite implements the local task backend on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // database/sql driver
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store owns the SQLite connection and exposes the task repository.
type Store struct {
	db    *sql.DB
	tasks *TaskRepo
}

// fileDSN builds a SQLite URI for path. The path is percent-escaped so that
// '?', '#' and '%' in a file name stay part of the name.
func fileDSN(path string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(path),
		RawQuery: "_busy_timeout=5000&_journal_mode=WAL",
	}
	return u.String()
}

// Open opens (creating if needed) the database at path and applies pending
// schema migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite.Open: creating directory: %w: %w", domain.ErrBackendUnavailable, err)
		}
		dsn = fileDSN(path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w: %w", domain.ErrBackendUnavailable, err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: ping: %w: %w", domain.ErrBackendUnavailable, err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: %w: %w", domain.ErrBackendUnavailable, err)
	}

	log.Debug().Str("path", path).Msg("local task store opened")

	return &Store{db: db, tasks: NewTaskRepo(db)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Tasks() *TaskRepo { return s.tasks }
