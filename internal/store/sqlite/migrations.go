package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations are applied in order; the schema version is their count,
// tracked in PRAGMA user_version. Append only.
var migrations = []string{ //nolint:gochecknoglobals // append-only schema history
	`CREATE TABLE IF NOT EXISTS tasks (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		title              TEXT    NOT NULL CHECK (length(trim(title)) > 0),
		description        TEXT    NOT NULL DEFAULT '',
		status             TEXT    NOT NULL DEFAULT 'todo'
		                           CHECK (status IN ('todo', 'in_progress', 'done')),
		priority           TEXT    NOT NULL DEFAULT 'medium'
		                           CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
		due_date           TEXT,
		tags               TEXT    NOT NULL DEFAULT '[]',
		project            TEXT    NOT NULL DEFAULT '',
		time_spent_minutes INTEGER NOT NULL DEFAULT 0 CHECK (time_spent_minutes >= 0),
		created_at         TEXT    NOT NULL,
		updated_at         TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks (project)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if err := applyMigration(ctx, db, i+1, migrations[i]); err != nil {
			return err
		}
		log.Info().Int("version", i+1).Msg("applied local store migration")
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting migration %d: %w", version, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("applying migration %d: %w", version, err)
	}
	// PRAGMA does not accept bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, version)); err != nil {
		return fmt.Errorf("recording migration %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", version, err)
	}
	return nil
}
