package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rewired-gh/curio/internal/logger"
)

// SchemaVersion is the schema version this build expects.
const SchemaVersion = 2

type migration struct {
	up          func(*sql.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "Initial collection schema",
		up: execAll(
			`CREATE TABLE IF NOT EXISTS collectibles (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				manufacturer TEXT NOT NULL DEFAULT '',
				year_produced TEXT NOT NULL DEFAULT '',
				condition TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_collectibles_user ON collectibles(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_collectibles_user_category ON collectibles(user_id, category)`,
		),
	},
	{
		version:     2,
		description: "Add price estimate columns",
		up: execAll(
			`ALTER TABLE collectibles ADD COLUMN market_value REAL`,
			`ALTER TABLE collectibles ADD COLUMN price_low REAL`,
			`ALTER TABLE collectibles ADD COLUMN price_high REAL`,
			`ALTER TABLE collectibles ADD COLUMN price_count INTEGER`,
			`ALTER TABLE collectibles ADD COLUMN confidence INTEGER`,
			`ALTER TABLE collectibles ADD COLUMN confidence_level TEXT`,
			`ALTER TABLE collectibles ADD COLUMN estimated_at INTEGER`,
			`CREATE INDEX IF NOT EXISTS idx_collectibles_user_value ON collectibles(user_id, market_value)`,
		),
	},
}

func execAll(queries ...string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, q := range queries {
			if _, err := tx.Exec(q); err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
		}
		return nil
	}
}

// migrate applies pending migrations, tracking progress in PRAGMA user_version.
func (s *Storage) migrate(ctx context.Context) error {
	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		logger.Debug("Applied migration %d: %s", m.version, m.description)
	}

	final, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != SchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

func (s *Storage) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
