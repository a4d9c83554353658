package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// schemaVersion is the current expected schema version.
const schemaVersion = 2

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations. Each is applied once
// inside a transaction and tracked in the schema_version table.
var migrations = []migration{
	{
		Version:     1,
		Description: "base schema: cycles, outcomes",
		SQL: `
		CREATE TABLE IF NOT EXISTS cycles (
			id          TEXT PRIMARY KEY,
			event_id    TEXT NOT NULL,
			component   TEXT NOT NULL,
			bot_id      TEXT,
			started_at  INTEGER NOT NULL,
			duration_us INTEGER DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);

		CREATE TABLE IF NOT EXISTS outcomes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
			listener    TEXT NOT NULL,
			priority    INTEGER NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT,
			duration_us INTEGER DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_cycle ON outcomes(cycle_id);
		`,
	},
	{
		Version:     2,
		Description: "v2: author column, listener index",
		SQL: `
		ALTER TABLE cycles ADD COLUMN author TEXT DEFAULT '';
		CREATE INDEX IF NOT EXISTS idx_outcomes_listener ON outcomes(listener, status);
		`,
	},
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := GetSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.Info("applying audit migration", "version", m.Version, "description", m.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// GetSchemaVersion returns the highest applied migration, or 0.
func GetSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}
