package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// schemaVersion is the latest migration version.
const schemaVersion = 2

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations run in order, each exactly once, tracked in schema_version.
var migrations = []migration{
	{
		Version:     1,
		Description: "tips ledger",
		SQL: `
		CREATE TABLE IF NOT EXISTS tips (
			id          TEXT PRIMARY KEY,
			channel     TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			sender      TEXT NOT NULL DEFAULT '',
			recipient   TEXT NOT NULL DEFAULT '',
			amount      INTEGER NOT NULL DEFAULT 0,
			valid       BOOLEAN NOT NULL DEFAULT 0,
			reason      TEXT NOT NULL DEFAULT '',
			text        TEXT NOT NULL DEFAULT '',
			intent      TEXT NOT NULL DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(channel, message_id)
		);
		CREATE INDEX IF NOT EXISTS idx_tips_created ON tips(created_at);
		`,
	},
	{
		Version:     2,
		Description: "processing error column",
		SQL: `
		ALTER TABLE tips ADD COLUMN error TEXT NOT NULL DEFAULT '';
		CREATE INDEX IF NOT EXISTS idx_tips_sender ON tips(sender);
		`,
	},
}

// runMigrations applies every migration newer than the recorded version.
func runMigrations(db *sql.DB, log *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Info("Applying migration", "version", m.Version, "description", m.Description)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}

	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	version := 0
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}
