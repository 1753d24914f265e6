package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS balance_records (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		project    TEXT NOT NULL,
		provider   TEXT NOT NULL,
		success    INTEGER NOT NULL DEFAULT 0,
		value      REAL NOT NULL DEFAULT 0.0,
		currency   TEXT NOT NULL DEFAULT '',
		error      TEXT NOT NULL DEFAULT '',
		timestamp  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_balance_project_id ON balance_records(project_id);
	CREATE INDEX IF NOT EXISTS idx_balance_provider ON balance_records(provider);
	CREATE INDEX IF NOT EXISTS idx_balance_timestamp ON balance_records(timestamp);

	CREATE TABLE IF NOT EXISTS alert_records (
		id        TEXT PRIMARY KEY,
		kind      TEXT NOT NULL,
		subject   TEXT NOT NULL,
		message   TEXT NOT NULL,
		status    TEXT NOT NULL,
		attempts  INTEGER NOT NULL DEFAULT 0,
		error     TEXT NOT NULL DEFAULT '',
		sent_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alert_subject ON alert_records(subject);
	CREATE INDEX IF NOT EXISTS idx_alert_sent_at ON alert_records(sent_at);

	CREATE TABLE IF NOT EXISTS subscription_snapshots (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		days_until   INTEGER NOT NULL,
		next_renewal DATETIME NOT NULL,
		need_alert   INTEGER NOT NULL DEFAULT 0,
		timestamp    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshot_name ON subscription_snapshots(name);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	// Ensure migration tracking table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
