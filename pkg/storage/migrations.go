package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS workers (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		chat_id    TEXT NOT NULL,
		active     INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bulk_stock_items (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL UNIQUE,
		quantity            REAL NOT NULL DEFAULT 0 CHECK(quantity >= 0),
		unit                TEXT NOT NULL,
		pickup_instructions TEXT NOT NULL,
		assigned_worker_id  TEXT REFERENCES workers(id) ON DELETE SET NULL,
		active              INTEGER NOT NULL DEFAULT 1,
		processed           INTEGER NOT NULL DEFAULT 0,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bulk_stock_media (
		id         TEXT PRIMARY KEY,
		item_id    TEXT NOT NULL REFERENCES bulk_stock_items(id) ON DELETE CASCADE,
		kind       TEXT NOT NULL CHECK(kind IN ('photo', 'video')),
		file_id    TEXT NOT NULL,
		path       TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_media_item ON bulk_stock_media(item_id);

	CREATE TABLE IF NOT EXISTS replenishment_rules (
		id           TEXT PRIMARY KEY,
		item_id      TEXT NOT NULL REFERENCES bulk_stock_items(id) ON DELETE CASCADE,
		product_type TEXT NOT NULL,
		threshold    INTEGER NOT NULL CHECK(threshold >= 0),
		active       INTEGER NOT NULL DEFAULT 1,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(item_id, product_type)
	);

	CREATE TABLE IF NOT EXISTS notification_records (
		id          TEXT PRIMARY KEY,
		rule_id     TEXT NOT NULL REFERENCES replenishment_rules(id) ON DELETE CASCADE,
		worker_id   TEXT NOT NULL DEFAULT '',
		recipient   TEXT NOT NULL,
		stock_level INTEGER NOT NULL,
		threshold   INTEGER NOT NULL,
		sent_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_rule_sent ON notification_records(rule_id, sent_at);

	CREATE TABLE IF NOT EXISTS products (
		id           TEXT PRIMARY KEY,
		product_type TEXT NOT NULL,
		available    INTEGER NOT NULL DEFAULT 0,
		reserved     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_products_type ON products(product_type);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
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
