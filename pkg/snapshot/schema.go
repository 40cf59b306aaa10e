package snapshot

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] upgrades the schema from version i to i+1. The version lives
// in SQLite's user_version pragma.
var migrations = [][]string{
	{
		`CREATE TABLE snapshots (
			snapshot_id  TEXT PRIMARY KEY,
			base_uri     TEXT NOT NULL,
			provider     TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			completed_at TEXT,
			object_count INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_snapshots_base ON snapshots(base_uri, completed_at)`,

		// (snapshot_id, key) is also the ordered index delimiter listings seek on.
		`CREATE TABLE objects (
			snapshot_id   TEXT NOT NULL REFERENCES snapshots(snapshot_id),
			key           TEXT NOT NULL,
			size_bytes    INTEGER NOT NULL,
			last_modified TEXT,
			etag          TEXT,
			PRIMARY KEY (snapshot_id, key)
		) WITHOUT ROWID`,
	},
}

// SchemaVersion is the version Migrate brings a database to.
var SchemaVersion = len(migrations)

// Migrate applies the migrations db has not seen yet, in one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("snapshot database schema v%d is newer than supported v%d", current, SchemaVersion)
	}
	for v := current; v < SchemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate to v%d: %w", v+1, err)
			}
		}
	}
	// Pragmas take no bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, SchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

// Version returns the schema version recorded in db; 0 for an empty database.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}
