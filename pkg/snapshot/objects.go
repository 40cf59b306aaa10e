package snapshot

import (
	"context"
	"fmt"

	"github.com/3leaps/depthls/pkg/provider"
)

// Record upserts a batch of objects into a snapshot in a single transaction.
func (s *Store) Record(ctx context.Context, snapshotID string, objects []provider.ObjectSummary) error {
	if len(objects) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO objects (snapshot_id, key, size_bytes, last_modified, etag)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(snapshot_id, key) DO UPDATE SET
		   size_bytes = excluded.size_bytes,
		   last_modified = excluded.last_modified,
		   etag = excluded.etag`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, obj := range objects {
		var lastModified any
		if !obj.LastModified.IsZero() {
			lastModified = formatTime(obj.LastModified)
		}
		if _, err := stmt.ExecContext(ctx, snapshotID, obj.Key, obj.Size, lastModified, obj.ETag); err != nil {
			return fmt.Errorf("exec upsert for %s: %w", obj.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Count returns the number of objects recorded in a snapshot.
func (s *Store) Count(ctx context.Context, snapshotID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE snapshot_id = ?`, snapshotID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}
	return n, nil
}
