// Package snapshot records a namespace listing into SQLite and serves
// one-level listings back from it offline.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// ErrNoSnapshot is returned when no completed snapshot matches a lookup.
var ErrNoSnapshot = errors.New("no snapshot found")

type Config struct {
	// Path is a local filesystem path to the snapshot database, or ":memory:".
	Path string
}

// Store is a snapshot database handle.
type Store struct {
	db *sql.DB
}

// Snapshot describes one recorded listing.
type Snapshot struct {
	ID          string
	BaseURI     string
	Provider    string
	CreatedAt   time.Time
	CompletedAt *time.Time
	ObjectCount int64
}

// Open opens (and creates if needed) a snapshot database and migrates it.
//
// Parent directories of local paths are created. A single connection is used
// with WAL and busy_timeout applied.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping snapshot store: %w", err)
	}
	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Create starts a new snapshot for baseURI.
func (s *Store) Create(ctx context.Context, baseURI, providerName string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.NewString(),
		BaseURI:   baseURI,
		Provider:  providerName,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, base_uri, provider, created_at, object_count)
		 VALUES (?, ?, ?, ?, 0)`,
		snap.ID, snap.BaseURI, snap.Provider, formatTime(snap.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	return snap, nil
}

// Complete marks a snapshot as finished and stores its object count.
func (s *Store) Complete(ctx context.Context, id string) (*Snapshot, error) {
	count, err := s.Count(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET completed_at = ?, object_count = ? WHERE snapshot_id = ?`,
		formatTime(time.Now().UTC()), count, id)
	if err != nil {
		return nil, fmt.Errorf("complete snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("complete snapshot %s: %w", id, ErrNoSnapshot)
	}
	return s.Get(ctx, id)
}

// Get loads a snapshot by id.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id, base_uri, provider, created_at, completed_at, object_count
		 FROM snapshots WHERE snapshot_id = ?`, id)
	return scanSnapshot(row)
}

// Latest returns the most recent completed snapshot of baseURI, or of any
// base URI when baseURI is empty.
func (s *Store) Latest(ctx context.Context, baseURI string) (*Snapshot, error) {
	query := `SELECT snapshot_id, base_uri, provider, created_at, completed_at, object_count
		FROM snapshots WHERE completed_at IS NOT NULL`
	var args []any
	if baseURI != "" {
		query += ` AND base_uri = ?`
		args = append(args, baseURI)
	}
	query += ` ORDER BY completed_at DESC, created_at DESC LIMIT 1`
	return scanSnapshot(s.db.QueryRowContext(ctx, query, args...))
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		snap      Snapshot
		created   string
		completed sql.NullString
	)
	err := row.Scan(&snap.ID, &snap.BaseURI, &snap.Provider, &created, &completed, &snap.ObjectCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if snap.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		snap.CompletedAt = &t
	}
	return &snap, nil
}

func buildDSN(cfg Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("snapshot store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	path = strings.TrimPrefix(path, "file:")
	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
