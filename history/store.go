// Package history keeps a SQLite log of every render: what duration was
// predicted, what was measured and how the run ended.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Status is how a render ended.
type Status string

const (
	StatusOK     Status = "ok"     // measured duration within one frame of the prediction
	StatusDrift  Status = "drift"  // output written, duration outside tolerance
	StatusFailed Status = "failed" // engine failed or the run was cancelled
)

// Entry is one recorded render.
type Entry struct {
	ID         int64
	SequenceID string
	Job        string
	OutputPath string
	ClipCount  int
	Expected   float64
	Actual     float64
	SizeBytes  int64
	Status     Status
	Error      string
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Drift returns measured minus expected duration; zero for failed renders.
func (e Entry) Drift() float64 {
	if e.Status == StatusFailed {
		return 0
	}
	return e.Actual - e.Expected
}

// Store persists entries.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Record stores e and returns its ID. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	switch e.Status {
	case StatusOK, StatusDrift, StatusFailed:
	default:
		return 0, fmt.Errorf("invalid history status %q", e.Status)
	}
	if strings.TrimSpace(e.OutputPath) == "" {
		return 0, fmt.Errorf("history entry needs an output path")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO renders
		(sequence_id, job, output_path, clip_count, expected_duration, actual_duration,
		 size_bytes, status, error_message, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SequenceID, e.Job, e.OutputPath, e.ClipCount, e.Expected, e.Actual,
		e.SizeBytes, string(e.Status), e.Error, e.Elapsed.Milliseconds(),
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, sequence_id, job, output_path, clip_count, expected_duration,
		actual_duration, size_bytes, status, error_message, elapsed_ms, created_at
		FROM renders ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ForOutput returns every entry written to outputPath, newest first.
func (s *Store) ForOutput(ctx context.Context, outputPath string) ([]Entry, error) {
	return s.query(ctx, `SELECT id, sequence_id, job, output_path, clip_count, expected_duration,
		actual_duration, size_bytes, status, error_message, elapsed_ms, created_at
		FROM renders WHERE output_path = ? ORDER BY id DESC`, outputPath)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			status    string
			elapsedMS int64
			created   string
		)
		if err := rows.Scan(&e.ID, &e.SequenceID, &e.Job, &e.OutputPath, &e.ClipCount, &e.Expected,
			&e.Actual, &e.SizeBytes, &status, &e.Error, &elapsedMS, &created); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Status = Status(status)
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
