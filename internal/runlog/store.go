// Package runlog persists run history in a SQLite ledger. The ledger is
// observational only: resume decisions come from the checkpoint directory,
// never from here, so a lost or deleted database costs nothing but history.
package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; the ledger carries no state worth migrating, so a mismatch just
// asks the operator to delete the database.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Run is one pipeline invocation as recorded in the ledger.
type Run struct {
	ID            string
	Source        string
	Destination   string
	Fingerprint   string
	SegmentsTotal int
	SegmentsDone  int
	Outcome       Outcome
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
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

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
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
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
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
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Begin records a new run and returns its ledger identifier.
func (s *Store) Begin(ctx context.Context, source, destination, fingerprint string, segmentsTotal int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, destination, fingerprint, segments_total, segments_done, outcome, started_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		id, source, destination, fingerprint, segmentsTotal, string(OutcomeRunning), formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// Progress updates the completed-segment counter for a running run.
func (s *Store) Progress(ctx context.Context, id string, segmentsDone int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET segments_done = ? WHERE id = ?", segmentsDone, id)
	if err != nil {
		return fmt.Errorf("record run progress: %w", err)
	}
	return nil
}

// Finish closes out a run with its final outcome. For failed runs, message
// carries the cause.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome, segmentsDone int, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET outcome = ?, segments_done = ?, error = ?, finished_at = ? WHERE id = ?",
		string(outcome), segmentsDone, message, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, destination, fingerprint, segments_total, segments_done, outcome, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// BySource returns up to limit runs for one source path, newest first.
func (s *Store) BySource(ctx context.Context, source string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, destination, fingerprint, segments_total, segments_done, outcome, error, started_at, finished_at
		 FROM runs WHERE source = ? ORDER BY started_at DESC, id LIMIT ?`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs for source: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			run        Run
			outcome    string
			started    string
			finished   sql.NullString
			parseError error
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.Destination, &run.Fingerprint,
			&run.SegmentsTotal, &run.SegmentsDone, &outcome, &run.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Outcome = Outcome(outcome)
		run.StartedAt, parseError = parseTime(started)
		if parseError != nil {
			return nil, fmt.Errorf("parse run start time: %w", parseError)
		}
		if finished.Valid && finished.String != "" {
			run.FinishedAt, parseError = parseTime(finished.String)
			if parseError != nil {
				return nil, fmt.Errorf("parse run finish time: %w", parseError)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
