// Package history records snipcheck runs in a SQLite database so results can
// be compared across edits of a guide.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/snipcheck/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Run is one recorded snipcheck run.
type Run struct {
	ID        string
	Document  string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
	Skipped   int
}

// BlockRecord is one block's stored result.
type BlockRecord struct {
	RunID      string
	Index      int
	Tag        string
	Line       int
	Section    string
	Status     models.Status
	Kind       models.FailureKind
	Diagnostic string
	Duration   time.Duration
}

// Store manages the history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout first so the following statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SchemaVersion returns the highest applied schema version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// RecordRun stores a run and all of its block results in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, summary models.Summary) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, document, started_at, duration_ms, total, passed, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Document, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		summary.Total, summary.Passed(), summary.Failed(), summary.Skipped())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO block_results (run_id, block_index, tag, line, section, status, kind, diagnostic, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare block insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range summary.Results {
		_, err := stmt.ExecContext(ctx, run.ID, r.Block.Index, r.Block.Tag, r.Block.Line,
			r.Block.SectionTitle(), string(r.Status), string(r.Kind), r.Diagnostic, r.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert block %d: %w", r.Block.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. An empty document
// matches every document.
func (s *Store) RecentRuns(ctx context.Context, document string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, document, started_at, duration_ms, total, passed, failed, skipped FROM runs`
	args := []any{}
	if document != "" {
		query += ` WHERE document = ?`
		args = append(args, document)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Document, &r.StartedAt, &durationMS, &r.Total, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunResults returns a run's block results in document order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]BlockRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, block_index, tag, line, section, status, kind, diagnostic, duration_ms
		 FROM block_results WHERE run_id = ? ORDER BY block_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query block results: %w", err)
	}
	defer rows.Close()

	var records []BlockRecord
	for rows.Next() {
		var rec BlockRecord
		var status, kind string
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Tag, &rec.Line, &rec.Section, &status, &kind, &rec.Diagnostic, &durationMS); err != nil {
			return nil, fmt.Errorf("scan block result: %w", err)
		}
		rec.Status = models.Status(status)
		rec.Kind = models.FailureKind(kind)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
