// Package ledger records ingestion runs in a SQLite database: which archive
// was loaded, when, how many documents were accepted and the first failure.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// Status is the state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusPartial means the run committed but rejected some documents.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is one ingestion of one archive.
type Run struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Accepted   int64     `json:"accepted"`
	Rejected   int64     `json:"rejected"`
	Skipped    int64     `json:"skipped"`
	// FailureDoc and FailureError describe the first rejected document.
	FailureDoc   string `json:"failure_doc,omitempty"`
	FailureError string `json:"failure_error,omitempty"`
	Status       Status `json:"status"`
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Ledger stores runs.
type Ledger struct {
	db    *sql.DB
	owned bool
	now   func() time.Time
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot create ledger directory", err).WithDetail("path", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot open ledger", err).WithDetail("path", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ferrors.New(ferrors.ErrCodeLedger, "failed to set pragma", err).WithDetail("path", path)
		}
	}

	l, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// New uses an already open database. Close leaves db open.
func New(db *sql.DB) (*Ledger, error) {
	if db == nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "database connection is required", nil)
	}
	if err := initSchema(db); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot create ledger schema", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failure_doc TEXT NOT NULL DEFAULT '',
		failure_error TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// Begin records the start of a run over source.
func (l *Ledger) Begin(ctx context.Context, source string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: l.now().UTC(),
		Status:    StatusRunning,
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, run.StartedAt.UnixMilli(), string(run.Status))
	if err != nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot record run start", err).WithDetail("source", source)
	}
	return run, nil
}

// Finish stamps run as finished and stores its counts and status. A running
// status is resolved from the counts.
func (l *Ledger) Finish(ctx context.Context, run *Run) error {
	run.FinishedAt = l.now().UTC()
	if run.Status == StatusRunning || run.Status == "" {
		run.Status = StatusCompleted
		if run.Rejected > 0 {
			run.Status = StatusPartial
		}
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, accepted = ?, rejected = ?, skipped = ?,
			failure_doc = ?, failure_error = ?, status = ?
		WHERE id = ?`,
		run.FinishedAt.UnixMilli(), run.Accepted, run.Rejected, run.Skipped,
		run.FailureDoc, run.FailureError, string(run.Status), run.ID)
	if err != nil {
		return ferrors.New(ferrors.ErrCodeLedger, "cannot record run finish", err).WithDetail("run", run.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ferrors.New(ferrors.ErrCodeLedger, fmt.Sprintf("unknown run %s", run.ID), nil)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at, accepted, rejected, skipped,
			failure_doc, failure_error, status
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot read run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeLedger, "cannot list runs", err)
	}
	return runs, nil
}

// Get returns the run with id.
func (l *Ledger) Get(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, source, started_at, finished_at, accepted, rejected, skipped,
			failure_doc, failure_error, status
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, ferrors.New(ferrors.ErrCodeLedger, fmt.Sprintf("cannot read run %s", id), err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run               Run
		started, finished int64
		status            string
	)
	err := s.Scan(&run.ID, &run.Source, &started, &finished,
		&run.Accepted, &run.Rejected, &run.Skipped,
		&run.FailureDoc, &run.FailureError, &status)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		run.FinishedAt = time.UnixMilli(finished).UTC()
	}
	run.Status = Status(status)
	return run, nil
}

// Close closes the database if Open created it.
func (l *Ledger) Close() error {
	if !l.owned {
		return nil
	}
	return l.db.Close()
}
