// Package ledger records one row per pre-flight invocation in a SQLite
// database under the output directory. The ledger is itself an output
// artifact and follows the output directory's append-only contract: rows
// are inserted, never updated or deleted, so concurrent and repeated runs
// stay safe. Ledger writes are best-effort: a ledger failure must never
// change a command's exit code.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the ledger's name inside the output directory.
const FileName = "preflight_runs.db"

// Run is one recorded invocation.
type Run struct {
	ID         string
	Command    string
	Mode       string
	Status     string
	Artifact   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger wraps the SQLite handle.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path, applying pragmas and
// the schema. Safe to call repeatedly.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to ledger: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY on overlapping invocations.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database handle.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// NewRunID returns a time-ordered unique run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Record inserts one run row. Duplicate IDs are silently ignored so a
// retried write stays idempotent.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, mode, status, artifact, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Command,
		run.Mode,
		run.Status,
		run.Artifact,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Runs returns all recorded runs ordered by start time, then ID, so the
// listing is stable for equal timestamps.
func (l *Ledger) Runs(ctx context.Context) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, command, mode, status, artifact, started_at, finished_at
		FROM runs
		ORDER BY started_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Command, &run.Mode, &run.Status, &run.Artifact, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
