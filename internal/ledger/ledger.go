// Package ledger records the lifecycle of simulation, analysis and validation jobs in
// a local SQLite database so that past and interrupted runs can be listed.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Kind is the type of job recorded.
type Kind string

// Job kinds.
const (
	KindSimulation Kind = "simulation"
	KindAnalysis   Kind = "analysis"
	KindValidation Kind = "validation"
)

// Status is the lifecycle state of an entry.
type Status string

// Entry statuses.
const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Entry is one recorded job.
type Entry struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Dir         string          `json:"dir"`
	Status      Status          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Filter narrows List.
type Filter struct {
	Kind   Kind
	Status Status
	Dir    string
	Limit  int
}

// Ledger is the SQLite-backed job log.
type Ledger struct {
	db *sql.DB
}

// Open opens the ledger database at dsn and configures WAL mode.
func Open(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	return &Ledger{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	dir          TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	result       TEXT,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_dir ON jobs(dir, kind);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// Migrate creates the schema.
func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "ledger: migrate")
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start records a running job and returns its id.
func (l *Ledger) Start(ctx context.Context, kind Kind, dir string) (string, error) {
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, dir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), dir, string(StatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "ledger: start %s for %s", kind, dir)
	}
	return id, nil
}

// Complete marks a job complete with an optional JSON-encodable result.
func (l *Ledger) Complete(ctx context.Context, id string, result any) error {
	var resultJSON sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "ledger: marshal result")
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}
	return l.finish(ctx, id, StatusComplete, resultJSON, "")
}

// Fail marks a job failed.
func (l *Ledger) Fail(ctx context.Context, id string, errMsg string) error {
	return l.finish(ctx, id, StatusFailed, sql.NullString{}, errMsg)
}

// Cancel marks a job cancelled.
func (l *Ledger) Cancel(ctx context.Context, id string) error {
	return l.finish(ctx, id, StatusCancelled, sql.NullString{}, "")
}

func (l *Ledger) finish(ctx context.Context, id string, status Status, result sql.NullString, errMsg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), result, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: mark %s %s", id, status)
	}
	return checkRowsAffected(res, id)
}

// Get returns one entry.
func (l *Ledger) Get(ctx context.Context, id string) (*Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, kind, dir, status, result, error, started_at, completed_at FROM jobs WHERE id = ?`, id)
	return scanEntry(row)
}

// LastSuccess returns the start time of the latest complete job of kind for dir, or
// nil if there is none.
func (l *Ledger) LastSuccess(ctx context.Context, kind Kind, dir string) (*time.Time, error) {
	var t time.Time
	err := l.db.QueryRowContext(ctx,
		`SELECT started_at FROM jobs WHERE kind = ? AND dir = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		string(kind), dir, string(StatusComplete),
	).Scan(&t)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: last success for %s", dir)
	}
	return &t, nil
}

// List returns entries newest first.
func (l *Ledger) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, kind, dir, status, result, error, started_at, completed_at FROM jobs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Dir != "" {
		query += ` AND dir = ?`
		args = append(args, filter.Dir)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "ledger: list iterate")
}

// MarkInterrupted fails every entry still running, typically left behind by a killed
// process. It returns the number of entries updated.
func (l *Ledger) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = 'interrupted', completed_at = ? WHERE status = ?`,
		string(StatusFailed), time.Now().UTC(), string(StatusRunning),
	)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: mark interrupted")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "ledger: rows affected")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "ledger: rows affected")
	}
	if n == 0 {
		return eris.Errorf("ledger: job not found: %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*Entry, error) {
	var e Entry
	var result sql.NullString
	var completed sql.NullTime

	err := row.Scan(&e.ID, &e.Kind, &e.Dir, &e.Status, &result, &e.Error, &e.StartedAt, &completed)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.New("ledger: job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: scan job")
	}
	if result.Valid {
		e.Result = json.RawMessage(result.String)
	}
	if completed.Valid {
		t := completed.Time
		e.CompletedAt = &t
	}
	return &e, nil
}
