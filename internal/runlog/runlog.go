// Package runlog records every job run in a SQLite database in the data
// directory, so status and runs commands can report history without parsing
// checkpoints or logs.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// Run is one recorded engine invocation.
type Run struct {
	ID         string          `json:"id"`
	JobID      string          `json:"job_id"`
	Adapter    string          `json:"adapter"`
	PlanKind   model.PlanKind  `json:"plan_kind"`
	PlanParam  string          `json:"plan_param"`
	Status     model.JobStatus `json:"status"`
	Processed  int             `json:"processed"`
	Skipped    int             `json:"skipped"`
	Reason     string          `json:"reason,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Log wraps the SQLite handle.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the run log database at path and configures WAL mode.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	adapter     TEXT NOT NULL,
	plan_kind   TEXT NOT NULL,
	plan_param  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	processed   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	reason      TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_job_id ON runs(job_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (l *Log) migrate() error {
	_, err := l.db.Exec(migration)
	return eris.Wrap(err, "runlog: migrate")
}

// Close closes the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Start records a run in the running state and returns its id.
func (l *Log) Start(ctx context.Context, jobID, adapterName string, plan model.Plan) (string, error) {
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, job_id, adapter, plan_kind, plan_param, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, jobID, adapterName, string(plan.Kind), plan.Param(), string(model.JobRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: insert run")
	}
	return id, nil
}

// Finish records a run's terminal state and counters.
func (l *Log) Finish(ctx context.Context, runID string, status model.JobStatus, processed, skipped int, reason string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, processed = ?, skipped = ?, reason = ?, finished_at = ? WHERE id = ?`,
		string(status), processed, skipped, reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run %s not found", runID)
	}
	return nil
}

// List returns runs newest-first, optionally filtered by status, capped at
// limit (default 50).
func (l *Log) List(ctx context.Context, status model.JobStatus, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, job_id, adapter, plan_kind, plan_param, status, processed, skipped,
	                 COALESCE(reason, ''), started_at, finished_at
	          FROM runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var kind, st string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.JobID, &r.Adapter, &kind, &r.PlanParam, &st,
			&r.Processed, &r.Skipped, &r.Reason, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		r.PlanKind = model.PlanKind(kind)
		r.Status = model.JobStatus(st)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: iterate runs")
}

// LastByJob returns the most recent run for a job, or nil if none.
func (l *Log) LastByJob(ctx context.Context, jobID string) (*Run, error) {
	runs, err := l.listByJob(ctx, jobID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (l *Log) listByJob(ctx context.Context, jobID string, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, job_id, adapter, plan_kind, plan_param, status, processed, skipped,
		        COALESCE(reason, ''), started_at, finished_at
		 FROM runs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: list runs for job %s", jobID)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var kind, st string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.JobID, &r.Adapter, &kind, &r.PlanParam, &st,
			&r.Processed, &r.Skipped, &r.Reason, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		r.PlanKind = model.PlanKind(kind)
		r.Status = model.JobStatus(st)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: iterate runs")
}
