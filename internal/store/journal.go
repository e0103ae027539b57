package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/recpurge/internal/deleter"
)

// Run statuses stored in runs.status.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunAborted   = "aborted"
	RunPlanned   = "planned"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one journaled run.
type RunSummary struct {
	ID            string                `json:"id"`
	Query         string                `json:"query"`
	RecordType    string                `json:"record_type"`
	DryRun        bool                  `json:"dry_run"`
	MissingPolicy deleter.MissingPolicy `json:"missing_policy"`
	Status        string                `json:"status"`
	Error         string                `json:"error,omitempty"`
	Truncated     bool                  `json:"truncated"`
	Counts        deleter.Counts        `json:"counts"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at,omitempty"`
}

// RecordEvent is one journaled outcome for a record, with the run it belongs to.
type RecordEvent struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Outcome   deleter.Outcome `json:"outcome"`
}

var _ deleter.Journal = (*Store)(nil)

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, r *deleter.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, query, record_type, dry_run, missing_policy, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID,
		r.Query,
		r.RecordType,
		boolToInt(r.DryRun),
		string(r.MissingPolicy),
		RunRunning,
		formatTime(r.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordOutcome stores the outcome of the seq-th enumerated id.
// Rewriting the same (run, seq) replaces the earlier outcome.
func (s *Store) RecordOutcome(ctx context.Context, runID string, seq int, o deleter.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, seq, record_id, status, error, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO UPDATE SET
			record_id = excluded.record_id,
			status = excluded.status,
			error = excluded.error,
			duration_ns = excluded.duration_ns
	`,
		runID,
		seq,
		o.ID,
		string(o.Status),
		o.Error,
		int64(o.Duration),
	)
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", o.ID, err)
	}
	return nil
}

// FinishRun stores the final counts and status of a run.
// runErr is the error that aborted the run, if any.
func (s *Store) FinishRun(ctx context.Context, r *deleter.Report, runErr error) error {
	status := runStatus(r, runErr)
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, error = ?, truncated = ?,
			enumerated = ?, deleted = ?, missing = ?, failed = ?, skipped = ?,
			finished_at = ?
		WHERE id = ?
	`,
		status,
		errText,
		boolToInt(r.Truncated),
		r.Counts.Enumerated,
		r.Counts.Deleted,
		r.Counts.Missing,
		r.Counts.Failed,
		r.Counts.Skipped,
		formatTime(r.FinishedAt),
		r.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", r.RunID, ErrRunNotFound)
	}
	return nil
}

func runStatus(r *deleter.Report, runErr error) string {
	switch {
	case runErr != nil:
		return RunAborted
	case r.DryRun:
		return RunPlanned
	case r.OK():
		return RunCompleted
	default:
		return RunFailed
	}
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, query, record_type, dry_run, missing_policy, status, error, truncated,
		       enumerated, deleted, missing, failed, skipped, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run. Returns ErrRunNotFound if absent.
func (s *Store) ReadRun(ctx context.Context, id string) (RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, query, record_type, dry_run, missing_policy, status, error, truncated,
		       enumerated, deleted, missing, failed, skipped, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ReadOutcomes returns a run's outcomes in enumeration order.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadOutcomes(ctx context.Context, runID string) ([]deleter.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, status, error, duration_ns
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC, record_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []deleter.Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// RecordHistory returns every journaled outcome for one record id across
// runs, newest run first.
func (s *Store) RecordHistory(ctx context.Context, recordID string) ([]RecordEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.run_id, r.started_at, o.record_id, o.status, o.error, o.duration_ns
		FROM outcomes o
		JOIN runs r ON r.id = o.run_id
		WHERE o.record_id = ?
		ORDER BY r.started_at DESC, o.run_id COLLATE BINARY DESC, o.seq ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query record history: %w", err)
	}
	defer rows.Close()

	events := []RecordEvent{}
	for rows.Next() {
		var (
			ev       RecordEvent
			started  string
			status   string
			duration int64
		)
		if err := rows.Scan(&ev.RunID, &started, &ev.Outcome.ID, &status, &ev.Outcome.Error, &duration); err != nil {
			return nil, fmt.Errorf("scan record history: %w", err)
		}
		if ev.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		ev.Outcome.Status = deleter.Status(status)
		ev.Outcome.Duration = time.Duration(duration)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record history: %w", err)
	}
	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		run               RunSummary
		dryRun, truncated int
		policy            string
		started, finished string
	)
	err := row.Scan(
		&run.ID, &run.Query, &run.RecordType, &dryRun, &policy, &run.Status, &run.Error, &truncated,
		&run.Counts.Enumerated, &run.Counts.Deleted, &run.Counts.Missing, &run.Counts.Failed, &run.Counts.Skipped,
		&started, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunSummary{}, err
		}
		return RunSummary{}, fmt.Errorf("scan run: %w", err)
	}

	run.DryRun = dryRun != 0
	run.Truncated = truncated != 0
	run.MissingPolicy = deleter.MissingPolicy(policy)
	if run.StartedAt, err = parseTime(started); err != nil {
		return RunSummary{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return RunSummary{}, err
	}
	return run, nil
}

func scanOutcome(row rowScanner) (deleter.Outcome, error) {
	var (
		o        deleter.Outcome
		status   string
		duration int64
	)
	if err := row.Scan(&o.ID, &status, &o.Error, &duration); err != nil {
		return deleter.Outcome{}, fmt.Errorf("scan outcome: %w", err)
	}
	o.Status = deleter.Status(status)
	o.Duration = time.Duration(duration)
	return o, nil
}

// timeLayout is fixed-width RFC 3339 so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Timestamps are stored in UTC; zero time is stored as ''.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
