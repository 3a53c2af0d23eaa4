package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// BeginRun records the start of a run.
func (s *SQLiteStore) BeginRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_root, output_root, started_at, total, cached)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourceRoot, run.OutputRoot, run.StartedAt.UnixMilli(), run.Total, run.Cached)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// RecordOutcome appends one item resolution to a run.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, file, compiler, scenario, status, reason, retriable, attempts, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.File, o.Compiler, o.Scenario, o.Status, o.Reason, o.Retriable, o.Attempts, o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", o.File, err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, finishedAt time.Time, totals RunTotals) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, succeeded = ?, partial = ?, failed_retriable = ?, failed_permanent = ?, cancelled = ?
		WHERE id = ?
	`, finishedAt.UnixMilli(), totals.Succeeded, totals.Partial, totals.FailedRetriable, totals.FailedPermanent, totals.Cancelled, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, source_root, output_root, started_at, finished_at, total, cached,
	succeeded, partial, failed_retriable, failed_permanent, cancelled`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.SourceRoot, &r.OutputRoot, &started, &finished, &r.Total, &r.Cached,
		&r.Totals.Succeeded, &r.Totals.Partial, &r.Totals.FailedRetriable, &r.Totals.FailedPermanent, &r.Totals.Cancelled)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		r.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return r, nil
}

// GetRun loads one run. An empty runID selects the most recent run.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var row *sql.Row
	if runID == "" {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	}

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		if runID == "" {
			return Run{}, fmt.Errorf("%w: journal is empty", ErrRunNotFound)
		}
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Failures returns the failed outcomes of a run in recording order.
func (s *SQLiteStore) Failures(ctx context.Context, runID string) ([]Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, file, compiler, scenario, status, reason, retriable, attempts, duration_ms
		FROM outcomes
		WHERE run_id = ? AND status = 'failed'
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	out := []Outcome{}
	for rows.Next() {
		var (
			o  Outcome
			ms int64
		)
		if err := rows.Scan(&o.RunID, &o.File, &o.Compiler, &o.Scenario, &o.Status, &o.Reason, &o.Retriable, &o.Attempts, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return out, nil
}
