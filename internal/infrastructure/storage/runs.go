package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StartRun records the start of a reconciliation run
func (s *Storage) StartRun(patternTypes []string, lookbackDays int, dryRun bool) (int64, error) {
	query := `
		INSERT INTO reconcile_runs (pattern_types, started_at, lookback_days, dry_run, status)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query, strings.Join(patternTypes, ","), time.Now().UTC(), lookbackDays, dryRun, RunStatusRunning)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// CompleteRun records the completion of a run
func (s *Storage) CompleteRun(runID int64, counts RunCounts) error {
	query := `
		UPDATE reconcile_runs
		SET completed_at = ?,
		    status = ?,
		    charge_records = ?,
		    context_records = ?,
		    auto_matched = ?,
		    suggested = ?,
		    unmatched_charges = ?,
		    unmatched_context = ?,
		    invalid_records = ?
		WHERE id = ?
	`

	res, err := s.db.Exec(query,
		time.Now().UTC(),
		RunStatusCompleted,
		counts.ChargeRecords,
		counts.ContextRecords,
		counts.AutoMatched,
		counts.Suggested,
		counts.UnmatchedCharges,
		counts.UnmatchedContext,
		counts.InvalidRecords,
		runID,
	)
	return checkAffected(res, err, "run", runID)
}

// FailRun marks a run as failed
func (s *Storage) FailRun(runID int64, message string) error {
	res, err := s.db.Exec(`
		UPDATE reconcile_runs SET completed_at = ?, status = ?, error_message = ? WHERE id = ?
	`, time.Now().UTC(), RunStatusFailed, message, runID)
	return checkAffected(res, err, "run", runID)
}

const runColumns = `id, pattern_types, started_at, completed_at, lookback_days, dry_run, status,
	       error_message, charge_records, context_records, auto_matched, suggested,
	       unmatched_charges, unmatched_context, invalid_records`

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM reconcile_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM reconcile_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	return run, err
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run          Run
		patternTypes string
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&patternTypes,
		&run.StartedAt,
		&completedAt,
		&run.LookbackDays,
		&run.DryRun,
		&run.Status,
		&run.ErrorMessage,
		&run.ChargeRecords,
		&run.ContextRecords,
		&run.AutoMatched,
		&run.Suggested,
		&run.UnmatchedCharges,
		&run.UnmatchedContext,
		&run.InvalidRecords,
	)
	if err != nil {
		return nil, err
	}
	if patternTypes != "" {
		run.PatternTypes = strings.Split(patternTypes, ",")
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func checkAffected(res sql.Result, err error, kind string, id any) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
	}
	return nil
}
