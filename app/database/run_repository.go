package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ RunRepository = (*RunRepositoryImpl)(nil)

// RunRepositoryImpl handles database operations for job runs
type RunRepositoryImpl struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

const runColumns = `id, date, platform, status, target_count, item_count,
	error_detail, started_at, finished_at, created_at`

// UpsertPending ensures a run row exists for (date, platform). Re-running a
// date reuses the existing row, so the unique key never produces duplicates.
func (r *RunRepositoryImpl) UpsertPending(date, platform string) (*Run, error) {
	_, err := r.db.Exec(`
		INSERT INTO job_runs (date, platform, status)
		VALUES (?, ?, ?)
		ON CONFLICT(date, platform) DO NOTHING
	`, date, platform, RunStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert run: %w", err)
	}

	return r.GetRun(date, platform)
}

// MarkRunning transitions the run into the running state and resets its
// counters for a fresh pass. The status guard makes the transition act as a
// mutex: a second caller for the same (date, platform) gets false and must
// treat the cycle as already in progress.
func (r *RunRepositoryImpl) MarkRunning(date, platform string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE job_runs
		SET status = ?, started_at = ?, finished_at = NULL,
		    target_count = 0, item_count = 0, error_detail = ''
		WHERE date = ? AND platform = ? AND status != ?
	`, RunStatusRunning, time.Now().UTC(), date, platform, RunStatusRunning)
	if err != nil {
		return false, fmt.Errorf("failed to mark run running: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Complete sets the terminal status and final counters for a run
func (r *RunRepositoryImpl) Complete(date, platform, status string, targetCount, itemCount int, errorDetail string) error {
	_, err := r.db.Exec(`
		UPDATE job_runs
		SET status = ?, target_count = ?, item_count = ?, error_detail = ?, finished_at = ?
		WHERE date = ? AND platform = ?
	`, status, targetCount, itemCount, errorDetail, time.Now().UTC(), date, platform)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

func (r *RunRepositoryImpl) GetRun(date, platform string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT `+runColumns+`
		FROM job_runs
		WHERE date = ? AND platform = ?
	`, date, platform)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func (r *RunRepositoryImpl) ListByDate(date string) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT `+runColumns+`
		FROM job_runs
		WHERE date = ?
		ORDER BY id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs by date: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func (r *RunRepositoryImpl) ListRecent(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT `+runColumns+`
		FROM job_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.Date, &run.Platform, &run.Status, &run.TargetCount,
		&run.ItemCount, &run.ErrorDetail, &startedAt, &finishedAt, &run.CreatedAt,
	)
	if err != nil {
		return run, err
	}

	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}
