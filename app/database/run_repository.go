package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var _ RunRepository = (*RunRepositoryImpl)(nil)

// RunRepositoryImpl keeps the history of migration runs and their failures
type RunRepositoryImpl struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

// SaveRun stores the run summary, replacing any earlier record of the same run.
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: run ID is empty", ErrValidation)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, status, total, succeeded, failed, images_migrated, images_failed,
			pages_fetched, start_page, next_page, cancelled, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			images_migrated = excluded.images_migrated,
			images_failed = excluded.images_failed,
			pages_fetched = excluded.pages_fetched,
			start_page = excluded.start_page,
			next_page = excluded.next_page,
			cancelled = excluded.cancelled,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, run.ID, string(run.Status), run.Total, run.Succeeded, run.Failed, run.ImagesMigrated, run.ImagesFailed,
		run.PagesFetched, run.StartPage, run.NextPage, run.Cancelled, run.Error,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("%w: failed to save run %s: %v", ErrUnavailable, run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_failures WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("%w: failed to clear run failures: %v", ErrUnavailable, err)
	}

	for i, failure := range run.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_failures (run_id, position, post_id, reason)
			VALUES (?, ?, ?, ?)
		`, run.ID, i, failure.PostID, failure.Reason)
		if err != nil {
			return fmt.Errorf("%w: failed to save run failure: %v", ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit run %s: %v", ErrUnavailable, run.ID, err)
	}

	return nil
}

// GetLatestRun returns nil when no run has been recorded yet.
func (r *RunRepositoryImpl) GetLatestRun(ctx context.Context) (*Run, error) {
	var run Run
	var status, startedAt, finishedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, total, succeeded, failed, images_migrated, images_failed,
		       pages_fetched, start_page, next_page, cancelled, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&run.ID, &status, &run.Total, &run.Succeeded, &run.Failed, &run.ImagesMigrated, &run.ImagesFailed,
		&run.PagesFetched, &run.StartPage, &run.NextPage, &run.Cancelled, &run.Error, &startedAt, &finishedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest run: %v", ErrUnavailable, err)
	}

	run.Status = RunStatus(status)
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT post_id, reason
		FROM run_failures
		WHERE run_id = ?
		ORDER BY position
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get run failures: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var failure RunFailure
		if err := rows.Scan(&failure.PostID, &failure.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run failure row: %w", err)
		}
		run.Failures = append(run.Failures, failure)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run failure rows: %w", err)
	}

	return &run, nil
}
