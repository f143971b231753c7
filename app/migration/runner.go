package migration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/post-migrate/app/database"
)

var ErrRunInProgress = errors.New("migration run already in progress")

type RunDriver interface {
	Run(ctx context.Context, opts Options) (Summary, error)
}

var _ RunDriver = (*Driver)(nil)

// Runner allows one migration run at a time and records every run in the
// run repository.
type Runner struct {
	driver  RunDriver
	runRepo database.RunRepository
	timeout time.Duration

	mu      sync.Mutex
	running string
	latest  *Summary
}

func NewRunner(driver RunDriver, runRepo database.RunRepository, timeout time.Duration) *Runner {
	return &Runner{
		driver:  driver,
		runRepo: runRepo,
		timeout: timeout,
	}
}

// Run migrates synchronously and returns the summary with its run ID.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	runID, err := r.acquire()
	if err != nil {
		return Summary{}, err
	}
	return r.execute(ctx, runID, opts)
}

// Start launches a run in the background and returns its ID.
func (r *Runner) Start(ctx context.Context, opts Options) (string, error) {
	runID, err := r.acquire()
	if err != nil {
		return "", err
	}

	go func() {
		if _, err := r.execute(ctx, runID, opts); err != nil {
			slog.Error("Background migration run failed", "run_id", runID, "error", err)
		}
	}()

	return runID, nil
}

// Running returns the ID of the run in progress, if any.
func (r *Runner) Running() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.running != ""
}

// Latest returns the most recent finished run, falling back to the run
// repository when this process has not completed one yet.
func (r *Runner) Latest(ctx context.Context) (*Summary, error) {
	r.mu.Lock()
	latest := r.latest
	r.mu.Unlock()

	if latest != nil {
		summary := *latest
		return &summary, nil
	}

	run, err := r.runRepo.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	summary := summaryFromRun(*run)
	return &summary, nil
}

func (r *Runner) acquire() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running != "" {
		return "", ErrRunInProgress
	}

	r.running = uuid.NewString()
	return r.running, nil
}

func (r *Runner) execute(ctx context.Context, runID string, opts Options) (Summary, error) {
	defer func() {
		r.mu.Lock()
		r.running = ""
		r.mu.Unlock()
	}()

	summary, runErr := r.driver.Run(ctx, opts)
	summary.RunID = runID

	status := database.RunStatusCompleted
	switch {
	case runErr != nil:
		status = database.RunStatusFailed
	case summary.Cancelled:
		status = database.RunStatusCancelled
	}

	// the run is recorded even when ctx was cancelled
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.runRepo.SaveRun(saveCtx, runFromSummary(summary, status)); err != nil {
		slog.Error("Failed to save migration run", "run_id", runID, "error", err)
	}

	r.mu.Lock()
	latest := summary
	r.latest = &latest
	r.mu.Unlock()

	slog.Info("Migration run recorded", "run_id", runID, "status", string(status))

	return summary, runErr
}

func runFromSummary(summary Summary, status database.RunStatus) database.Run {
	failures := make([]database.RunFailure, 0, len(summary.Failures))
	for _, failure := range summary.Failures {
		failures = append(failures, database.RunFailure{PostID: failure.PostID, Reason: failure.Reason})
	}

	return database.Run{
		ID:             summary.RunID,
		Status:         status,
		Total:          summary.Total,
		Succeeded:      summary.Succeeded,
		Failed:         summary.Failed,
		ImagesMigrated: summary.ImagesMigrated,
		ImagesFailed:   summary.ImagesFailed,
		PagesFetched:   summary.PagesFetched,
		StartPage:      summary.StartPage,
		NextPage:       summary.NextPage,
		Cancelled:      summary.Cancelled,
		Error:          summary.Error,
		Failures:       failures,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
	}
}

func summaryFromRun(run database.Run) Summary {
	failures := make([]Failure, 0, len(run.Failures))
	for _, failure := range run.Failures {
		failures = append(failures, Failure{PostID: failure.PostID, Reason: failure.Reason})
	}

	return Summary{
		RunID:          run.ID,
		Total:          run.Total,
		Succeeded:      run.Succeeded,
		Failed:         run.Failed,
		Failures:       failures,
		ImagesMigrated: run.ImagesMigrated,
		ImagesFailed:   run.ImagesFailed,
		PagesFetched:   run.PagesFetched,
		StartPage:      run.StartPage,
		NextPage:       run.NextPage,
		Cancelled:      run.Cancelled,
		Error:          run.Error,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
}
