package migration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/post-migrate/app/source"
)

// Driver pages through the source and fans posts out to a fixed pool of
// workers. Page fetches are sequential; the next page is fetched while the
// previous one is still being migrated.
type Driver struct {
	source   source.Source
	migrator PostMigrator
}

type dispatchResult struct {
	pagesFetched int
	nextPage     int
	cancelled    bool
	err          error
}

func NewDriver(src source.Source, migrator PostMigrator) *Driver {
	return &Driver{
		source:   src,
		migrator: migrator,
	}
}

// Run migrates the corpus starting at opts.StartPage. Cancelling ctx stops
// new dispatches; posts already handed to a worker run to completion.
// A page fetch failure ends the run with a *PageFetchError and the partial
// summary.
func (d *Driver) Run(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.withDefaults()

	summary := Summary{
		Failures:  []Failure{},
		StartPage: opts.StartPage,
		NextPage:  opts.StartPage,
		StartedAt: time.Now().UTC(),
	}

	slog.Info("Migration run started",
		"page_size", opts.PageSize,
		"max_concurrency", opts.MaxConcurrency,
		"start_page", opts.StartPage)

	jobs := make(chan source.Post)
	results := make(chan Outcome)
	dispatched := make(chan dispatchResult, 1)

	// workers finish dispatched posts even after ctx is cancelled
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < opts.MaxConcurrency; i++ {
		wg.Add(1)
		go d.worker(workCtx, i, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		dispatched <- d.dispatch(ctx, opts, jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for outcome := range results {
		summary.record(outcome)
	}

	result := <-dispatched

	summary.PagesFetched = result.pagesFetched
	summary.NextPage = result.nextPage
	summary.Cancelled = result.cancelled
	summary.FinishedAt = time.Now().UTC()
	if result.err != nil {
		summary.Error = result.err.Error()
	}

	slog.Info("Migration run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"images_migrated", summary.ImagesMigrated,
		"images_failed", summary.ImagesFailed,
		"pages_fetched", summary.PagesFetched,
		"next_page", summary.NextPage,
		"cancelled", summary.Cancelled,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String())

	return summary, result.err
}

func (d *Driver) worker(ctx context.Context, id int, jobs <-chan source.Post, results chan<- Outcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for post := range jobs {
		slog.Debug("Worker picked up post", "worker_id", id, "post_id", post.ID)
		results <- d.migrator.Migrate(ctx, post)
	}
}

func (d *Driver) dispatch(ctx context.Context, opts Options, jobs chan<- source.Post) dispatchResult {
	result := dispatchResult{nextPage: opts.StartPage}

	for page := opts.StartPage; ; page++ {
		result.nextPage = page

		if ctx.Err() != nil {
			result.cancelled = true
			slog.Warn("Migration run cancelled, dispatch stopped", "next_page", page)
			return result
		}

		posts, err := d.source.FetchPostsPage(ctx, page, opts.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				result.cancelled = true
				slog.Warn("Migration run cancelled during page fetch", "next_page", page)
				return result
			}

			slog.Error("Failed to fetch source page", "page", page, "pages_completed", result.pagesFetched, "error", err)
			result.err = &PageFetchError{Page: page, PagesCompleted: result.pagesFetched, Err: err}
			return result
		}

		result.pagesFetched++
		slog.Debug("Source page fetched", "page", page, "posts", len(posts))

		for _, post := range posts {
			select {
			case jobs <- post:
			case <-ctx.Done():
				// resuming re-runs this whole page
				result.cancelled = true
				slog.Warn("Migration run cancelled, dispatch stopped", "next_page", page)
				return result
			}
		}

		if len(posts) < opts.PageSize {
			result.nextPage = page + 1
			return result
		}
	}
}
