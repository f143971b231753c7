package migration

import (
	"fmt"
	"time"
)

const (
	DefaultPageSize       = 20
	DefaultMaxConcurrency = 5
)

// Outcome is the result of migrating a single post.
type Outcome struct {
	PostID         string
	Success        bool
	ImagesMigrated int
	ImagesFailed   int
	Reason         string
}

type Failure struct {
	PostID string `yaml:"post_id" json:"post_id"`
	Reason string `yaml:"reason" json:"reason"`
}

// Summary aggregates the outcomes of one run. NextPage is the page a
// follow-up run should start from.
type Summary struct {
	RunID          string    `yaml:"run_id" json:"run_id"`
	Total          int       `yaml:"total" json:"total"`
	Succeeded      int       `yaml:"succeeded" json:"succeeded"`
	Failed         int       `yaml:"failed" json:"failed"`
	Failures       []Failure `yaml:"failures" json:"failures"`
	ImagesMigrated int       `yaml:"images_migrated" json:"images_migrated"`
	ImagesFailed   int       `yaml:"images_failed" json:"images_failed"`
	PagesFetched   int       `yaml:"pages_fetched" json:"pages_fetched"`
	StartPage      int       `yaml:"start_page" json:"start_page"`
	NextPage       int       `yaml:"next_page" json:"next_page"`
	Cancelled      bool      `yaml:"cancelled" json:"cancelled"`
	Error          string    `yaml:"error,omitempty" json:"error,omitempty"`
	StartedAt      time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt     time.Time `yaml:"finished_at" json:"finished_at"`
}

func (s *Summary) record(outcome Outcome) {
	s.Total++
	s.ImagesMigrated += outcome.ImagesMigrated
	s.ImagesFailed += outcome.ImagesFailed

	if outcome.Success {
		s.Succeeded++
		return
	}

	s.Failed++
	s.Failures = append(s.Failures, Failure{PostID: outcome.PostID, Reason: outcome.Reason})
}

type Options struct {
	PageSize       int `json:"page_size"`
	MaxConcurrency int `json:"max_concurrency"`
	StartPage      int `json:"start_page"`
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.StartPage < 0 {
		o.StartPage = 0
	}
	return o
}

// PageFetchError stops a run: the source could not deliver Page.
// Re-running with StartPage set to Page resumes where the run ended.
type PageFetchError struct {
	Page           int
	PagesCompleted int
	Err            error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("failed to fetch page %d after %d completed pages: %v", e.Page, e.PagesCompleted, e.Err)
}

func (e *PageFetchError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a malformed source post before any work is done.
type ValidationError struct {
	PostID string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
