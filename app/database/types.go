package database

import (
	"time"
)

// Post is a migrated post as kept in the destination store.
type Post struct {
	ID          string
	Title       string
	Body        string // Normalized HTML with destination media URLs
	Excerpt     string
	ReadingTime int      // Minutes, at least 1
	Images      []string // Destination image URLs referenced by Body
	PublishedAt time.Time
	CreatedAt   time.Time // Store managed
	UpdatedAt   time.Time // Store managed
}

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted summary of one migration run.
type Run struct {
	ID             string
	Status         RunStatus
	Total          int
	Succeeded      int
	Failed         int
	ImagesMigrated int
	ImagesFailed   int
	PagesFetched   int
	StartPage      int
	NextPage       int
	Cancelled      bool
	Error          string
	Failures       []RunFailure
	StartedAt      time.Time
	FinishedAt     time.Time
}

type RunFailure struct {
	PostID string
	Reason string
}
