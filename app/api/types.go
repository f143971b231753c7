package api

import (
	"context"

	"github.com/lysyi3m/post-migrate/app/database"
	"github.com/lysyi3m/post-migrate/app/migration"
)

type RunnerInterface interface {
	Start(ctx context.Context, opts migration.Options) (string, error)
	Running() (string, bool)
	Latest(ctx context.Context) (*migration.Summary, error)
}

var _ RunnerInterface = (*migration.Runner)(nil)

type Handler struct {
	postRepo       database.PostRepository
	runner         RunnerInterface
	defaultOptions migration.Options
	// background runs outlive the request that started them
	baseCtx context.Context
}

type postResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Excerpt     string   `json:"excerpt"`
	ReadingTime int      `json:"reading_time"`
	Images      []string `json:"images"`
	PublishedAt *string  `json:"published_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type startRunRequest struct {
	PageSize       *int `json:"page_size"`
	MaxConcurrency *int `json:"max_concurrency"`
	StartPage      *int `json:"start_page"`
}
