package database

import (
	"context"
)

type PostRepository interface {
	GetPost(ctx context.Context, id string) (*Post, error)
	GetPostCount(ctx context.Context) (int, error)

	UpsertPost(ctx context.Context, post Post) error
}

type RunRepository interface {
	GetLatestRun(ctx context.Context) (*Run, error)

	SaveRun(ctx context.Context, run Run) error
}
