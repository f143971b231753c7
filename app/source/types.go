package source

import (
	"context"
	"time"
)

// Post is one legacy post as delivered by the source corpus.
type Post struct {
	ID          string
	Title       string
	Body        string
	Excerpt     string
	PublishedAt time.Time
	Link        string
}

// Source pages through the legacy corpus. Pages are zero-indexed and a page
// shorter than pageSize is the last one.
type Source interface {
	FetchPostsPage(ctx context.Context, pageIndex, pageSize int) ([]Post, error)
}
