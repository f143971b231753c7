package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxFeedSize = 256 << 20

var _ Source = (*FeedClient)(nil)

// FeedClient serves pages out of an RSS, Atom or WordPress export file. The
// export is read once on the first page request; later pages are slices of
// the same item list.
type FeedClient struct {
	httpClient   *http.Client
	location     string
	userAgent    string
	timeout      time.Duration
	gofeedParser *gofeed.Parser

	mu     sync.Mutex
	posts  []Post
	loaded bool
}

func NewFeedClient(httpClient *http.Client, location, userAgent string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		httpClient:   httpClient,
		location:     location,
		userAgent:    userAgent,
		timeout:      timeout,
		gofeedParser: gofeed.NewParser(),
	}
}

func (c *FeedClient) FetchPostsPage(ctx context.Context, pageIndex, pageSize int) ([]Post, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("invalid page request: index %d, size %d", pageIndex, pageSize)
	}

	posts, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	start := pageIndex * pageSize
	if start >= len(posts) {
		return []Post{}, nil
	}
	end := min(start+pageSize, len(posts))

	page := make([]Post, end-start)
	copy(page, posts[start:end])
	return page, nil
}

func (c *FeedClient) load(ctx context.Context) ([]Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.posts, nil
	}

	data, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	feed, err := c.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	posts := make([]Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		post := normalizeItem(item)
		if post.ID == "" {
			slog.Warn("Skipping feed item without identifier", "title", item.Title)
			continue
		}
		posts = append(posts, post)
	}

	slog.Info("Source feed loaded", "location", c.location, "posts", len(posts))

	c.posts = posts
	c.loaded = true
	return posts, nil
}

func (c *FeedClient) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(c.location, "http://") && !strings.HasPrefix(c.location, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(c.location, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to read feed file: %w", err)
		}
		return data, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", c.location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: c.location, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

func normalizeItem(item *gofeed.Item) Post {
	post := Post{
		ID:      cmp.Or(exportPostID(item), item.GUID, item.Link),
		Title:   item.Title,
		Body:    item.Content,
		Excerpt: item.Description,
		Link:    item.Link,
	}

	// feeds without full content carry the body in the description
	if post.Body == "" {
		post.Body = item.Description
		post.Excerpt = ""
	}

	if item.PublishedParsed != nil {
		post.PublishedAt = item.PublishedParsed.UTC()
	}

	return post
}

// WordPress exports carry the numeric post ID as <wp:post_id>.
func exportPostID(item *gofeed.Item) string {
	wp, ok := item.Extensions["wp"]
	if !ok {
		return ""
	}
	values := wp["post_id"]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
