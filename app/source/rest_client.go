package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	postsEndpoint      = "/wp-json/wp/v2/posts"
	invalidPageCode    = "rest_post_invalid_page_number"
	maxPageBodySize    = 32 << 20
	wordPressTimestamp = "2006-01-02T15:04:05"
)

var _ Source = (*RESTClient)(nil)

// RESTClient reads posts from the WordPress REST API in ascending ID order
// so page boundaries stay stable while the corpus is being migrated.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
}

type restPost struct {
	ID      int          `json:"id"`
	DateGMT string       `json:"date_gmt"`
	Link    string       `json:"link"`
	Title   restRendered `json:"title"`
	Content restRendered `json:"content"`
	Excerpt restRendered `json:"excerpt"`
}

type restRendered struct {
	Rendered string `json:"rendered"`
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewRESTClient(httpClient *http.Client, baseURL, userAgent string, timeout time.Duration, retryCount int, retryDelay time.Duration) *RESTClient {
	if retryCount < 1 {
		retryCount = 1
	}

	return &RESTClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		timeout:    timeout,
		retryCount: retryCount,
		retryDelay: retryDelay,
	}
}

func (c *RESTClient) FetchPostsPage(ctx context.Context, pageIndex, pageSize int) ([]Post, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("invalid page request: index %d, size %d", pageIndex, pageSize)
	}

	pageURL := c.pageURL(pageIndex, pageSize)

	var lastErr error
	for attempt := 0; attempt < c.retryCount; attempt++ {
		posts, err := c.fetchPageOnce(ctx, pageURL)
		if err == nil {
			return posts, nil
		}

		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, err
		}

		if attempt < c.retryCount-1 {
			waitTime := time.Duration(attempt+1) * c.retryDelay
			slog.Warn("Retrying source page fetch", "page", pageIndex, "attempt", attempt+1, "delay", waitTime.String(), "error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.retryCount, lastErr)
}

func (c *RESTClient) pageURL(pageIndex, pageSize int) string {
	query := url.Values{}
	query.Set("page", strconv.Itoa(pageIndex+1))
	query.Set("per_page", strconv.Itoa(pageSize))
	query.Set("orderby", "id")
	query.Set("order", "asc")

	return c.baseURL + postsEndpoint + "?" + query.Encode()
}

func (c *RESTClient) fetchPageOnce(ctx context.Context, pageURL string) ([]Post, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest && isInvalidPage(body) {
		return []Post{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	var raw []restPost
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	posts := make([]Post, 0, len(raw))
	for _, item := range raw {
		posts = append(posts, item.toPost())
	}

	return posts, nil
}

// WordPress answers a page past the end with 400 instead of an empty list.
func isInvalidPage(body []byte) bool {
	var apiErr restError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return false
	}
	return apiErr.Code == invalidPageCode
}

func (p restPost) toPost() Post {
	post := Post{
		ID:      strconv.Itoa(p.ID),
		Title:   p.Title.Rendered,
		Body:    p.Content.Rendered,
		Excerpt: p.Excerpt.Rendered,
		Link:    p.Link,
	}

	if p.DateGMT != "" {
		if publishedAt, err := time.Parse(wordPressTimestamp, p.DateGMT); err == nil {
			post.PublishedAt = publishedAt.UTC()
		}
	}

	return post
}
