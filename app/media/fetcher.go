package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxImageSize = 50 << 20

type FetcherInterface interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

var _ FetcherInterface = (*Fetcher)(nil)

// Fetcher downloads legacy media with a per-attempt timeout and bounded
// retries on transient failures.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration, maxRetries int, retryDelay time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		data, contentType, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, contentType, nil
		}

		lastErr = err
		if !IsTransient(err) || attempt == f.maxRetries {
			break
		}

		delay := time.Duration(attempt+1) * f.retryDelay
		slog.Debug("Retrying media fetch", "url", url, "attempt", attempt+1, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return nil, "", &TransientError{URL: url, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	return nil, "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, "", &PermanentError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", &TransientError{URL: url, Err: fmt.Errorf("failed to fetch URL: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, "", &TransientError{URL: url, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, "", &PermanentError{URL: url, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, "", &PermanentError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", &TransientError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(data) > maxImageSize {
		return nil, "", &PermanentError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", maxImageSize)}
	}

	return data, resp.Header.Get("Content-Type"), nil
}
