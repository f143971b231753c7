package source

import "fmt"

// StatusError reports a non-success HTTP response from the source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source returned HTTP %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the request may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
