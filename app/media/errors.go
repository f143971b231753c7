package media

import (
	"errors"
	"fmt"
)

// TransientError is a fetch failure worth retrying: network errors,
// timeouts and 5xx responses.
type TransientError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch error for %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transient fetch error for %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a fetch failure that will not change on retry (4xx,
// unusable URLs, oversized bodies).
type PermanentError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent fetch error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("permanent fetch error for %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}
