package database

import "errors"

var (
	// ErrValidation marks a record that is not fully formed and was not written.
	ErrValidation = errors.New("validation failed")
	// ErrUnavailable marks a store failure; the record may be retried later.
	ErrUnavailable = errors.New("store unavailable")
)
