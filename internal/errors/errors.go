// Package errors defines the error types shared across the indexing and
// query paths.
package errors

import (
	"errors"
	"fmt"
)

// ErrWatcherRunning is returned when Start is called on a running watcher.
var ErrWatcherRunning = errors.New("watcher already running")

// InvalidResponseError reports a malformed response from an external
// provider (embedder or vector store). The original provider message is
// preserved so user-visible failures carry it.
type InvalidResponseError struct {
	Provider string
	Err      error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response from %s: %v", e.Provider, e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// NewInvalidResponse wraps a provider error.
func NewInvalidResponse(provider string, err error) *InvalidResponseError {
	return &InvalidResponseError{Provider: provider, Err: err}
}

// IsInvalidResponse reports whether err is (or wraps) an InvalidResponseError.
func IsInvalidResponse(err error) bool {
	var ire *InvalidResponseError
	return errors.As(err, &ire)
}
