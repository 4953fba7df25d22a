package capture

import (
	"github.com/pkg/errors"
)

var (
	// ErrSourceUnavailable means the descriptor named a camera or file
	// that could not be opened or probed.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrResolutionFailed means the remote-URL collaborator could not
	// produce a playable stream URL.
	ErrResolutionFailed = errors.New("stream resolution failed")

	// ErrEndOfStream is the reader's clean termination signal: the
	// source is exhausted or was closed.
	ErrEndOfStream = errors.New("end of stream")
)

// transientError marks a recoverable read or inference hiccup. The
// drive loop reports it and keeps going, up to a consecutive budget.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return "transient: " + e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err as recoverable. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is (or wraps) a transient error.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
