package session

import "errors"

// Sentinel errors for the session package. Check with errors.Is.
var (
	// ErrPersistence wraps store failures. The session keeps its position,
	// so the caller may retry the same operation.
	ErrPersistence = errors.New("session: store operation failed")
	// ErrDataIntegrity means a fetched batch item is missing required
	// fields; the load is aborted rather than presenting partial content.
	ErrDataIntegrity = errors.New("session: malformed batch data")
	// ErrConcurrentGrading rejects a grading submitted while a previous
	// one for this session is still in flight.
	ErrConcurrentGrading = errors.New("session: grading already in flight")
	// ErrNotPresenting means the session has no current item to operate on.
	ErrNotPresenting = errors.New("session: not presenting")
)
