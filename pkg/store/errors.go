package store

import "errors"

// Failed is the opaque error returned whenever the underlying database
// fails. The concrete cause has already been logged with context at the
// call site; once a caller sees Failed the store should be considered
// broken and the current validation run abandoned.
var Failed = errors.New("store: database operation failed")

// DecodeError reports that a stored record or key could not be decoded.
// The exported Decode* functions return it to their callers; the
// Repository load methods and Cleanup never do: a load that hits it
// treats the slot as absent, and cleanup deletes the offending key.
var DecodeError = errors.New("store: record cannot be decoded")

// UpdateError is returned by Repository.UpdatePoint. It either reports a
// deliberate abort requested by the update body, via Abort, or a fatal
// failure (body error or storage error), via Fail. WasAborted and
// HasFailed let a caller tell the two apart; the original source
// conflates both into a single error value, so this type recovers the
// distinction explicitly rather than introducing separate return types
// that would leak bbolt's retry plumbing into the Repository API.
type UpdateError struct {
	aborted bool
	err     error
}

// Abort constructs the error returned by an update body that wants to
// roll back the transaction deliberately, without that being treated as
// a failure.
func Abort() *UpdateError {
	return &UpdateError{aborted: true}
}

// Fail wraps a fatal error (the update body's own, or one propagated
// from the store) as an UpdateError.
func Fail(err error) *UpdateError {
	if err == nil {
		err = Failed
	}
	return &UpdateError{err: err}
}

// Error implements the error interface.
func (e *UpdateError) Error() string {
	if e.aborted {
		return "store: update aborted"
	}
	return "store: update failed: " + e.err.Error()
}

// Unwrap allows errors.Is/errors.As to see through to the underlying
// failure for non-aborted errors.
func (e *UpdateError) Unwrap() error {
	return e.err
}

// WasAborted reports whether the update was aborted deliberately by its
// body, as opposed to failing.
func (e *UpdateError) WasAborted() bool {
	return e != nil && e.aborted
}

// HasFailed reports whether the update failed for a reason other than a
// deliberate abort.
func (e *UpdateError) HasFailed() bool {
	return e != nil && !e.aborted
}
