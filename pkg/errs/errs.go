// Package errs defines the error taxonomy the router uses to decide
// between failing fast and falling back to the other store.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist in the
	// consulted store.
	ErrNotFound = errors.New("record not found")

	// ErrNetworkUnavailable marks transport-level failures talking to
	// the remote store.
	ErrNetworkUnavailable = errors.New("network unavailable")
)

// ValidationError reports malformed or out-of-range input. It is never
// retried against the other store and never enqueued.
type ValidationError struct {
	Msg   string
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation: %s: %v", e.Msg, e.Cause)
	}
	return "validation: " + e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func Validation(msg string) error { return &ValidationError{Msg: msg} }

func ValidationWrap(msg string, cause error) error {
	return &ValidationError{Msg: msg, Cause: cause}
}

// AuthorizationError reports a tenant or ownership mismatch. Fatal, not
// retried on either store.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return "authorization: " + e.Msg }

func Authorization(msg string) error { return &AuthorizationError{Msg: msg} }

// TransientIOError reports a network or remote-side failure. The only
// category that triggers local fallback for writes and stale reads for
// reads.
type TransientIOError struct {
	Op    string
	Cause error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient io during %s: %v", e.Op, e.Cause)
}

func (e *TransientIOError) Unwrap() error { return e.Cause }

func Transient(op string, cause error) error {
	return &TransientIOError{Op: op, Cause: cause}
}

// PersistenceError reports a local-store failure after the remote path
// is already exhausted. No fallback remains, so it is terminal.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

func Persistence(op string, cause error) error {
	return &PersistenceError{Op: op, Cause: cause}
}

// ReconciliationError reports shift-specific rule violations: missing
// active shift, unexplained variance, amounts out of bounds.
type ReconciliationError struct {
	Msg string
}

func (e *ReconciliationError) Error() string { return "reconciliation: " + e.Msg }

func Reconciliation(msg string) error { return &ReconciliationError{Msg: msg} }

// IsTransient reports whether err may be resolved by the other store or
// a later replay. Validation and authorization failures are logically
// invalid operations; retrying them elsewhere cannot fix them.
func IsTransient(err error) bool {
	var tr *TransientIOError
	if errors.As(err, &tr) {
		return true
	}
	return errors.Is(err, ErrNetworkUnavailable)
}

// IsFatal reports whether err must never trigger a fallback attempt.
func IsFatal(err error) bool {
	var ve *ValidationError
	var ae *AuthorizationError
	return errors.As(err, &ve) || errors.As(err, &ae)
}
