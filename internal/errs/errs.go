// Package errs defines the error taxonomy shared across the engine's
// workers, so callers can branch on kind instead of matching strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the category a worker-facing error belongs to.
type Kind string

const (
	// KindTransientIO marks a retriable storage or upstream I/O failure.
	KindTransientIO Kind = "transient_io"
	// KindValidation marks a malformed tick or out-of-order timestamp.
	KindValidation Kind = "validation"
	// KindInsufficientData marks an analyzer lacking minimum history.
	KindInsufficientData Kind = "insufficient_data"
	// KindTimeout marks an analyzer or sub-task that exceeded its budget.
	KindTimeout Kind = "timeout"
	// KindInvariantViolation marks a fatal accounting mismatch for a
	// simulation; it pauses that simulation only.
	KindInvariantViolation Kind = "invariant_violation"
	// KindConfiguration marks an unknown or contradictory startup option.
	KindConfiguration Kind = "configuration"
)

// Error wraps an underlying cause with a Kind so callers can use
// errors.As to recover both without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errs.New(errs.KindTimeout, "")) works as a kind check.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// OfKind reports whether err (or something it wraps) is an *Error with
// the given Kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// TransientIO builds a retriable I/O error.
func TransientIO(message string, cause error) *Error {
	return Wrap(KindTransientIO, message, cause)
}

// Validation builds a dropped-input error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// InsufficientData builds a bubbled "not enough history" result error.
func InsufficientData(message string) *Error {
	return New(KindInsufficientData, message)
}

// Timeout builds a budget-exceeded error.
func Timeout(message string) *Error {
	return New(KindTimeout, message)
}

// InvariantViolation builds a fatal-to-the-simulation accounting error.
func InvariantViolation(message string) *Error {
	return New(KindInvariantViolation, message)
}

// Configuration builds a startup-aborting configuration error.
func Configuration(message string) *Error {
	return New(KindConfiguration, message)
}
