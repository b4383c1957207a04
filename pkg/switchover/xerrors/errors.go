// Package xerrors defines the closed set of error variants the switchover
// core can return. Phase modules match on Kind rather than inspecting
// strings or a deep exception hierarchy.
package xerrors

import "fmt"

// Kind classifies an error for the purposes of retry and propagation
// policy. See spec.md §7.
type Kind string

const (
	// KindValidation marks a syntactically or semantically invalid input
	// (CLI flag, kubeconfig, resource name). Never mutates state.
	KindValidation Kind = "Validation"
	// KindSecurity marks a refused path/character that could enable
	// traversal or shell injection in a helper invocation.
	KindSecurity Kind = "Security"
	// KindTransient marks a failure the gateway's retry wrapper should
	// retry on its own: 5xx, 429, connection reset, read timeout.
	KindTransient Kind = "Transient"
	// KindFatal marks a non-retryable failure: bad API response,
	// precondition violation, exhausted timeout, invariant breach.
	KindFatal Kind = "Fatal"
	// KindCancelled marks operator-initiated interruption (SIGINT/SIGTERM).
	KindCancelled Kind = "Cancelled"
)

// Error is the single error type the switchover core returns. It carries
// a Kind so callers can switch on classification without string matching,
// and wraps an underlying cause for %w-style unwrapping.
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

// Is supports errors.Is comparisons against a bare Kind sentinel created
// with New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Security(format string, args ...interface{}) *Error {
	return New(KindSecurity, fmt.Sprintf(format, args...))
}

func Transient(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindTransient, fmt.Sprintf(format, args...), cause)
}

func Fatal(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindFatal, fmt.Sprintf(format, args...), cause)
}

func Cancelled(message string) *Error {
	return New(KindCancelled, message)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
