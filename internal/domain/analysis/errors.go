package analysis

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the facade can surface.
type ErrorKind string

const (
	KindInvalidArchive  ErrorKind = "invalid_archive"
	KindEmptySubmission ErrorKind = "empty_submission"
	KindEngineFailure   ErrorKind = "engine_failure"
	KindEngineTimeout   ErrorKind = "engine_timeout"
	KindAlreadyRunning  ErrorKind = "already_running"
	KindNotFound        ErrorKind = "not_found"
	KindNotReady        ErrorKind = "not_ready"
	KindCleaningError   ErrorKind = "cleaning_error"
)

// Error is the structured error returned by every facade operation.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf extracts the kind from an error chain, "" when it is not ours.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
