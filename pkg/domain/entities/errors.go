package entities

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so the API layer can map it to a status code
// without inspecting message strings.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindExecution    ErrorKind = "execution"
	KindUnconfigured ErrorKind = "unconfigured"
)

// Error is the structured error carried across service boundaries. Execution
// errors additionally keep the captured subprocess output for operator
// diagnosis.
type Error struct {
	Kind    ErrorKind
	Message string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewExecutionError(msg string, err error, stdout, stderr string) *Error {
	return &Error{Kind: KindExecution, Message: msg, Err: err, Stdout: stdout, Stderr: stderr}
}

func NewUnconfiguredError(msg string) *Error {
	return &Error{Kind: KindUnconfigured, Message: msg}
}

// KindOf returns the kind of err, or KindExecution for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
