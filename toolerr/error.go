// Package toolerr provides the structured error returned by checks and the
// external tools they drive.
package toolerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Code classifies a check error.
type Code string

const (
	CodeBinaryNotFound   Code = "BINARY_NOT_FOUND"
	CodeExecutionFailed  Code = "EXECUTION_FAILED"
	CodeTimeout          Code = "TIMEOUT"
	CodeParseError       Code = "PARSE_ERROR"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNetworkError     Code = "NETWORK_ERROR"
)

// Error is a structured error for check operations.
type Error struct {
	Check     string // Check is the plugin id or tool name.
	Operation string
	Code      Code
	Message   string
	Cause     error
}

// New creates a new structured error.
func New(check, operation string, code Code, message string) *Error {
	return &Error{
		Check:     check,
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// Newf is New with a formatted message.
func Newf(check, operation string, code Code, format string, args ...any) *Error {
	return New(check, operation, code, fmt.Sprintf(format, args...))
}

// WithCause adds the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Error formats as "check [operation/code]: message: cause".
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("%s [%s/%s]", e.Check, e.Operation, e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code, and on Check when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Check != "" && t.Check != e.Check {
		return false
	}
	return e.Code == t.Code
}

// Indeterminate reports whether the error means the check could not reach
// a conclusion, as opposed to the check itself breaking.
func (e *Error) Indeterminate() bool {
	switch e.Code {
	case CodeExecutionFailed, CodeInvalidInput:
		return false
	default:
		return true
	}
}

// HasCode reports whether err carries a toolerr.Error with the given code.
func HasCode(err error, code Code) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.Code == code
}

// IsIndeterminate reports whether err should be reported as an
// undetermined outcome rather than a failure.
func IsIndeterminate(err error) bool {
	if err == nil {
		return false
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Indeterminate()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return false
}

// FromNetwork wraps a dial or I/O error, mapping timeouts to CodeTimeout.
func FromNetwork(check, operation string, err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return New(check, operation, CodeTimeout, "timed out").WithCause(err)
	}
	return New(check, operation, CodeNetworkError, "target unreachable").WithCause(err)
}
