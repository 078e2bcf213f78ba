package toolerr

import (
	"context"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"net"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := New("nmap", "exec", CodeBinaryNotFound, "nmap not found in PATH")
	assert.Equal(t, "nmap [exec/BINARY_NOT_FOUND]: nmap not found in PATH", err.Error())

	err = New("15901", "handshake", CodeNetworkError, "target unreachable").WithCause(errors.New("connection refused"))
	assert.Equal(t, "15901 [handshake/NETWORK_ERROR]: target unreachable: connection refused", err.Error())
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", New("nmap", "exec", CodeTimeout, "").WithCause(cause))

	assert.True(t, errors.Is(err, &Error{Code: CodeTimeout}))
	assert.True(t, errors.Is(err, &Error{Check: "nmap", Code: CodeTimeout}))
	assert.False(t, errors.Is(err, &Error{Check: "curl", Code: CodeTimeout}))
	assert.False(t, errors.Is(err, &Error{Code: CodeParseError}))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeTimeout))
}

func TestIsIndeterminate(t *testing.T) {
	assert.False(t, IsIndeterminate(nil))
	assert.False(t, IsIndeterminate(errors.New("plain")))
	assert.False(t, IsIndeterminate(New("x", "op", CodeExecutionFailed, "")))
	assert.False(t, IsIndeterminate(New("x", "op", CodeInvalidInput, "")))

	assert.True(t, IsIndeterminate(New("x", "op", CodeBinaryNotFound, "")))
	assert.True(t, IsIndeterminate(New("x", "op", CodeParseError, "")))
	assert.True(t, IsIndeterminate(New("x", "op", CodePermissionDenied, "")))
	assert.True(t, IsIndeterminate(fmt.Errorf("probe: %w", context.DeadlineExceeded)))
	assert.True(t, IsIndeterminate(&net.OpError{Op: "dial", Err: timeoutErr{}}))
}

func TestFromNetwork(t *testing.T) {
	err := FromNetwork("11213", "dial", context.DeadlineExceeded)
	assert.Equal(t, CodeTimeout, err.Code)

	err = FromNetwork("11213", "dial", errors.New("connection refused"))
	assert.Equal(t, CodeNetworkError, err.Code)
	assert.True(t, err.Indeterminate())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
