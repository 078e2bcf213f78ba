package nmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"github.com/sirupsen/logrus"
	"os"
	"os/exec"
	"time"
)

// Command defines an external command to run.
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration // Zero means only the parent context bounds the run.
}

// Output holds what the command produced. A non-zero exit code is not an
// error, callers decide what it means.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Exec runs cmd and captures its output.
func Exec(ctx context.Context, cmd Command) (*Output, error) {
	if _, err := exec.LookPath(cmd.Name); err != nil {
		return nil, toolerr.Newf(cmd.Name, "exec", toolerr.CodeBinaryNotFound, "%s not found in PATH", cmd.Name).WithCause(err)
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdout = &stdout
	c.Stderr = &stderr

	logrus.Tracef("exec %s %v", cmd.Name, cmd.Args)

	start := time.Now()
	err := c.Run()
	out := &Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, toolerr.Newf(cmd.Name, "exec", toolerr.CodeTimeout, "command timed out after %s", out.Duration.Round(time.Millisecond)).WithCause(ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		if errors.Is(err, os.ErrPermission) {
			return out, toolerr.New(cmd.Name, "exec", toolerr.CodePermissionDenied, "cannot execute").WithCause(err)
		}
		return out, toolerr.New(cmd.Name, "exec", toolerr.CodeExecutionFailed, fmt.Sprintf("running %s", cmd.Name)).WithCause(err)
	}

	return out, nil
}

// BinaryExists reports whether name resolves in PATH.
func BinaryExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
