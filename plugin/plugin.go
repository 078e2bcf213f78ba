package plugin

import (
	"context"
	"fmt"
	"time"
)

// Plugin defines a check able to re-validate one kind of finding.
type Plugin interface {
	ID() string
	Name() string
	Description() string
	// Validate probes host:port. A returned error is reported as a failure
	// unless it is classified as indeterminate by toolerr.
	Validate(ctx context.Context, host string, port int) (Verdict, error)
}

// TimeoutProvider is implemented by plugins needing their own probe timeout.
type TimeoutProvider interface {
	Timeout() time.Duration
}

// Outcome is the raw outcome of a probe.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeConfirmed
	OutcomeNotReproducible
	OutcomeIndeterminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeNotReproducible:
		return "not reproducible"
	case OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Verdict is what a plugin reports after probing.
type Verdict struct {
	Outcome Outcome
	Detail  string
}

// Confirmed reports the vulnerable condition was observed.
func Confirmed(format string, args ...any) Verdict {
	return Verdict{Outcome: OutcomeConfirmed, Detail: fmt.Sprintf(format, args...)}
}

// NotReproducible reports the condition is absent.
func NotReproducible(format string, args ...any) Verdict {
	return Verdict{Outcome: OutcomeNotReproducible, Detail: fmt.Sprintf(format, args...)}
}

// Indeterminate reports the probe ran but reached no conclusion.
func Indeterminate(format string, args ...any) Verdict {
	return Verdict{Outcome: OutcomeIndeterminate, Detail: fmt.Sprintf(format, args...)}
}

// Func adapts a function to the Plugin interface.
type Func struct {
	PluginID     string
	PluginName   string
	Desc         string
	ProbeFunc    func(ctx context.Context, host string, port int) (Verdict, error)
	ProbeTimeout time.Duration
}

func (f *Func) ID() string          { return f.PluginID }
func (f *Func) Name() string        { return f.PluginName }
func (f *Func) Description() string { return f.Desc }

// Validate calls the wrapped function.
func (f *Func) Validate(ctx context.Context, host string, port int) (Verdict, error) {
	return f.ProbeFunc(ctx, host, port)
}

// Timeout returns the configured timeout, zero meaning the dispatcher default.
func (f *Func) Timeout() time.Duration {
	return f.ProbeTimeout
}
