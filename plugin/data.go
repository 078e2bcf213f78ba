package plugin

import (
	"errors"
	"github.com/jayjOnly/VA-Validator/models"
	"time"
)

const (
	DefaultWorkers      = 10
	DefaultProbeTimeout = 30 * time.Second
)

// ErrDispatcherFatal is returned when the dispatcher itself cannot run.
// Per finding problems never surface as errors.
var ErrDispatcherFatal = errors.New("dispatcher unavailable")

// Info defines the JSON structure describing a registered plugin.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Options defines how a batch is dispatched.
type Options struct {
	Workers      int           // Maximum concurrent probes, 0 means DefaultWorkers.
	ProbeTimeout time.Duration // Used when a plugin declares no timeout of its own.
	Deadline     time.Duration // Overall batch deadline, 0 disables it.
	RateLimit    float64       // Probe starts per second, 0 disables throttling.

	// OnRecord is called once per record as it completes. Calls are serialized.
	OnRecord func(models.Record)
}

func (o *Options) withDefaults() Options {
	ret := *o
	if ret.Workers == 0 {
		ret.Workers = DefaultWorkers
	}
	if ret.ProbeTimeout == 0 {
		ret.ProbeTimeout = DefaultProbeTimeout
	}
	return ret
}

func (o *Options) validate() error {
	if o.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if o.ProbeTimeout < 0 || o.Deadline < 0 {
		return errors.New("timeouts must not be negative")
	}
	if o.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	return nil
}
