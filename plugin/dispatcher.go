package plugin

import (
	"context"
	"errors"
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"math"
	"sync"
	"time"
)

// Dispatcher runs batches of findings through their plugins on a bounded
// pool of workers.
type Dispatcher struct {
	pm      *Manager
	opts    Options
	limiter *rate.Limiter
}

// job is a finding paired with the plugin resolved for it.
type job struct {
	idx     int
	finding models.Finding
	plugin  Plugin
}

// probeResult carries what a plugin returned back to its worker.
type probeResult struct {
	verdict Verdict
	err     error
}

// NewDispatcher initializes a new *Dispatcher.
func NewDispatcher(pm *Manager, opts Options) (*Dispatcher, error) {
	if pm == nil {
		return nil, fmt.Errorf("%w: nil plugin manager", ErrDispatcherFatal)
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatcherFatal, err)
	}

	d := &Dispatcher{
		pm:   pm,
		opts: opts.withDefaults(),
	}

	if d.opts.RateLimit > 0 {
		burst := int(math.Ceil(d.opts.RateLimit))
		d.limiter = rate.NewLimiter(rate.Limit(d.opts.RateLimit), burst)
	}
	return d, nil
}

// Dispatch validates findings using at most workers concurrent probes.
func Dispatch(ctx context.Context, pm *Manager, findings []models.Finding, workers int) ([]models.Record, error) {
	d, err := NewDispatcher(pm, Options{Workers: workers})
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, findings)
}

// Dispatch validates every finding and returns exactly one record per
// finding. Records keep the index of their finding, but callers should key
// them by plugin id, host and port.
func (d *Dispatcher) Dispatch(ctx context.Context, findings []models.Finding) ([]models.Record, error) {
	records := make([]models.Record, len(findings))
	if len(findings) == 0 {
		return records, nil
	}

	batchCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.opts.Deadline > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, d.opts.Deadline)
	}
	defer cancel()

	var emitMu sync.Mutex
	emit := func(r models.Record) {
		if d.opts.OnRecord == nil {
			return
		}
		emitMu.Lock()
		defer emitMu.Unlock()
		d.opts.OnRecord(r)
	}

	// Route first; unknown plugin ids never reach the pool
	jobs := make([]job, 0, len(findings))
	for i, f := range findings {
		p, ok := d.pm.Resolve(f.PluginID)
		if !ok {
			logrus.Debugf("no plugin for %s", f)
			records[i] = notRegistered(f)
			emit(records[i])
			continue
		}
		jobs = append(jobs, job{idx: i, finding: f, plugin: p})
	}

	if len(jobs) == 0 {
		return records, nil
	}

	workers := d.opts.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	start := time.Now()
	logrus.Infof("Dispatching %d findings (%d routed) over %d workers", len(findings), len(jobs), workers)

	queue := make(chan job)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				// Each job owns its slot
				records[j.idx] = d.run(batchCtx, j)
				emit(records[j.idx])
			}
		}()
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	wg.Wait()

	logrus.Infof("Dispatch finished in %s", time.Since(start))
	return records, nil
}

// run executes a single probe inside its own failure boundary.
func (d *Dispatcher) run(ctx context.Context, j job) models.Record {
	start := time.Now()

	if ctx.Err() != nil {
		return indeterminate(j.finding, "%s before probe started", stopReason(ctx))
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return indeterminate(j.finding, "%s before probe started", stopReason(ctx))
		}
	}

	timeout := d.opts.ProbeTimeout
	if tp, ok := j.plugin.(TimeoutProvider); ok && tp.Timeout() > 0 {
		timeout = tp.Timeout()
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logrus.Debugf("Probing %s with %s (timeout %s)", j.finding, j.plugin.Name(), timeout)

	done := make(chan probeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeResult{err: fmt.Errorf("plugin %s panicked: %v", j.finding.PluginID, r)}
			}
		}()

		v, err := j.plugin.Validate(probeCtx, j.finding.Host, j.finding.Port)
		done <- probeResult{verdict: v, err: err}
	}()

	var rec models.Record
	select {
	case res := <-done:
		if res.err != nil && probeCtx.Err() != nil {
			rec = timedOut(ctx, j.finding, timeout)
		} else {
			rec = Normalize(j.finding, res.verdict, res.err)
		}
	case <-probeCtx.Done():
		// The probe goroutine is abandoned, its send never blocks
		rec = timedOut(ctx, j.finding, timeout)
	}
	rec.Duration = time.Since(start)

	switch rec.Status {
	case models.StatusFailed:
		logrus.Warnf("Plugin %s failed on %s:%d: %s", j.finding.PluginID, j.finding.Host, j.finding.Port, rec.Detail)
	default:
		logrus.Debugf("Plugin %s on %s:%d: %s (%s)", j.finding.PluginID, j.finding.Host, j.finding.Port, rec.Status, rec.Duration)
	}
	return rec
}

// timedOut tells a stopped batch apart from the probe's own timeout.
func timedOut(batchCtx context.Context, f models.Finding, timeout time.Duration) models.Record {
	switch {
	case errors.Is(batchCtx.Err(), context.Canceled):
		return indeterminate(f, "cancelled: batch cancelled")
	case batchCtx.Err() != nil:
		return indeterminate(f, "timed out: batch deadline exceeded")
	}
	return indeterminate(f, "timed out after %s", timeout)
}

// stopReason names why the batch context stopped. The rate limiter also
// refuses a wait that would outlive the deadline, before ctx expires.
func stopReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return "batch cancelled"
	}
	return "batch deadline exceeded"
}
