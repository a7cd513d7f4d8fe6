// Package discovery runs one discovery pass across every controller
// concurrently and collects the results.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the per-controller ceiling when none is configured.
const DefaultTimeout = 30 * time.Second

// Report is the result of one controller's pass.
type Report struct {
	Protocol string
	Devices  []device.Device
	Err      error
	Duration time.Duration
	Dropped  int // devices rejected by validation
}

// Outcome aggregates the reports of one Run, in controller order.
type Outcome struct {
	Reports []Report
}

// Devices returns every valid device from every report.
func (o Outcome) Devices() []device.Device {
	var out []device.Device
	for _, r := range o.Reports {
		out = append(out, r.Devices...)
	}
	return out
}

// Err joins the errors of every failed report.
func (o Outcome) Err() error {
	var errs []error
	for _, r := range o.Reports {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Protocol, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Orchestrator fans Discover out to a fixed set of controllers.
type Orchestrator struct {
	controllers []device.Controller
	timeout     time.Duration
	overrides   map[string]time.Duration
	limit       int
	metrics     *metrics.Registry
	log         zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the default per-controller ceiling.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithControllerTimeout overrides the ceiling for one protocol.
func WithControllerTimeout(protocol string, d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.overrides[protocol] = d
		}
	}
}

// WithConcurrency caps how many controllers discover at once. Zero or less
// runs every controller in parallel.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.limit = n }
}

// WithMetrics records per-controller metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// New creates an orchestrator over controllers.
func New(controllers []device.Controller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		controllers: controllers,
		timeout:     DefaultTimeout,
		overrides:   make(map[string]time.Duration),
		log:         log.With().Str("component", "discovery").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run discovers on every controller concurrently. It never fails as a whole:
// each controller's error, timeout or panic is contained in its Report.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	reports := make([]Report, len(o.controllers))

	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}
	for i, c := range o.controllers {
		g.Go(func() error {
			reports[i] = o.runOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return Outcome{Reports: reports}
}

type result struct {
	devices []device.Device
	err     error
	panic   bool
}

func (o *Orchestrator) runOne(ctx context.Context, c device.Controller) Report {
	key := c.Protocol()
	timeout := o.timeout
	if d, ok := o.overrides[key]; ok {
		timeout = d
	}
	clog := o.log.With().Str("protocol", key).Logger()

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned goroutine can still deliver and exit.
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				clog.Error().Interface("panic", r).Msg("Discovery panicked")
				done <- result{err: fmt.Errorf("discovery panicked: %v", r), panic: true}
			}
		}()
		devices, err := c.Discover(tctx)
		done <- result{devices: devices, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-tctx.Done():
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			clog.Warn().Err(ctx.Err()).Msg("Discovery cancelled")
			o.metrics.DiscoveryFailed(key, metrics.ReasonError)
			return Report{Protocol: key, Err: ctx.Err(), Duration: elapsed}
		}
		clog.Warn().Dur("timeout", timeout).Msg("Discovery timed out, abandoning")
		o.metrics.DiscoveryFailed(key, metrics.ReasonTimeout)
		return Report{
			Protocol: key,
			Err:      fmt.Errorf("%w after %s", device.ErrDiscoveryTimeout, timeout),
			Duration: elapsed,
		}
	}
	elapsed := time.Since(start)

	if res.panic {
		o.metrics.DiscoveryFailed(key, metrics.ReasonPanic)
		return Report{Protocol: key, Err: res.err, Duration: elapsed}
	}

	devices, dropped := sanitize(key, res.devices, clog)
	if dropped > 0 {
		o.metrics.DiscoveryFailed(key, metrics.ReasonInvalid)
	}
	if res.err != nil {
		clog.Warn().Err(res.err).Int("partial", len(devices)).Msg("Discovery failed")
		o.metrics.DiscoveryFailed(key, metrics.ReasonError)
	}
	o.metrics.ObserveDiscovery(key, elapsed, len(devices))

	clog.Debug().Dur("took", elapsed).Int("count", len(devices)).Msg("Discovery pass complete")
	return Report{Protocol: key, Devices: devices, Err: res.err, Duration: elapsed, Dropped: dropped}
}

// sanitize drops devices with no capabilities or a foreign protocol and
// collapses duplicate ids, keeping the first position and the last value.
func sanitize(key string, in []device.Device, clog zerolog.Logger) ([]device.Device, int) {
	out := make([]device.Device, 0, len(in))
	index := make(map[string]int, len(in))
	dropped := 0

	for _, d := range in {
		switch {
		case d.ID == "":
			clog.Warn().Msg("Dropping device without id")
			dropped++
			continue
		case d.Protocol != key:
			clog.Warn().Str("device", d.ID).Str("reported", d.Protocol).Msg("Dropping device with foreign protocol")
			dropped++
			continue
		case len(d.Capabilities) == 0:
			clog.Warn().Str("device", d.ID).Msg("Dropping device without capabilities")
			dropped++
			continue
		}

		d = d.Clone()
		d.NormalizeCapabilities()
		d.PruneState()

		if i, ok := index[d.ID]; ok {
			out[i] = d
			continue
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	return out, dropped
}
