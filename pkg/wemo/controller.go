// Package wemo discovers and switches Belkin WeMo devices over UPnP.
package wemo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/urmzd/homai-hub/pkg/device"
)

// Config configures the WeMo controller.
type Config struct {
	SearchWindow     time.Duration // SSDP listen window, default 3s
	HTTPTimeout      time.Duration // Per-request timeout, default 5s
	CacheTTL         time.Duration // setup.xml cache lifetime, default 10m
	FailureThreshold uint32        // Consecutive failures that open a device breaker, default 3

	// Searcher replaces the SSDP multicast search when set.
	Searcher Searcher
	// Client replaces the default HTTP client when set.
	Client *http.Client
}

type plug struct {
	controlURL string
	caps       []device.Capability
}

// Controller implements device.Controller for WeMo switches and plugs.
type Controller struct {
	cfg    Config
	log    zerolog.Logger
	client *http.Client
	descs  *cache.Cache
	events *device.Emitter

	plugs   map[string]plug // device id -> plug
	plugsMu sync.RWMutex

	breakers   map[string]*gobreaker.CircuitBreaker // host -> breaker
	breakersMu sync.Mutex

	connected bool
	connMu    sync.RWMutex
}

var _ device.Controller = (*Controller)(nil)

// NewController creates a WeMo controller.
func NewController(cfg Config) *Controller {
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = 3 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Searcher == nil {
		cfg.Searcher = SSDPSearch
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Controller{
		cfg:      cfg,
		log:      log.With().Str("protocol", device.ProtocolWemo).Logger(),
		client:   client,
		descs:    cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		events:   device.NewEmitter(device.ProtocolWemo, 32),
		plugs:    make(map[string]plug),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Protocol returns "wemo".
func (c *Controller) Protocol() string {
	return device.ProtocolWemo
}

// Initialize marks the controller ready. Sockets are opened per search.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.connected = true
	return nil
}

// Discover searches for basicevent services, describes each responder and
// reads its relay state. Devices that fail to describe are skipped and their
// errors joined into the returned error.
func (c *Controller) Discover(ctx context.Context) ([]device.Device, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("wemo: %w", device.ErrNotConnected)
	}

	locations, err := c.cfg.Searcher(ctx, BasicEventService, c.cfg.SearchWindow)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", device.ErrTransport, err)
	}

	seen := make(map[string]struct{}, len(locations))
	var (
		devices []device.Device
		errs    []error
	)
	plugs := make(map[string]plug)
	for _, loc := range locations {
		if _, dup := seen[loc]; dup || loc == "" {
			continue
		}
		seen[loc] = struct{}{}

		desc, err := c.describe(ctx, loc)
		if err != nil {
			c.log.Warn().Err(err).Str("location", loc).Msg("Failed to describe device")
			errs = append(errs, err)
			continue
		}
		controlURL, err := desc.ControlURL()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		typ, caps := desc.Profile()
		d := device.Device{
			ID:           desc.ID(),
			Name:         desc.FriendlyName,
			Type:         typ,
			Manufacturer: desc.Manufacturer,
			Model:        desc.ModelName,
			Protocol:     device.ProtocolWemo,
			Address:      desc.Host(),
			Capabilities: caps,
			State:        make(device.State),
			LastSeen:     time.Now(),
		}

		if state, err := c.binaryState(ctx, controlURL); err != nil {
			c.log.Warn().Err(err).Str("device", d.ID).Msg("Failed to read binary state")
		} else {
			d.Online = true
			d.State[caps[0]] = state != 0
		}

		plugs[d.ID] = plug{controlURL: controlURL, caps: caps}
		devices = append(devices, d)
	}

	c.plugsMu.Lock()
	for id, p := range plugs {
		c.plugs[id] = p
	}
	c.plugsMu.Unlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	c.log.Info().Int("count", len(devices)).Int("responses", len(locations)).Msg("WeMo discovery complete")
	return devices, errors.Join(errs...)
}

// describe returns the cached description for loc, fetching it on a miss.
func (c *Controller) describe(ctx context.Context, loc string) (*Description, error) {
	if v, ok := c.descs.Get(loc); ok {
		return v.(*Description), nil
	}
	d, err := fetchDescription(ctx, c.client, loc)
	if err != nil {
		return nil, err
	}
	c.descs.Set(loc, d, cache.DefaultExpiration)
	return d, nil
}

func (c *Controller) breaker(controlURL string) *gobreaker.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	if cb, ok := c.breakers[controlURL]; ok {
		return cb
	}
	threshold := c.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        controlURL,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errStateUnchanged)
		},
	})
	c.breakers[controlURL] = cb
	return cb
}

// soap runs a SOAP action through the device's breaker.
func (c *Controller) soap(ctx context.Context, controlURL, action, args string) (int, error) {
	res, err := c.breaker(controlURL).Execute(func() (interface{}, error) {
		return soapCall(ctx, c.client, controlURL, action, args)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: %s: %w", device.ErrTransport, controlURL, err)
		}
		return 0, err
	}
	return res.(int), nil
}

func (c *Controller) binaryState(ctx context.Context, controlURL string) (int, error) {
	return c.soap(ctx, controlURL, "GetBinaryState", "")
}

// ControlDevice switches the relay with SetBinaryState.
func (c *Controller) ControlDevice(ctx context.Context, id string, action device.Action) (device.Result, error) {
	c.plugsMu.RLock()
	p, ok := c.plugs[id]
	c.plugsMu.RUnlock()
	if !ok {
		return device.Result{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	if !hasCap(p.caps, action.Capability()) {
		return device.Result{}, fmt.Errorf("%w: %s lacks %s", device.ErrUnsupportedCommand, id, action.Capability())
	}

	var on bool
	switch a := action.(type) {
	case device.Power:
		on = a.On
	case device.Toggle:
		cur, err := c.binaryState(ctx, p.controlURL)
		if err != nil {
			return device.Result{}, wrapTransport(err)
		}
		on = cur == 0
	default:
		return device.Result{}, fmt.Errorf("%w: %T on wemo", device.ErrUnsupportedCommand, action)
	}

	want := 0
	if on {
		want = 1
	}
	got, err := c.soap(ctx, p.controlURL, "SetBinaryState", fmt.Sprintf("<BinaryState>%d</BinaryState>", want))
	switch {
	case errors.Is(err, errStateUnchanged):
		got = want
	case err != nil:
		c.log.Warn().Err(err).Str("device", id).Msg("SetBinaryState failed")
		return device.Result{}, wrapTransport(err)
	}

	return device.Result{Success: true, State: device.State{device.CapOnOff: got != 0}}, nil
}

// wrapTransport makes sure a control failure reads as a transport error.
func wrapTransport(err error) error {
	if errors.Is(err, device.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", device.ErrTransport, err)
}

// Events returns the controller's event channel.
func (c *Controller) Events() <-chan device.Event {
	return c.events.C()
}

// IsConnected reports whether Initialize has run.
func (c *Controller) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Close flushes the description cache and closes the event channel.
func (c *Controller) Close() error {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	c.descs.Flush()
	c.events.Close()
	return nil
}

func hasCap(caps []device.Capability, c device.Capability) bool {
	for _, have := range caps {
		if have == c {
			return true
		}
	}
	return false
}
