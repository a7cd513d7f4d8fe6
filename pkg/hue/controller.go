// Package hue controls lights behind a Philips Hue bridge over its v1 REST API.
package hue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/urmzd/homai-hub/pkg/device"
)

const idPrefix = "hue-light-"

// BridgeFinder locates bridges on the network.
type BridgeFinder func(ctx context.Context) ([]huego.Bridge, error)

// Config configures the Hue controller.
type Config struct {
	BridgeIP string // Bridge host or URL; empty triggers discovery
	Username string // Whitelisted application key

	// FailureThreshold is the number of consecutive failed bridge calls that
	// opens the breaker. Zero selects 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Zero selects 30s.
	OpenTimeout time.Duration

	// Finder replaces cloud discovery when set.
	Finder BridgeFinder
}

type light struct {
	num  int
	caps []device.Capability
}

// Controller implements device.Controller for a single Hue bridge.
type Controller struct {
	cfg     Config
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker
	events  *device.Emitter

	bridge    *huego.Bridge
	host      string
	connected bool
	connMu    sync.RWMutex

	lights   map[string]light // device id -> light
	lightsMu sync.RWMutex
}

var _ device.Controller = (*Controller)(nil)

// NewController creates a Hue controller. The bridge is contacted in Initialize.
func NewController(cfg Config) *Controller {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Finder == nil {
		cfg.Finder = huego.DiscoverAllContext
	}

	logger := log.With().Str("protocol", device.ProtocolHue).Logger()
	threshold := cfg.FailureThreshold

	return &Controller{
		cfg: cfg,
		log: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "hue-bridge",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			},
		}),
		events: device.NewEmitter(device.ProtocolHue, 32),
		lights: make(map[string]light),
	}
}

// Protocol returns "hue".
func (c *Controller) Protocol() string {
	return device.ProtocolHue
}

// Initialize resolves the bridge address and checks the username by listing
// lights. Calling it on a connected controller is a no-op. Bridge I/O runs
// without holding the connection lock.
func (c *Controller) Initialize(ctx context.Context) error {
	c.connMu.RLock()
	connected := c.connected
	c.connMu.RUnlock()
	if connected {
		return nil
	}
	if c.cfg.Username == "" {
		return fmt.Errorf("hue: username not configured: %w", device.ErrNotConnected)
	}

	host := c.cfg.BridgeIP
	if host == "" {
		bridges, err := c.cfg.Finder(ctx)
		if err != nil {
			return fmt.Errorf("hue: bridge discovery: %w", err)
		}
		if len(bridges) == 0 {
			return fmt.Errorf("hue: no bridge found: %w", device.ErrNotConnected)
		}
		host = bridges[0].Host
		c.log.Info().Str("bridge", host).Str("bridgeID", bridges[0].ID).Msg("Discovered Hue bridge")
	}

	bridge := huego.New(host, c.cfg.Username)
	if _, err := c.listLights(ctx, bridge); err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.connected {
		return nil
	}
	c.bridge = bridge
	c.host = host
	c.connected = true
	c.log.Info().Str("bridge", host).Msg("Hue bridge connected")
	return nil
}

func (c *Controller) getBridge() (*huego.Bridge, string, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if !c.connected {
		return nil, "", fmt.Errorf("hue: %w", device.ErrNotConnected)
	}
	return c.bridge, c.host, nil
}

// call runs fn through the circuit breaker and maps every failure to ErrTransport.
func (c *Controller) call(fn func() (any, error)) (any, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: hue bridge unavailable: %w", device.ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: hue: %w", device.ErrTransport, err)
	}
	return res, nil
}

func (c *Controller) listLights(ctx context.Context, bridge *huego.Bridge) ([]huego.Light, error) {
	res, err := c.call(func() (any, error) { return bridge.GetLightsContext(ctx) })
	if err != nil {
		return nil, err
	}
	lights := res.([]huego.Light)
	sort.Slice(lights, func(i, j int) bool { return lights[i].ID < lights[j].ID })
	return lights, nil
}

// Discover lists the bridge's lights. Lights that disappeared since the
// previous pass are reported as removed.
func (c *Controller) Discover(ctx context.Context) ([]device.Device, error) {
	bridge, host, err := c.getBridge()
	if err != nil {
		return nil, err
	}

	lights, err := c.listLights(ctx, bridge)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	devices := make([]device.Device, 0, len(lights))
	seen := make(map[string]light, len(lights))
	for _, l := range lights {
		d := toDevice(l, host, now)
		devices = append(devices, d)
		seen[d.ID] = light{num: l.ID, caps: d.Capabilities}
	}

	c.lightsMu.Lock()
	var gone []string
	for id := range c.lights {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	c.lights = seen
	c.lightsMu.Unlock()

	for _, id := range gone {
		c.log.Info().Str("device", id).Msg("Light removed from bridge")
		c.events.Removed(id)
	}

	c.log.Info().Int("count", len(devices)).Msg("Hue discovery complete")
	return devices, nil
}

func toDevice(l huego.Light, host string, now time.Time) device.Device {
	p := profileFor(l.Type)
	d := device.Device{
		ID:           idPrefix + strconv.Itoa(l.ID),
		Name:         l.Name,
		Type:         p.typ,
		Manufacturer: l.ManufacturerName,
		Model:        l.ModelID,
		Protocol:     device.ProtocolHue,
		Address:      host + "/lights/" + strconv.Itoa(l.ID),
		Capabilities: append([]device.Capability(nil), p.caps...),
		State:        stateFromLight(l.State, p.caps),
		LastSeen:     now,
	}
	if l.State != nil {
		d.Online = l.State.Reachable
	}
	return d
}

// ControlDevice sends the action to the bridge.
func (c *Controller) ControlDevice(ctx context.Context, id string, action device.Action) (device.Result, error) {
	bridge, _, err := c.getBridge()
	if err != nil {
		return device.Result{}, fmt.Errorf("%w: %w", device.ErrTransport, err)
	}

	c.lightsMu.RLock()
	l, ok := c.lights[id]
	c.lightsMu.RUnlock()
	if !ok || !strings.HasPrefix(id, idPrefix) {
		return device.Result{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	if !hasCap(l.caps, action.Capability()) {
		return device.Result{}, fmt.Errorf("%w: %s lacks %s", device.ErrUnsupportedCommand, id, action.Capability())
	}

	if _, isToggle := action.(device.Toggle); isToggle {
		res, err := c.call(func() (any, error) { return bridge.GetLightContext(ctx, l.num) })
		if err != nil {
			return device.Result{}, err
		}
		cur := res.(*huego.Light)
		on := cur.State != nil && cur.State.On
		action = device.Power{On: !on}
	}

	req, ok := stateForAction(action)
	if !ok {
		return device.Result{}, fmt.Errorf("%w: %T on hue", device.ErrUnsupportedCommand, action)
	}

	if _, err := c.call(func() (any, error) { return bridge.SetLightStateContext(ctx, l.num, req) }); err != nil {
		c.log.Warn().Err(err).Str("device", id).Msg("Set light state failed")
		return device.Result{}, err
	}

	state := device.StateFor(action)
	if b, isBri := action.(device.Brightness); isBri && b.Percent <= 0 {
		state[device.CapOnOff] = false
	}
	if _, isColor := action.(device.Color); isColor {
		state[device.CapOnOff] = true
	}
	if _, isCT := action.(device.ColorTemperature); isCT {
		state[device.CapOnOff] = true
	}
	return device.Result{Success: true, State: state}, nil
}

// Events returns the controller's event channel.
func (c *Controller) Events() <-chan device.Event {
	return c.events.C()
}

// IsConnected reports whether the bridge answered during Initialize and the
// breaker is not open.
func (c *Controller) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.breaker.State() != gobreaker.StateOpen
}

// Close releases the event channel. The bridge holds no open connection.
func (c *Controller) Close() error {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
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
