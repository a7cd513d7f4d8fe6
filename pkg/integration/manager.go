// Package integration owns the device registry. It brings controllers up,
// merges discovery results and controller events into one table, fans
// registry events out to subscribers and routes commands.
package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/discovery"
	"github.com/urmzd/homai-hub/pkg/metrics"
)

// ErrDuplicateController is returned by New when two controllers share a key.
var ErrDuplicateController = errors.New("duplicate controller key")

// Options configures a Manager.
type Options struct {
	DiscoveryTimeout time.Duration            // Per-controller ceiling, default discovery.DefaultTimeout
	ProtocolTimeouts map[string]time.Duration // Per-protocol overrides
	DiscoveryLimit   int                      // Controllers discovering at once, 0 for all
	SubscriberBuffer int                      // Default 64
	Metrics          *metrics.Registry
	CommandValidator *device.CommandValidator // Default device.NewCommandValidator(nil)
}

// ControllerStatus is a controller's lifecycle state for health reporting.
type ControllerStatus struct {
	Protocol    string `json:"protocol"`
	Initialized bool   `json:"initialized"`
	Connected   bool   `json:"connected"`
	Error       string `json:"error,omitempty"`
}

// Joiner is implemented by controllers that can open their network for pairing.
type Joiner interface {
	PermitJoin(ctx context.Context, duration time.Duration) error
}

// Manager is the device registry and controller lifecycle owner.
type Manager struct {
	opts        Options
	controllers map[string]device.Controller
	order       []string
	router      *Router
	metrics     *metrics.Registry
	log         zerolog.Logger

	lifeMu      sync.Mutex
	initialized bool
	shutdown    bool
	ready       map[string]bool
	initErrs    map[string]error
	stop        chan struct{}
	wg          sync.WaitGroup

	mu      sync.RWMutex
	devices map[string]*device.Device

	subMu       sync.RWMutex
	subscribers map[chan device.Event]struct{}
}

var (
	_ device.EventSubscriber = (*Manager)(nil)
	_ DeviceStore            = (*Manager)(nil)
	_ ControllerSet          = (*Manager)(nil)
)

// New creates a manager over controllers, keyed by Protocol().
func New(opts Options, controllers ...device.Controller) (*Manager, error) {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	if opts.CommandValidator == nil {
		opts.CommandValidator = device.NewCommandValidator(nil)
	}

	m := &Manager{
		opts:        opts,
		controllers: make(map[string]device.Controller, len(controllers)),
		metrics:     opts.Metrics,
		log:         log.With().Str("component", "integration").Logger(),
		ready:       make(map[string]bool),
		initErrs:    make(map[string]error),
		stop:        make(chan struct{}),
		devices:     make(map[string]*device.Device),
		subscribers: make(map[chan device.Event]struct{}),
	}
	for _, c := range controllers {
		key := c.Protocol()
		if key == "" {
			return nil, fmt.Errorf("%w: empty protocol key", device.ErrValidation)
		}
		if _, dup := m.controllers[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateController, key)
		}
		m.controllers[key] = c
		m.order = append(m.order, key)
	}
	sort.Strings(m.order)
	m.router = NewRouter(m, m, opts.CommandValidator, opts.Metrics)
	return m, nil
}

// Initialize brings up every controller. Failures are logged and the
// controller is skipped; the manager keeps running with the rest. Calling
// Initialize again is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.shutdown {
		return errors.New("manager is shut down")
	}
	if m.initialized {
		return nil
	}

	for _, key := range m.order {
		c := m.controllers[key]
		if err := c.Initialize(ctx); err != nil {
			err = fmt.Errorf("%w: %s: %w", device.ErrControllerInitFailed, key, err)
			m.initErrs[key] = err
			m.log.Warn().Err(err).Str("protocol", key).Msg("Controller failed to initialize, skipping")
			continue
		}
		m.ready[key] = true
		m.wg.Add(1)
		go m.consume(key, c.Events())
		m.log.Info().Str("protocol", key).Msg("Controller initialized")
	}

	m.initialized = true
	m.log.Info().Int("ready", len(m.ready)).Int("total", len(m.order)).Msg("Integration manager initialized")
	return nil
}

// readyControllers returns the initialized controllers in key order.
func (m *Manager) readyControllers() []device.Controller {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	out := make([]device.Controller, 0, len(m.ready))
	for _, key := range m.order {
		if m.ready[key] {
			out = append(out, m.controllers[key])
		}
	}
	return out
}

// Controller returns the initialized controller registered under protocol.
func (m *Manager) Controller(protocol string) (device.Controller, bool) {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.ready[protocol] {
		return nil, false
	}
	return m.controllers[protocol], true
}

// Controllers reports the status of every registered controller.
func (m *Manager) Controllers() []ControllerStatus {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	out := make([]ControllerStatus, 0, len(m.order))
	for _, key := range m.order {
		s := ControllerStatus{Protocol: key, Initialized: m.ready[key]}
		if s.Initialized {
			s.Connected = m.controllers[key].IsConnected()
		}
		if err := m.initErrs[key]; err != nil {
			s.Error = err.Error()
		}
		out = append(out, s)
	}
	return out
}

// DiscoverDevices runs one discovery pass across the initialized controllers
// and merges the results. Per-controller failures are contained; the
// returned error joins them and the devices are still returned.
func (m *Manager) DiscoverDevices(ctx context.Context) ([]device.Device, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	opts := []discovery.Option{
		discovery.WithTimeout(m.opts.DiscoveryTimeout),
		discovery.WithConcurrency(m.opts.DiscoveryLimit),
		discovery.WithMetrics(m.metrics),
	}
	for p, d := range m.opts.ProtocolTimeouts {
		opts = append(opts, discovery.WithControllerTimeout(p, d))
	}
	outcome := discovery.New(m.readyControllers(), opts...).Run(ctx)

	now := time.Now()
	found := outcome.Devices()
	merged := make([]device.Device, 0, len(found))

	m.mu.Lock()
	for _, in := range found {
		d, created := m.merge(in, now)
		evtType := device.EventDeviceUpdated
		if created {
			evtType = device.EventDeviceDiscovered
		}
		m.publishDevice(evtType, d)
		merged = append(merged, d.Clone())
	}
	agg := device.NewEvent(device.EventDevicesDiscovered, "")
	agg.Devices = merged
	m.publish(agg)
	m.metrics.SetRegistryDevices(len(m.devices))
	m.mu.Unlock()

	m.log.Info().Int("devices", len(merged)).Int("controllers", len(outcome.Reports)).Msg("Discovery complete")
	return merged, outcome.Err()
}

// GetDevices returns a copy of every device, sorted by id.
func (m *Manager) GetDevices() []device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(nil)
}

// GetDevice returns a copy of one device.
func (m *Manager) GetDevice(id string) (device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return device.Device{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	return d.Clone(), nil
}

// GetDevicesByProtocol returns the devices owned by one controller.
func (m *Manager) GetDevicesByProtocol(protocol string) []device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(func(d *device.Device) bool { return d.Protocol == protocol })
}

// GetDevicesByType returns the devices of one type.
func (m *Manager) GetDevicesByType(t device.DeviceType) []device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(func(d *device.Device) bool { return d.Type == t })
}

// GetDevicesByRoom returns the devices assigned to room, case-insensitively.
func (m *Manager) GetDevicesByRoom(room string) []device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(func(d *device.Device) bool { return strings.EqualFold(d.Room, room) })
}

// RenameDevice sets a device's display name.
func (m *Manager) RenameDevice(id, name string) (device.Device, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return device.Device{}, fmt.Errorf("%w: name is empty", device.ErrValidation)
	}
	return m.update(id, func(d *device.Device) { d.Name = name })
}

// AssignRoom sets a device's room. An empty room clears it.
func (m *Manager) AssignRoom(id, room string) (device.Device, error) {
	room = strings.TrimSpace(room)
	return m.update(id, func(d *device.Device) { d.Room = room })
}

func (m *Manager) update(id string, fn func(*device.Device)) (device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return device.Device{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	fn(d)
	m.publishDevice(device.EventDeviceUpdated, d)
	return d.Clone(), nil
}

// ApplyState merges a command result into the registry and emits
// deviceStateChanged.
func (m *Manager) ApplyState(id string, st device.State) (device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.applyState(id, st, time.Now())
	if !ok {
		return device.Device{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	m.publishStateChange(d, st)
	return d.Clone(), nil
}

// ControlDevice validates cmd and routes it to the owning controller.
func (m *Manager) ControlDevice(ctx context.Context, id string, cmd device.Command) (device.Device, error) {
	return m.router.Route(ctx, id, cmd)
}

// PermitJoin opens the network of the named mesh controller for pairing.
func (m *Manager) PermitJoin(ctx context.Context, protocol string, duration time.Duration) error {
	c, ok := m.Controller(protocol)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrControllerUnavailable, protocol)
	}
	j, ok := c.(Joiner)
	if !ok {
		return fmt.Errorf("%w: %s does not support pairing", device.ErrNotImplemented, protocol)
	}
	return j.PermitJoin(ctx, duration)
}

// consume applies one controller's events until its channel closes or the
// manager shuts down.
func (m *Manager) consume(key string, events <-chan device.Event) {
	defer m.wg.Done()
	clog := m.log.With().Str("protocol", key).Logger()
	for {
		select {
		case <-m.stop:
			return
		case evt, ok := <-events:
			if !ok {
				clog.Debug().Msg("Controller event channel closed")
				return
			}
			m.handleEvent(key, evt, clog)
		}
	}
}

func (m *Manager) handleEvent(key string, evt device.Event, clog zerolog.Logger) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch evt.Type {
	case device.EventDeviceDiscovered, device.EventDeviceUpdated:
		if evt.Device == nil {
			return
		}
		if evt.Device.Protocol != key || len(evt.Device.Capabilities) == 0 {
			clog.Warn().Str("device", evt.Device.ID).Msg("Ignoring invalid device event")
			return
		}
		d, created := m.merge(*evt.Device, now)
		if created {
			m.publishDevice(device.EventDeviceDiscovered, d)
		} else {
			m.publishDevice(device.EventDeviceUpdated, d)
		}

	case device.EventDeviceRemoved:
		d, ok := m.devices[evt.DeviceID]
		if !ok || d.Protocol != key {
			return
		}
		delete(m.devices, evt.DeviceID)
		m.publishDevice(device.EventDeviceRemoved, d)

	case device.EventStateChanged:
		d, ok := m.devices[evt.DeviceID]
		if !ok || d.Protocol != key {
			return
		}
		d, _ = m.applyState(evt.DeviceID, evt.State, now)
		if online, ok := evt.State[device.CapPresence].(bool); ok {
			d.Online = online
		}
		m.publishStateChange(d, evt.State)

	default:
		clog.Debug().Str("event", string(evt.Type)).Msg("Ignoring controller event")
	}
	m.metrics.SetRegistryDevices(len(m.devices))
}

// Subscribe returns a channel that receives every registry event.
func (m *Manager) Subscribe() chan device.Event {
	ch := make(chan device.Event, m.opts.SubscriberBuffer)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription.
func (m *Manager) Unsubscribe(ch chan device.Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
}

func (m *Manager) publishDevice(t device.EventType, d *device.Device) {
	evt := device.NewEvent(t, d.Protocol)
	evt.DeviceID = d.ID
	c := d.Clone()
	evt.Device = &c
	m.publish(evt)
}

func (m *Manager) publishStateChange(d *device.Device, st device.State) {
	evt := device.NewEvent(device.EventDeviceStateChanged, d.Protocol)
	evt.DeviceID = d.ID
	c := d.Clone()
	evt.Device = &c
	evt.State = st.Clone()
	m.publish(evt)
}

// publish delivers evt to every subscriber without blocking. Callers hold
// the registry write lock so per-device order is preserved.
func (m *Manager) publish(evt device.Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
			m.log.Warn().Str("event", string(evt.Type)).Str("device", evt.DeviceID).Msg("Subscriber channel full, dropping event")
		}
	}
}

// Shutdown stops event consumption, closes every controller and every
// subscriber channel.
func (m *Manager) Shutdown() error {
	m.lifeMu.Lock()
	if m.shutdown {
		m.lifeMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.stop)
	m.lifeMu.Unlock()

	m.wg.Wait()

	var errs []error
	for _, key := range m.order {
		if err := m.controllers[key].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	m.subMu.Lock()
	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.subMu.Unlock()

	m.log.Info().Msg("Integration manager shut down")
	return errors.Join(errs...)
}
