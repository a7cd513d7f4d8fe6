package meshradio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/device"
)

// Config configures a mesh radio controller.
type Config struct {
	Port       string        // Serial device path, e.g. /dev/ttyUSB0
	Baud       int           // Zero selects DefaultBaud
	ScanWindow time.Duration // Zero selects the family default
	AckTimeout time.Duration // Zero selects the family default

	// Transport replaces the serial port when set.
	Transport io.ReadWriteCloser
}

// node tracks a device that announced itself on the mesh.
type node struct {
	ieee     uint64
	addr     uint16
	endpoint uint8
	class    Class
	state    device.State
	lastSeen time.Time
}

// Controller implements device.Controller for a mesh coordinator attached
// over a serial line. Scans and commands share the wire one at a time.
type Controller struct {
	family Family
	cfg    Config
	log    zerolog.Logger

	conn      io.ReadWriteCloser
	connected bool
	done      chan struct{}
	connMu    sync.RWMutex

	wire chan struct{}
	acks chan Frame

	nodes   map[string]*node // device id -> node
	nodesMu sync.RWMutex

	events    *device.Emitter
	stopChan  chan struct{}
	closeOnce sync.Once
}

var _ device.Controller = (*Controller)(nil)

// NewController creates a controller for the given family. The port is
// opened by Initialize.
func NewController(family Family, cfg Config) *Controller {
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = family.ScanWindow
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = family.AckTimeout
	}
	return &Controller{
		family:   family,
		cfg:      cfg,
		log:      log.With().Str("protocol", family.Key).Logger(),
		wire:     make(chan struct{}, 1),
		acks:     make(chan Frame, 1),
		nodes:    make(map[string]*node),
		events:   device.NewEmitter(family.Key, 64),
		stopChan: make(chan struct{}),
	}
}

// Protocol returns the family key.
func (c *Controller) Protocol() string {
	return c.family.Key
}

// Initialize opens the transport and starts reading frames. Calling it on a
// connected controller is a no-op.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.stopChan:
		return fmt.Errorf("%s controller closed: %w", c.family.Key, device.ErrNotConnected)
	default:
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.connected {
		return nil
	}
	if c.conn != nil {
		// Left over from a link that dropped.
		_ = c.conn.Close()
		c.conn = nil
	}

	conn := c.cfg.Transport
	if conn == nil {
		if c.cfg.Port == "" {
			return fmt.Errorf("%s: no serial port configured: %w", c.family.Key, device.ErrNotConnected)
		}
		sp, err := OpenSerial(c.cfg.Port, c.cfg.Baud)
		if err != nil {
			return err
		}
		conn = sp
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)

	c.log.Info().Str("port", c.cfg.Port).Msg("Mesh coordinator connected")
	return nil
}

// readLoop decodes inbound frames until the transport fails or is closed.
func (c *Controller) readLoop(conn io.Reader, done chan struct{}) {
	defer close(done)

	dec := NewDecoder(conn, c.family.SOF)
	for {
		f, err := dec.Next()
		if err != nil {
			if errors.Is(err, device.ErrProtocolParse) {
				c.log.Warn().Err(err).Msg("Dropping malformed frame")
				continue
			}
			select {
			case <-c.stopChan:
			default:
				c.log.Error().Err(err).Msg("Coordinator read failed")
			}
			c.connMu.Lock()
			c.connected = false
			c.connMu.Unlock()
			return
		}
		c.handleFrame(f)
	}
}

func (c *Controller) handleFrame(f Frame) {
	switch f.Opcode {
	case OpAnnounce:
		c.handleAnnounce(f)
	case OpReport:
		c.handleReport(f)
	case OpLeave:
		c.handleLeave(f)
	case OpAck:
		select {
		case c.acks <- f:
		default:
			c.log.Debug().Uint16("addr", f.Addr).Msg("Unsolicited ack")
		}
	default:
		c.log.Debug().Uint8("opcode", f.Opcode).Msg("Unhandled frame")
	}
}

// handleAnnounce registers a joining or rejoining node.
func (c *Controller) handleAnnounce(f Frame) {
	if len(f.Payload) < 10 {
		c.log.Warn().Int("len", len(f.Payload)).Msg("Short announce payload")
		return
	}
	classID := binary.LittleEndian.Uint16(f.Payload[0:2])
	ieee := binary.LittleEndian.Uint64(f.Payload[2:10])

	cls, ok := c.family.Classes[classID]
	if !ok {
		c.log.Warn().Uint16("class", classID).Msg("Unknown device class, ignoring announce")
		return
	}

	id := c.deviceID(ieee)

	c.nodesMu.Lock()
	n, existed := c.nodes[id]
	if !existed {
		n = &node{ieee: ieee, state: make(device.State)}
		c.nodes[id] = n
	}
	n.addr = f.Addr
	n.endpoint = f.Endpoint
	n.class = cls
	n.lastSeen = time.Now()
	d := c.toDevice(id, n)
	c.nodesMu.Unlock()

	c.log.Info().
		Str("device", id).
		Str("addr", d.Address).
		Str("model", cls.Model).
		Bool("rejoin", existed).
		Msg("Device announced")

	if existed {
		c.events.Updated(d)
	} else {
		c.events.Discovered(d)
	}
}

// handleReport merges an attribute report into the node state.
func (c *Controller) handleReport(f Frame) {
	state, err := DecodeReport(c.family, f.Cluster, f.Payload)
	if err != nil {
		c.log.Warn().Err(err).Uint16("addr", f.Addr).Msg("Dropping state report")
		return
	}

	c.nodesMu.Lock()
	id, n := c.findByAddr(f.Addr)
	if n == nil {
		c.nodesMu.Unlock()
		c.log.Debug().Uint16("addr", f.Addr).Msg("Report from unknown node")
		return
	}
	for k := range state {
		if !hasCap(n.class.Capabilities, k) {
			delete(state, k)
		}
	}
	for k, v := range state {
		n.state[k] = v
	}
	n.lastSeen = time.Now()
	c.nodesMu.Unlock()

	if len(state) > 0 {
		c.events.StateChanged(id, state)
	}
}

func (c *Controller) handleLeave(f Frame) {
	c.nodesMu.Lock()
	id, n := c.findByAddr(f.Addr)
	if n != nil {
		delete(c.nodes, id)
	}
	c.nodesMu.Unlock()

	if n == nil {
		return
	}
	c.log.Info().Str("device", id).Msg("Device left network")
	c.events.Removed(id)
}

// findByAddr returns the node with the given short address. Callers hold nodesMu.
func (c *Controller) findByAddr(addr uint16) (string, *node) {
	for id, n := range c.nodes {
		if n.addr == addr {
			return id, n
		}
	}
	return "", nil
}

func (c *Controller) deviceID(ieee uint64) string {
	return fmt.Sprintf("%s-%016x", c.family.Key, ieee)
}

// toDevice converts a node to a device.Device. Callers hold nodesMu.
func (c *Controller) toDevice(id string, n *node) device.Device {
	return device.Device{
		ID:           id,
		Name:         fmt.Sprintf("%s %04x", n.class.Model, n.ieee&0xFFFF),
		Type:         n.class.Type,
		Manufacturer: "Unknown",
		Model:        n.class.Model,
		Protocol:     c.family.Key,
		Address:      fmt.Sprintf("0x%04x", n.addr),
		Capabilities: append([]device.Capability(nil), n.class.Capabilities...),
		State:        n.state.Clone(),
		Online:       true,
		LastSeen:     n.lastSeen,
	}
}

// Devices returns the nodes currently known, sorted by id.
func (c *Controller) Devices() []device.Device {
	c.nodesMu.RLock()
	defer c.nodesMu.RUnlock()

	out := make([]device.Device, 0, len(c.nodes))
	for id, n := range c.nodes {
		out = append(out, c.toDevice(id, n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Discover broadcasts a scan and holds the wire for the scan window so that
// announces can arrive, then returns every known node. Cancelling ctx ends
// the window early and returns what is known so far with the context error.
func (c *Controller) Discover(ctx context.Context) ([]device.Device, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("%s: %w", c.family.Key, device.ErrNotConnected)
	}
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	c.log.Debug().Dur("window", c.cfg.ScanWindow).Msg("Scanning")
	if err := c.write(Frame{
		Opcode:  OpScan,
		Addr:    BroadcastAddr,
		Payload: []byte{durationByte(c.cfg.ScanWindow)},
	}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.cfg.ScanWindow)
	defer timer.Stop()

	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
	case <-c.stopChan:
		err = fmt.Errorf("%s: %w", c.family.Key, device.ErrNotConnected)
	}

	devices := c.Devices()
	c.log.Info().Int("count", len(devices)).Msg("Scan complete")
	return devices, err
}

// PermitJoin opens the network for joining for the given duration. A zero
// duration closes it. Joining devices arrive as deviceDiscovered events.
func (c *Controller) PermitJoin(ctx context.Context, duration time.Duration) error {
	if !c.IsConnected() {
		return fmt.Errorf("%s: %w", c.family.Key, device.ErrNotConnected)
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.log.Info().Dur("duration", duration).Msg("Permit join")
	return c.write(Frame{
		Opcode:  OpScan,
		Addr:    BroadcastAddr,
		Payload: []byte{durationByte(duration)},
	})
}

// ControlDevice translates the action into cluster writes and waits for the
// coordinator to acknowledge each one. Once a frame is on the wire the
// command runs to completion regardless of ctx.
func (c *Controller) ControlDevice(ctx context.Context, id string, action device.Action) (device.Result, error) {
	if !c.IsConnected() {
		return device.Result{}, fmt.Errorf("%w: %s coordinator not connected", device.ErrTransport, c.family.Key)
	}

	c.nodesMu.RLock()
	n, ok := c.nodes[id]
	var (
		addr     uint16
		endpoint uint8
		caps     []device.Capability
		on       bool
	)
	if ok {
		addr, endpoint = n.addr, n.endpoint
		caps = append(caps, n.class.Capabilities...)
		on, _ = n.state[device.CapOnOff].(bool)
	}
	c.nodesMu.RUnlock()

	if !ok {
		return device.Result{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	if !hasCap(caps, action.Capability()) {
		return device.Result{}, fmt.Errorf("%w: %s lacks %s", device.ErrUnsupportedCommand, id, action.Capability())
	}
	if _, isToggle := action.(device.Toggle); isToggle {
		action = device.Power{On: !on}
	}

	instrs, err := EncodeAction(c.family, action)
	if err != nil {
		return device.Result{}, err
	}

	if err := c.acquire(ctx); err != nil {
		return device.Result{}, err
	}
	defer c.release()

	for _, in := range instrs {
		if err := c.send(addr, endpoint, in); err != nil {
			return device.Result{}, err
		}
	}

	state := device.StateFor(action)
	for k := range state {
		if !hasCap(caps, k) {
			delete(state, k)
		}
	}

	c.nodesMu.Lock()
	if n, ok := c.nodes[id]; ok {
		for k, v := range state {
			n.state[k] = v
		}
		n.lastSeen = time.Now()
	}
	c.nodesMu.Unlock()

	return device.Result{Success: true, State: state}, nil
}

// send writes one command frame and waits for the matching ack. Callers
// hold the wire.
func (c *Controller) send(addr uint16, endpoint uint8, in Instruction) error {
	// Discard a late ack left over from a timed-out command.
	select {
	case <-c.acks:
	default:
	}

	if err := c.write(Frame{
		Opcode:   OpCommand,
		Addr:     addr,
		Endpoint: endpoint,
		Cluster:  in.Cluster,
		Payload:  in.Payload,
	}); err != nil {
		return err
	}

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.Addr != addr {
				continue
			}
			if len(ack.Payload) < 1 || ack.Payload[0] != 0 {
				return fmt.Errorf("%w: %s node %#04x rejected cluster %#04x", device.ErrTransport, c.family.Key, addr, in.Cluster)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("%w: %s node %#04x ack timeout after %s", device.ErrTransport, c.family.Key, addr, c.cfg.AckTimeout)
		case <-c.stopChan:
			return fmt.Errorf("%w: %s controller closed", device.ErrTransport, c.family.Key)
		}
	}
}

func (c *Controller) write(f Frame) error {
	b, err := f.Encode(c.family.SOF)
	if err != nil {
		return fmt.Errorf("%w: %w", device.ErrTransport, err)
	}

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("%w: %s coordinator not connected", device.ErrTransport, c.family.Key)
	}

	if _, err := conn.Write(b); err != nil {
		return fmt.Errorf("%w: write frame: %w", device.ErrTransport, err)
	}
	return nil
}

// acquire takes the wire, giving up if ctx ends first.
func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.wire <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() {
	<-c.wire
}

// Events returns the controller's event channel.
func (c *Controller) Events() <-chan device.Event {
	return c.events.C()
}

// IsConnected reports whether the coordinator link is up.
func (c *Controller) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Close closes the transport and the event channel.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopChan)

		c.connMu.Lock()
		conn, done := c.conn, c.done
		c.conn = nil
		c.connected = false
		c.connMu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
		if done != nil {
			select {
			case <-done:
			case <-time.After(time.Second):
				c.log.Warn().Msg("Read loop did not exit")
			}
		}
		c.events.Close()
		c.log.Info().Msg("Mesh controller closed")
	})
	return err
}

// durationByte converts d to whole seconds for a scan payload, capped at 254.
func durationByte(d time.Duration) byte {
	if d <= 0 {
		return 0
	}
	return byte(math.Min(math.Ceil(d.Seconds()), 254))
}

func hasCap(caps []device.Capability, c device.Capability) bool {
	for _, have := range caps {
		if have == c {
			return true
		}
	}
	return false
}
