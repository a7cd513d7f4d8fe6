// Package lan passively inventories devices that announce themselves over
// mDNS and SSDP. It only reports presence; it cannot control anything.
package lan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/device"
)

// Config configures the LAN scanner.
type Config struct {
	Window   time.Duration // Listen window per pass, default 3s
	Services []string      // mDNS service types, default DefaultServices

	// Browsers replaces the mDNS and SSDP browsers when set.
	Browsers []Browser
}

// Controller implements device.Controller as a presence scanner.
type Controller struct {
	cfg    Config
	log    zerolog.Logger
	events *device.Emitter

	present   map[string]struct{} // ids seen in the previous pass
	presentMu sync.Mutex

	connected bool
	connMu    sync.RWMutex
}

var _ device.Controller = (*Controller)(nil)

// NewController creates a LAN scanner.
func NewController(cfg Config) *Controller {
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Second
	}
	if len(cfg.Browsers) == 0 {
		cfg.Browsers = []Browser{MDNSBrowser{Services: cfg.Services}, SSDPBrowser{}}
	}
	return &Controller{
		cfg:     cfg,
		log:     log.With().Str("protocol", device.ProtocolLAN).Logger(),
		events:  device.NewEmitter(device.ProtocolLAN, 32),
		present: make(map[string]struct{}),
	}
}

// Protocol returns "lan".
func (c *Controller) Protocol() string {
	return device.ProtocolLAN
}

// Initialize marks the scanner ready. Sockets are opened per pass.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	return nil
}

// Discover runs every browser for one window and folds announcements into
// one device per host. Hosts present in the previous pass but silent in this
// one get a presence=false state change.
func (c *Controller) Discover(ctx context.Context) ([]device.Device, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("lan: %w", device.ErrNotConnected)
	}

	var (
		all  []Announcement
		errs []error
	)
	for _, b := range c.cfg.Browsers {
		found, err := b.Browse(ctx, c.cfg.Window)
		if err != nil {
			c.log.Warn().Err(err).Msg("Browse failed")
			errs = append(errs, err)
		}
		all = append(all, found...)
	}

	devices := fold(all, time.Now())

	seen := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		seen[d.ID] = struct{}{}
	}
	c.presentMu.Lock()
	var gone []string
	for id := range c.present {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	c.present = seen
	c.presentMu.Unlock()

	for _, id := range gone {
		c.events.StateChanged(id, device.State{device.CapPresence: false})
	}

	c.log.Info().Int("announcements", len(all)).Int("count", len(devices)).Msg("LAN scan complete")
	return devices, errors.Join(errs...)
}

// fold groups announcements by host. The first specific classification wins.
func fold(all []Announcement, now time.Time) []device.Device {
	byID := make(map[string]*device.Device)
	for _, a := range all {
		key := hostKey(a)
		if key == "" {
			continue
		}
		id := "lan-" + key
		cls := Classify(a)
		name := hostName(a)

		d, ok := byID[id]
		if !ok {
			if name == "" {
				name = key
			}
			d = &device.Device{
				ID:           id,
				Name:         name,
				Type:         cls.Type,
				Manufacturer: cls.Manufacturer,
				Model:        cls.Model,
				Protocol:     device.ProtocolLAN,
				Capabilities: []device.Capability{device.CapPresence},
				State:        device.State{device.CapPresence: true},
				Online:       true,
				LastSeen:     now,
			}
			byID[id] = d
		} else {
			if d.Type == device.TypeOther && cls.Type != device.TypeOther {
				d.Type, d.Manufacturer, d.Model = cls.Type, cls.Manufacturer, cls.Model
			}
			if d.Name == key && name != "" {
				d.Name = name
			}
		}
		if d.Address == "" && a.Address != "" {
			d.Address = a.Address
			if a.Port > 0 {
				d.Address = net.JoinHostPort(a.Address, strconv.Itoa(a.Port))
			}
		}
	}

	out := make([]device.Device, 0, len(byID))
	for _, d := range byID {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ControlDevice is not supported for passively discovered devices.
func (c *Controller) ControlDevice(_ context.Context, id string, _ device.Action) (device.Result, error) {
	return device.Result{}, fmt.Errorf("%w: lan device %s is discovery only", device.ErrNotImplemented, id)
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

// Close closes the event channel.
func (c *Controller) Close() error {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	c.events.Close()
	return nil
}
