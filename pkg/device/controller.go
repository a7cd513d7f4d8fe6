package device

//go:generate mockgen -destination=mock_device.go -package=device github.com/urmzd/homai-hub/pkg/device Controller

import "context"

// Controller defines the interface every protocol adapter implements.
// This abstraction allows the hub to work with different protocols
// (Zigbee, Z-Wave, Hue, WeMo, LAN announcements) through a unified interface.
type Controller interface {
	// Protocol returns the registration key, used as Device.Protocol
	Protocol() string

	// Initialize performs protocol bring-up. Calling it again after success is a no-op.
	Initialize(ctx context.Context) error

	// Discover runs one bounded discovery pass. On internal failure it returns
	// whatever devices it found together with the error; it never panics the caller.
	Discover(ctx context.Context) ([]Device, error)

	// ControlDevice applies a validated action to a device owned by this controller
	ControlDevice(ctx context.Context, id string, action Action) (Result, error)

	// Events returns the controller's event channel. The channel is closed by Close.
	Events() <-chan Event

	// IsConnected returns true if the controller is initialized and its transport is up
	IsConnected() bool

	// Close releases transports and closes the event channel
	Close() error
}

// EventSubscriber defines the interface for subscribing to device events
type EventSubscriber interface {
	// Subscribe returns a channel that receives device events
	Subscribe() chan Event

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan Event)
}
