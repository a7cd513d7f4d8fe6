package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/metrics"
)

// DeviceStore is the registry view the router needs.
type DeviceStore interface {
	GetDevice(id string) (device.Device, error)
	ApplyState(id string, st device.State) (device.Device, error)
}

// ControllerSet resolves a protocol key to an initialized controller.
type ControllerSet interface {
	Controller(protocol string) (device.Controller, bool)
}

// Router validates commands and dispatches them to the owning controller.
// Commands are not retried.
type Router struct {
	store       DeviceStore
	controllers ControllerSet
	validator   *device.CommandValidator
	metrics     *metrics.Registry
	log         zerolog.Logger
}

// NewRouter creates a router.
func NewRouter(store DeviceStore, controllers ControllerSet, v *device.CommandValidator, m *metrics.Registry) *Router {
	if v == nil {
		v = device.NewCommandValidator(nil)
	}
	return &Router{
		store:       store,
		controllers: controllers,
		validator:   v,
		metrics:     m,
		log:         log.With().Str("component", "router").Logger(),
	}
}

// Route validates cmd against the device and sends it. Lookup, controller
// and capability failures are detected before the controller is called.
// Every error is a *device.CommandError.
func (r *Router) Route(ctx context.Context, id string, cmd device.Command) (device.Device, error) {
	d, err := r.store.GetDevice(id)
	if err != nil {
		return r.fail("", id, cmd, err)
	}

	c, ok := r.controllers.Controller(d.Protocol)
	if !ok {
		return r.fail(d.Protocol, id, cmd, fmt.Errorf("%w: %s", device.ErrControllerUnavailable, d.Protocol))
	}

	action, err := r.validator.Validate(&d, cmd)
	if err != nil {
		return r.fail(d.Protocol, id, cmd, err)
	}

	res, err := c.ControlDevice(ctx, id, action)
	if err != nil {
		return r.fail(d.Protocol, id, cmd, err)
	}
	if !res.Success {
		return r.fail(d.Protocol, id, cmd, fmt.Errorf("%w: %s rejected the command", device.ErrTransport, d.Protocol))
	}

	updated, err := r.store.ApplyState(id, res.State)
	if err != nil {
		// Removed while the command was in flight.
		return r.fail(d.Protocol, id, cmd, err)
	}

	r.metrics.CommandRouted(d.Protocol, string(cmd.Type), "ok")
	r.log.Info().Str("device", id).Str("command", string(cmd.Type)).Msg("Command applied")
	return updated, nil
}

func (r *Router) fail(protocol, id string, cmd device.Command, err error) (device.Device, error) {
	kind := errorKind(err)
	if protocol == "" {
		protocol = "unknown"
	}
	r.metrics.CommandRouted(protocol, string(cmd.Type), kind)
	r.log.Warn().Err(err).Str("device", id).Str("command", string(cmd.Type)).Msg("Command failed")
	return device.Device{}, &device.CommandError{DeviceID: id, Command: cmd.Type, Err: err}
}

// errorKind maps an error to a short metrics label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		return "not_found"
	case errors.Is(err, device.ErrControllerUnavailable):
		return "unavailable"
	case errors.Is(err, device.ErrUnsupportedCommand):
		return "unsupported"
	case errors.Is(err, device.ErrNotImplemented):
		return "not_implemented"
	case errors.Is(err, device.ErrTransport):
		return "transport"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "error"
}
