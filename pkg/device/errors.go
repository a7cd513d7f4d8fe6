package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound indicates a device id is unknown to the registry or controller
	ErrDeviceNotFound = errors.New("device not found")

	// ErrControllerUnavailable indicates no initialized controller owns the device's protocol
	ErrControllerUnavailable = errors.New("controller unavailable")

	// ErrControllerInitFailed indicates a controller could not be brought up
	ErrControllerInitFailed = errors.New("controller initialization failed")

	// ErrUnsupportedCommand indicates the command does not fit the device's capabilities
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrTransport indicates the network or serial call behind a command failed
	ErrTransport = errors.New("transport error")

	// ErrDiscoveryTimeout indicates a discovery pass exceeded its ceiling
	ErrDiscoveryTimeout = errors.New("discovery timed out")

	// ErrProtocolParse indicates a malformed inbound frame or response
	ErrProtocolParse = errors.New("protocol parse error")

	// ErrNotImplemented indicates a control path the protocol adapter does not provide
	ErrNotImplemented = errors.New("not implemented")

	// ErrNotConnected indicates the controller is not connected
	ErrNotConnected = errors.New("controller not connected")

	// ErrValidation indicates a payload failed validation
	ErrValidation = errors.New("validation error")
)

// CommandError reports a failed control call with the device and command it
// was issued for. It unwraps to one of the sentinel errors above.
type CommandError struct {
	DeviceID string
	Command  CommandType
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Command, e.DeviceID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
