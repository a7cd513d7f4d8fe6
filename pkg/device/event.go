package device

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType names a device lifecycle or state event.
type EventType string

// Controller and registry event types
const (
	EventDeviceDiscovered   EventType = "deviceDiscovered"
	EventDeviceUpdated      EventType = "deviceUpdated"
	EventDeviceRemoved      EventType = "deviceRemoved"
	EventStateChanged       EventType = "stateChanged"
	EventDeviceStateChanged EventType = "deviceStateChanged"
	EventDevicesDiscovered  EventType = "devicesDiscovered"
)

// Event is a single notification on a controller channel or the registry stream.
//
// Controllers set Device (announce/update), DeviceID (removal) or DeviceID and
// State (state change). The registry re-emits normalized events carrying the
// full Device, and Devices for the aggregate devicesDiscovered event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Protocol  string    `json:"protocol,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Device    *Device   `json:"device,omitempty"`
	Devices   []Device  `json:"devices,omitempty"`
	State     State     `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(t EventType, protocol string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Protocol:  protocol,
		Timestamp: time.Now(),
	}
}

// Emitter owns a controller's event channel. Publishing never blocks: when the
// consumer falls behind, events are dropped and logged.
type Emitter struct {
	protocol string
	ch       chan Event
	mu       sync.RWMutex
	closed   bool
}

// NewEmitter creates an emitter with the given channel buffer.
func NewEmitter(protocol string, buffer int) *Emitter {
	return &Emitter{protocol: protocol, ch: make(chan Event, buffer)}
}

// C returns the receive side of the channel.
func (e *Emitter) C() <-chan Event {
	return e.ch
}

// Emit publishes evt. It is a no-op after Close.
func (e *Emitter) Emit(evt Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- evt:
	default:
		log.Warn().
			Str("protocol", e.protocol).
			Str("event", string(evt.Type)).
			Str("device", evt.DeviceID).
			Msg("Event channel full, dropping event")
	}
}

// Discovered emits a deviceDiscovered event for d.
func (e *Emitter) Discovered(d Device) {
	evt := NewEvent(EventDeviceDiscovered, e.protocol)
	evt.DeviceID = d.ID
	evt.Device = &d
	e.Emit(evt)
}

// Updated emits a deviceUpdated event for d.
func (e *Emitter) Updated(d Device) {
	evt := NewEvent(EventDeviceUpdated, e.protocol)
	evt.DeviceID = d.ID
	evt.Device = &d
	e.Emit(evt)
}

// Removed emits a deviceRemoved event for id.
func (e *Emitter) Removed(id string) {
	evt := NewEvent(EventDeviceRemoved, e.protocol)
	evt.DeviceID = id
	e.Emit(evt)
}

// StateChanged emits a stateChanged event carrying a partial state.
func (e *Emitter) StateChanged(id string, state State) {
	evt := NewEvent(EventStateChanged, e.protocol)
	evt.DeviceID = id
	evt.State = state
	e.Emit(evt)
}

// Close closes the channel. Safe to call more than once.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
