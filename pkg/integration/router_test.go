package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/metrics"
	"go.uber.org/mock/gomock"
)

// discovered returns a manager whose registry holds devices, discovered
// through c.
func discovered(t *testing.T, c *fakeController, devices ...device.Device) *Manager {
	t.Helper()
	c.EXPECT().Discover(gomock.Any()).Return(devices, nil)
	m := newManager(t, c)
	_, err := m.DiscoverDevices(context.Background())
	require.NoError(t, err)
	return m
}

func TestRoute_SetBrightness(t *testing.T) {
	ctrl := gomock.NewController(t)
	hue := newController(ctrl, "hue")
	m := discovered(t, hue, hueLight("3"))
	sub := m.Subscribe()

	hue.EXPECT().
		ControlDevice(gomock.Any(), "hue-light-3", device.Brightness{Percent: 50}).
		Return(device.Result{Success: true, State: device.State{device.CapOnOff: true, device.CapBrightness: 50}}, nil).
		Times(1)

	d, err := m.ControlDevice(context.Background(), "hue-light-3", device.Command{
		Type:   device.CmdSetBrightness,
		Params: map[string]any{"value": 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, d.State[device.CapBrightness])
	assert.Equal(t, true, d.State[device.CapOnOff])

	stored, err := m.GetDevice("hue-light-3")
	require.NoError(t, err)
	assert.Equal(t, 50, stored.State[device.CapBrightness])

	evt := next(t, sub, device.EventDeviceStateChanged)
	assert.Equal(t, "hue-light-3", evt.DeviceID)
	assert.Equal(t, 50, evt.State[device.CapBrightness])
}

func TestRoute_UnknownDevice(t *testing.T) {
	ctrl := gomock.NewController(t)
	hue := newController(ctrl, "hue")
	m := discovered(t, hue, hueLight("1"))

	// No ControlDevice expectation: any controller call fails the test.
	_, err := m.ControlDevice(context.Background(), "hue-light-404", device.Command{Type: device.CmdTurnOn})

	var cmdErr *device.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "hue-light-404", cmdErr.DeviceID)
	assert.Equal(t, device.CmdTurnOn, cmdErr.Command)
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestRoute_UnsupportedCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  device.Command
	}{
		{"missing capability", device.Command{Type: device.CmdLock}},
		{"unknown type", device.Command{Type: "selfDestruct"}},
		{"out of range", device.Command{Type: device.CmdSetBrightness, Params: map[string]any{"value": 150}}},
		{"missing param", device.Command{Type: device.CmdSetColor, Params: map[string]any{"hue": 120}}},
		{"unexpected param", device.Command{Type: device.CmdTurnOn, Params: map[string]any{"value": 1}}},
	}

	ctrl := gomock.NewController(t)
	wemo := newController(ctrl, "wemo")
	plug := wemoPlug()
	plug.Capabilities = append(plug.Capabilities, device.CapBrightness, device.CapColor)
	m := discovered(t, wemo, plug)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ControlDevice(context.Background(), plug.ID, tt.cmd)
			assert.ErrorIs(t, err, device.ErrUnsupportedCommand)
		})
	}
}

func TestRoute_ControllerUnavailable(t *testing.T) {
	store := &staticStore{devices: map[string]device.Device{"zwave-00000000000000aa": {
		ID:           "zwave-00000000000000aa",
		Protocol:     "zwave",
		Capabilities: []device.Capability{device.CapOnOff},
	}}}

	r := NewRouter(store, staticControllers{}, nil, nil)
	_, err := r.Route(context.Background(), "zwave-00000000000000aa", device.Command{Type: device.CmdTurnOff})
	assert.ErrorIs(t, err, device.ErrControllerUnavailable)
}

func TestRoute_TransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	wemo := newController(ctrl, "wemo")
	plug := wemoPlug()
	m := discovered(t, wemo, plug)

	wemo.EXPECT().
		ControlDevice(gomock.Any(), plug.ID, device.Power{On: false}).
		Return(device.Result{}, fmt.Errorf("%w: connection refused", device.ErrTransport))

	_, err := m.ControlDevice(context.Background(), plug.ID, device.Command{Type: device.CmdTurnOff})
	assert.ErrorIs(t, err, device.ErrTransport)

	stored, err := m.GetDevice(plug.ID)
	require.NoError(t, err)
	assert.Equal(t, true, stored.State[device.CapOnOff], "state untouched on failure")
}

func TestRoute_UnsuccessfulResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	wemo := newController(ctrl, "wemo")
	plug := wemoPlug()
	m := discovered(t, wemo, plug)

	wemo.EXPECT().
		ControlDevice(gomock.Any(), plug.ID, device.Power{On: false}).
		Return(device.Result{Success: false, State: device.State{device.CapOnOff: false}}, nil)

	_, err := m.ControlDevice(context.Background(), plug.ID, device.Command{Type: device.CmdTurnOff})
	assert.ErrorIs(t, err, device.ErrTransport)
	var cmdErr *device.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, plug.ID, cmdErr.DeviceID)

	stored, err := m.GetDevice(plug.ID)
	require.NoError(t, err)
	assert.Equal(t, true, stored.State[device.CapOnOff], "reported state is not applied")
}

func TestRoute_Metrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	hue := newController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).Return([]device.Device{hueLight("1")}, nil)
	hue.EXPECT().ControlDevice(gomock.Any(), "hue-light-1", device.Power{On: true}).
		Return(device.Result{Success: true, State: device.State{device.CapOnOff: true}}, nil)

	reg := prometheus.NewRegistry()
	m, err := New(Options{Metrics: metrics.NewRegistry(reg)}, hue)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	_, err = m.DiscoverDevices(context.Background())
	require.NoError(t, err)
	_, err = m.ControlDevice(context.Background(), "hue-light-1", device.Command{Type: device.CmdTurnOn})
	require.NoError(t, err)
	_, err = m.ControlDevice(context.Background(), "missing", device.Command{Type: device.CmdTurnOn})
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["homai_router_commands_total"])
	assert.True(t, names["homai_registry_devices"])
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not_found", errorKind(device.ErrDeviceNotFound))
	assert.Equal(t, "transport", errorKind(fmt.Errorf("wrap: %w", device.ErrTransport)))
	assert.Equal(t, "cancelled", errorKind(context.Canceled))
	assert.Equal(t, "error", errorKind(errors.New("boom")))
}

type staticStore struct {
	devices map[string]device.Device
}

func (s *staticStore) GetDevice(id string) (device.Device, error) {
	d, ok := s.devices[id]
	if !ok {
		return device.Device{}, device.ErrDeviceNotFound
	}
	return d, nil
}

func (s *staticStore) ApplyState(id string, _ device.State) (device.Device, error) {
	return s.GetDevice(id)
}

type staticControllers map[string]device.Controller

func (s staticControllers) Controller(protocol string) (device.Controller, bool) {
	c, ok := s[protocol]
	return c, ok
}
