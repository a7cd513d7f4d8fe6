package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/metrics"
	"go.uber.org/mock/gomock"
)

func mockController(ctrl *gomock.Controller, protocol string) *device.MockController {
	m := device.NewMockController(ctrl)
	m.EXPECT().Protocol().Return(protocol).AnyTimes()
	return m
}

func light(id, protocol string) device.Device {
	return device.Device{
		ID:           id,
		Name:         id,
		Type:         device.TypeLight,
		Protocol:     protocol,
		Capabilities: []device.Capability{device.CapOnOff, device.CapBrightness},
		State:        device.State{device.CapOnOff: true},
		Online:       true,
	}
}

func TestRun_CollectsEveryController(t *testing.T) {
	ctrl := gomock.NewController(t)
	hue := mockController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).Return([]device.Device{light("hue-light-1", "hue"), light("hue-light-2", "hue")}, nil)
	wemo := mockController(ctrl, "wemo")
	wemo.EXPECT().Discover(gomock.Any()).Return([]device.Device{light("wemo-1", "wemo")}, nil)

	out := New([]device.Controller{hue, wemo}).Run(context.Background())

	require.Len(t, out.Reports, 2)
	assert.Equal(t, "hue", out.Reports[0].Protocol)
	assert.Len(t, out.Reports[0].Devices, 2)
	assert.Equal(t, "wemo", out.Reports[1].Protocol)
	assert.Len(t, out.Devices(), 3)
	assert.NoError(t, out.Err())
}

func TestRun_HangingControllerTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := mockController(ctrl, "zwave")
	stuck.EXPECT().Discover(gomock.Any()).DoAndReturn(func(context.Context) ([]device.Device, error) {
		<-release
		return []device.Device{light("zwave-late", "zwave")}, nil
	}).MaxTimes(1)
	hue := mockController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).Return([]device.Device{light("hue-light-1", "hue")}, nil)

	start := time.Now()
	out := New([]device.Controller{stuck, hue}, WithTimeout(50*time.Millisecond)).Run(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, out.Reports[0].Err, device.ErrDiscoveryTimeout)
	assert.Empty(t, out.Reports[0].Devices)
	assert.NoError(t, out.Reports[1].Err)
	assert.Len(t, out.Reports[1].Devices, 1)
	assert.ErrorIs(t, out.Err(), device.ErrDiscoveryTimeout)
}

func TestRun_PerControllerTimeoutOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	slow := mockController(ctrl, "zwave")
	slow.EXPECT().Discover(gomock.Any()).DoAndReturn(func(context.Context) ([]device.Device, error) {
		time.Sleep(80 * time.Millisecond)
		return []device.Device{light("zwave-1", "zwave")}, nil
	})

	out := New([]device.Controller{slow},
		WithTimeout(20*time.Millisecond),
		WithControllerTimeout("zwave", 2*time.Second),
	).Run(context.Background())

	require.NoError(t, out.Reports[0].Err)
	assert.Len(t, out.Reports[0].Devices, 1)
}

func TestRun_PanicIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	bad := mockController(ctrl, "lan")
	bad.EXPECT().Discover(gomock.Any()).DoAndReturn(func(context.Context) ([]device.Device, error) {
		panic("nil map")
	})
	hue := mockController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).Return([]device.Device{light("hue-light-1", "hue")}, nil)

	out := New([]device.Controller{bad, hue}).Run(context.Background())

	assert.Error(t, out.Reports[0].Err)
	assert.Empty(t, out.Reports[0].Devices)
	assert.Len(t, out.Reports[1].Devices, 1)
}

func TestRun_ErrorKeepsPartialDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	wemo := mockController(ctrl, "wemo")
	wemo.EXPECT().Discover(gomock.Any()).Return([]device.Device{light("wemo-1", "wemo")}, errors.New("setup.xml: 500"))

	out := New([]device.Controller{wemo}).Run(context.Background())

	assert.Error(t, out.Reports[0].Err)
	assert.Len(t, out.Reports[0].Devices, 1)
}

func TestRun_DropsInvalidDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	noCaps := light("hue-light-2", "hue")
	noCaps.Capabilities = nil

	first := light("hue-light-1", "hue")
	last := light("hue-light-1", "hue")
	last.Name = "Kitchen"

	hue := mockController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).Return([]device.Device{
		first,
		noCaps,
		light("zigbee-00124b0001a2b3c4", "zigbee"),
		last,
	}, nil)

	reg := metrics.NewRegistry(prometheus.NewRegistry())
	out := New([]device.Controller{hue}, WithMetrics(reg)).Run(context.Background())

	r := out.Reports[0]
	require.Len(t, r.Devices, 1)
	assert.Equal(t, 2, r.Dropped)
	assert.Equal(t, "Kitchen", r.Devices[0].Name, "duplicate ids keep the last value")
	for _, d := range out.Devices() {
		assert.NotEmpty(t, d.Capabilities)
		assert.Equal(t, "hue", d.Protocol)
	}
}

func TestRun_PrunesStateOutsideCapabilities(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := light("hue-light-1", "hue")
	d.State[device.CapLock] = true

	hue := mockController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).Return([]device.Device{d}, nil)

	out := New([]device.Controller{hue}).Run(context.Background())

	require.Len(t, out.Devices(), 1)
	assert.NotContains(t, out.Devices()[0].State, device.CapLock)
}

func TestRun_ParentCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hue := mockController(ctrl, "hue")
	hue.EXPECT().Discover(gomock.Any()).DoAndReturn(func(dctx context.Context) ([]device.Device, error) {
		cancel()
		<-dctx.Done()
		return nil, dctx.Err()
	})

	out := New([]device.Controller{hue}).Run(ctx)

	assert.ErrorIs(t, out.Reports[0].Err, context.Canceled)
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	var active, peak atomic.Int32
	scan := func(context.Context) ([]device.Device, error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	}

	var controllers []device.Controller
	for _, p := range []string{"zigbee", "zwave", "hue", "wemo"} {
		c := mockController(ctrl, p)
		c.EXPECT().Discover(gomock.Any()).DoAndReturn(scan)
		controllers = append(controllers, c)
	}

	out := New(controllers, WithConcurrency(2)).Run(context.Background())

	require.Len(t, out.Reports, 4)
	assert.NoError(t, out.Err())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(0), active.Load())
}
