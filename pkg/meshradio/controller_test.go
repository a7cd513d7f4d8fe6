package meshradio

import (
	"context"
	"encoding/binary"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homai-hub/pkg/device"
)

// fakeCoordinator is the far end of a net.Pipe speaking the frame protocol.
type fakeCoordinator struct {
	t       *testing.T
	fam     Family
	conn    net.Conn
	frames  chan Frame
	autoAck bool
	status  byte
}

func newFakeCoordinator(t *testing.T, fam Family, autoAck bool) (*fakeCoordinator, net.Conn) {
	host, coord := net.Pipe()
	f := &fakeCoordinator{
		t:       t,
		fam:     fam,
		conn:    coord,
		frames:  make(chan Frame, 32),
		autoAck: autoAck,
	}
	go f.run()
	t.Cleanup(func() { _ = coord.Close() })
	return f, host
}

func (f *fakeCoordinator) run() {
	dec := NewDecoder(f.conn, f.fam.SOF)
	for {
		fr, err := dec.Next()
		if err != nil {
			return
		}
		f.frames <- fr
		if fr.Opcode == OpCommand && f.autoAck {
			f.send(Frame{Opcode: OpAck, Addr: fr.Addr, Payload: []byte{f.status}})
		}
	}
}

func (f *fakeCoordinator) send(fr Frame) {
	b, err := fr.Encode(f.fam.SOF)
	if err != nil {
		f.t.Errorf("encode: %v", err)
		return
	}
	_, _ = f.conn.Write(b)
}

func (f *fakeCoordinator) announce(addr uint16, class uint16, ieee uint64) {
	p := make([]byte, 10)
	binary.LittleEndian.PutUint16(p[0:2], class)
	binary.LittleEndian.PutUint64(p[2:10], ieee)
	f.send(Frame{Opcode: OpAnnounce, Addr: addr, Endpoint: 1, Payload: p})
}

func (f *fakeCoordinator) next(t *testing.T) Frame {
	t.Helper()
	select {
	case fr := <-f.frames:
		return fr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func (f *fakeCoordinator) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case fr := <-f.frames:
		t.Fatalf("unexpected frame %+v", fr)
	case <-time.After(wait):
	}
}

func waitEvent(t *testing.T, c *Controller, typ device.EventType) device.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-c.Events():
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return device.Event{}
		}
	}
}

func newTestController(t *testing.T, fam Family, autoAck bool) (*Controller, *fakeCoordinator) {
	t.Helper()
	fake, host := newFakeCoordinator(t, fam, autoAck)
	c := NewController(fam, Config{
		Transport:  host,
		ScanWindow: 30 * time.Millisecond,
		AckTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()), "initialize is idempotent")
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

const lampIEEE uint64 = 0x00124b0001a2b3c4

func TestController_AnnounceAndDiscover(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)

	fake.announce(0x1a2b, 0x0101, lampIEEE)
	evt := waitEvent(t, c, device.EventDeviceDiscovered)
	assert.Equal(t, "zigbee-00124b0001a2b3c4", evt.DeviceID)

	devices, err := c.Discover(context.Background())
	require.NoError(t, err)

	scan := fake.next(t)
	assert.Equal(t, OpScan, scan.Opcode)
	assert.Equal(t, BroadcastAddr, scan.Addr)

	require.Len(t, devices, 1)
	d := devices[0]
	assert.Equal(t, device.ProtocolZigbee, d.Protocol)
	assert.Equal(t, device.TypeLight, d.Type)
	assert.Equal(t, "0x1a2b", d.Address)
	assert.ElementsMatch(t, []device.Capability{device.CapOnOff, device.CapBrightness}, d.Capabilities)

	// Rejoin with a new short address is an update.
	fake.announce(0x3c3c, 0x0101, lampIEEE)
	evt = waitEvent(t, c, device.EventDeviceUpdated)
	assert.Equal(t, "0x3c3c", evt.Device.Address)
}

func TestController_UnknownClassIgnored(t *testing.T) {
	c, fake := newTestController(t, ZWave(), true)

	fake.announce(0x0005, 0x7777, 1)
	fake.announce(0x0006, 0x10, 2)
	waitEvent(t, c, device.EventDeviceDiscovered)

	assert.Len(t, c.Devices(), 1)
}

func TestController_SetBrightness(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)
	fake.announce(0x1a2b, 0x0101, lampIEEE)
	waitEvent(t, c, device.EventDeviceDiscovered)

	res, err := c.ControlDevice(context.Background(), "zigbee-00124b0001a2b3c4", device.Brightness{Percent: 50})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, device.State{device.CapBrightness: 50, device.CapOnOff: true}, res.State)

	fr := fake.next(t)
	assert.Equal(t, OpCommand, fr.Opcode)
	assert.Equal(t, uint16(0x1a2b), fr.Addr)
	assert.Equal(t, ClusterLevel, fr.Cluster)
	assert.Equal(t, []byte{127}, fr.Payload)

	got, err := DecodeAction(Zigbee(), Instruction{Cluster: fr.Cluster, Payload: fr.Payload})
	require.NoError(t, err)
	assert.InDelta(t, 50, got.(device.Brightness).Percent, 1)
}

func TestController_ToggleUsesKnownState(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)
	fake.announce(0x0001, 0x0100, 7)
	waitEvent(t, c, device.EventDeviceDiscovered)

	fake.send(Frame{Opcode: OpReport, Addr: 0x0001, Cluster: ClusterOnOff, Payload: []byte{1}})
	evt := waitEvent(t, c, device.EventStateChanged)
	assert.Equal(t, device.State{device.CapOnOff: true}, evt.State)

	res, err := c.ControlDevice(context.Background(), "zigbee-0000000000000007", device.Toggle{})
	require.NoError(t, err)
	assert.Equal(t, device.State{device.CapOnOff: false}, res.State)
	assert.Equal(t, []byte{0}, fake.next(t).Payload)
}

func TestController_UnknownDeviceWritesNothing(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)

	_, err := c.ControlDevice(context.Background(), "zigbee-dead", device.Power{On: true})
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
	fake.expectNone(t, 50*time.Millisecond)
}

func TestController_MissingCapabilityWritesNothing(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)
	fake.announce(0x0001, 0x0100, 7) // on/off only
	waitEvent(t, c, device.EventDeviceDiscovered)

	_, err := c.ControlDevice(context.Background(), "zigbee-0000000000000007", device.Brightness{Percent: 10})
	assert.ErrorIs(t, err, device.ErrUnsupportedCommand)
	fake.expectNone(t, 50*time.Millisecond)
}

func TestController_AckFailures(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		c, fake := newTestController(t, Zigbee(), true)
		fake.status = 0x01
		fake.announce(0x0001, 0x0100, 7)
		waitEvent(t, c, device.EventDeviceDiscovered)

		_, err := c.ControlDevice(context.Background(), "zigbee-0000000000000007", device.Power{On: true})
		assert.ErrorIs(t, err, device.ErrTransport)
	})

	t.Run("timeout", func(t *testing.T) {
		c, fake := newTestController(t, Zigbee(), false)
		fake.announce(0x0001, 0x0100, 7)
		waitEvent(t, c, device.EventDeviceDiscovered)

		_, err := c.ControlDevice(context.Background(), "zigbee-0000000000000007", device.Power{On: true})
		assert.ErrorIs(t, err, device.ErrTransport)
		assert.Equal(t, OpCommand, fake.next(t).Opcode)
	})
}

func TestController_CommandQueuedBehindScan(t *testing.T) {
	fake, host := newFakeCoordinator(t, Zigbee(), true)
	c := NewController(Zigbee(), Config{Transport: host, ScanWindow: 500 * time.Millisecond, AckTimeout: 100 * time.Millisecond})
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	fake.announce(0x0001, 0x0100, 7)
	waitEvent(t, c, device.EventDeviceDiscovered)

	start := time.Now()
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		_, _ = c.Discover(context.Background())
	}()
	require.Equal(t, OpScan, fake.next(t).Opcode)

	// The scan holds the wire, so a short deadline expires in the queue.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ControlDevice(ctx, "zigbee-0000000000000007", device.Power{On: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	fake.expectNone(t, 20*time.Millisecond)

	// A patient command goes out once the scan window ends.
	res, err := c.ControlDevice(context.Background(), "zigbee-0000000000000007", device.Power{On: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond, "command overtook the scan")
	<-scanDone
}

func TestController_MalformedFramesDropped(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)

	bad, _ := Frame{Opcode: OpAnnounce, Addr: 1}.Encode(0xFE)
	bad[len(bad)-1] ^= 0x55
	_, _ = fake.conn.Write(bad)
	_, _ = fake.conn.Write([]byte{0x00, 0xFE, 0x01})

	fake.announce(0x0002, 0x0051, 9)
	evt := waitEvent(t, c, device.EventDeviceDiscovered)
	assert.Equal(t, device.TypeOutlet, evt.Device.Type)
	assert.True(t, c.IsConnected())
}

func TestController_LeaveRemovesDevice(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)
	fake.announce(0x0001, 0x0100, 7)
	waitEvent(t, c, device.EventDeviceDiscovered)

	fake.send(Frame{Opcode: OpLeave, Addr: 0x0001})
	evt := waitEvent(t, c, device.EventDeviceRemoved)
	assert.Equal(t, "zigbee-0000000000000007", evt.DeviceID)
	assert.Empty(t, c.Devices())
}

func TestController_PermitJoin(t *testing.T) {
	c, fake := newTestController(t, Zigbee(), true)

	require.NoError(t, c.PermitJoin(context.Background(), 60*time.Second))
	fr := fake.next(t)
	assert.Equal(t, OpScan, fr.Opcode)
	assert.Equal(t, []byte{60}, fr.Payload)
}

func TestController_NotConnected(t *testing.T) {
	c := NewController(Zigbee(), Config{})

	_, err := c.Discover(context.Background())
	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.ErrorIs(t, c.Initialize(context.Background()), device.ErrNotConnected)
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestController_MissingSerialDevice(t *testing.T) {
	c := NewController(Zigbee(), Config{Port: filepath.Join(t.TempDir(), "ttyUSB9")})

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open serial port")
	assert.False(t, c.IsConnected())
}
