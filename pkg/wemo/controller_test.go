package wemo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homai-hub/pkg/device"
)

const setupXML = `<?xml version="1.0"?>
<root xmlns="urn:Belkin:device-1-0">
  <device>
    <deviceType>urn:Belkin:device:controllee:1</deviceType>
    <friendlyName>Desk Lamp</friendlyName>
    <manufacturer>Belkin International Inc.</manufacturer>
    <modelName>Socket</modelName>
    <serialNumber>221517K0101769</serialNumber>
    <UDN>uuid:Socket-1_0-221517K0101769</UDN>
    <serviceList>
      <service>
        <serviceType>urn:Belkin:service:WiFiSetup:1</serviceType>
        <controlURL>/upnp/control/WiFiSetup1</controlURL>
      </service>
      <service>
        <serviceType>urn:Belkin:service:basicevent:1</serviceType>
        <controlURL>/upnp/control/basicevent1</controlURL>
      </service>
    </serviceList>
  </device>
</root>`

func soapReply(action, state string) string {
	return fmt.Sprintf(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`+
		`<u:%[1]sResponse xmlns:u="urn:Belkin:service:basicevent:1"><BinaryState>%[2]s</BinaryState></u:%[1]sResponse>`+
		`</s:Body></s:Envelope>`, action, state)
}

type fakePlug struct {
	srv        *httptest.Server
	state      atomic.Int32
	setReply   atomic.Value // overrides the SetBinaryState value when set
	describes  atomic.Int32
	mu         sync.Mutex
	soapAction []string
}

func newFakePlug(t *testing.T) *fakePlug {
	p := &fakePlug{}
	mux := http.NewServeMux()
	mux.HandleFunc("/setup.xml", func(w http.ResponseWriter, r *http.Request) {
		p.describes.Add(1)
		_, _ = io.WriteString(w, setupXML)
	})
	mux.HandleFunc("/upnp/control/basicevent1", func(w http.ResponseWriter, r *http.Request) {
		action := r.Header.Get("SOAPACTION")
		p.mu.Lock()
		p.soapAction = append(p.soapAction, action)
		p.mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(action, "#GetBinaryState"):
			_, _ = io.WriteString(w, soapReply("GetBinaryState", fmt.Sprintf("%d|1610000000|0|0", p.state.Load())))
		case strings.Contains(action, "#SetBinaryState"):
			if v, ok := p.setReply.Load().(string); ok {
				_, _ = io.WriteString(w, soapReply("SetBinaryState", v))
				return
			}
			if strings.Contains(string(body), "<BinaryState>1</BinaryState>") {
				p.state.Store(1)
			} else {
				p.state.Store(0)
			}
			_, _ = io.WriteString(w, soapReply("SetBinaryState", fmt.Sprint(p.state.Load())))
		default:
			http.Error(w, "unknown action", http.StatusInternalServerError)
		}
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlug) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.soapAction...)
}

func newTestController(t *testing.T, locations ...string) *Controller {
	t.Helper()
	c := NewController(Config{
		SearchWindow: 10 * time.Millisecond,
		Searcher: func(_ context.Context, st string, _ time.Duration) ([]string, error) {
			assert.Equal(t, BasicEventService, st)
			return locations, nil
		},
	})
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDiscover_DescribesAndReadsState(t *testing.T) {
	p := newFakePlug(t)
	p.state.Store(1)
	loc := p.srv.URL + "/setup.xml"
	c := newTestController(t, loc, loc)

	devices, err := c.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1, "duplicate locations collapse")

	d := devices[0]
	assert.Equal(t, "wemo-221517K0101769", d.ID)
	assert.Equal(t, "Desk Lamp", d.Name)
	assert.Equal(t, device.TypeOutlet, d.Type)
	assert.Equal(t, "Socket", d.Model)
	assert.Equal(t, device.ProtocolWemo, d.Protocol)
	assert.Equal(t, []device.Capability{device.CapOnOff}, d.Capabilities)
	assert.Equal(t, device.State{device.CapOnOff: true}, d.State)
	assert.True(t, d.Online)

	// Second pass uses the cached description.
	_, err = c.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.describes.Load())
}

func TestDiscover_PartialOnBadDescription(t *testing.T) {
	p := newFakePlug(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<root><device>")
	}))
	t.Cleanup(bad.Close)

	c := newTestController(t, bad.URL+"/setup.xml", p.srv.URL+"/setup.xml")

	devices, err := c.Discover(context.Background())
	assert.ErrorIs(t, err, device.ErrProtocolParse)
	assert.Len(t, devices, 1)
}

func TestControl_SetBinaryState(t *testing.T) {
	p := newFakePlug(t)
	c := newTestController(t, p.srv.URL+"/setup.xml")
	_, err := c.Discover(context.Background())
	require.NoError(t, err)

	res, err := c.ControlDevice(context.Background(), "wemo-221517K0101769", device.Power{On: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, device.State{device.CapOnOff: true}, res.State)
	assert.Contains(t, p.actions(), `"urn:Belkin:service:basicevent:1#SetBinaryState"`)

	res, err = c.ControlDevice(context.Background(), "wemo-221517K0101769", device.Toggle{})
	require.NoError(t, err)
	assert.Equal(t, device.State{device.CapOnOff: false}, res.State)
}

func TestControl_ErrorReplyMeansUnchanged(t *testing.T) {
	p := newFakePlug(t)
	c := newTestController(t, p.srv.URL+"/setup.xml")
	_, err := c.Discover(context.Background())
	require.NoError(t, err)

	p.setReply.Store("Error")
	res, err := c.ControlDevice(context.Background(), "wemo-221517K0101769", device.Power{On: false})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, device.State{device.CapOnOff: false}, res.State)
}

func TestControl_Failures(t *testing.T) {
	p := newFakePlug(t)
	c := newTestController(t, p.srv.URL+"/setup.xml")
	_, err := c.Discover(context.Background())
	require.NoError(t, err)

	_, err = c.ControlDevice(context.Background(), "wemo-nope", device.Power{On: true})
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)

	_, err = c.ControlDevice(context.Background(), "wemo-221517K0101769", device.Brightness{Percent: 3})
	assert.ErrorIs(t, err, device.ErrUnsupportedCommand)

	p.setReply.Store("garbage")
	_, err = c.ControlDevice(context.Background(), "wemo-221517K0101769", device.Power{On: true})
	assert.ErrorIs(t, err, device.ErrTransport)
	assert.ErrorIs(t, err, device.ErrProtocolParse)

	p.srv.Close()
	_, err = c.ControlDevice(context.Background(), "wemo-221517K0101769", device.Power{On: true})
	assert.ErrorIs(t, err, device.ErrTransport)
}

func TestDiscover_SearchFailure(t *testing.T) {
	c := NewController(Config{
		Searcher: func(context.Context, string, time.Duration) ([]string, error) {
			return nil, errors.New("no multicast route")
		},
	})
	require.NoError(t, c.Initialize(context.Background()))

	devices, err := c.Discover(context.Background())
	assert.Empty(t, devices)
	assert.ErrorIs(t, err, device.ErrTransport)
}

func TestParseBinaryState(t *testing.T) {
	n, err := parseBinaryState([]byte(soapReply("GetBinaryState", "8|1610000000|0")))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, err = parseBinaryState([]byte(soapReply("SetBinaryState", "Error")))
	assert.ErrorIs(t, err, errStateUnchanged)

	_, err = parseBinaryState([]byte("<x/>"))
	assert.ErrorIs(t, err, device.ErrProtocolParse)
}

func TestDescription(t *testing.T) {
	d, err := ParseDescription(strings.NewReader(setupXML))
	require.NoError(t, err)
	d.Location = "http://192.168.1.20:49153/setup.xml"

	u, err := d.ControlURL()
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:49153/upnp/control/basicevent1", u)
	assert.Equal(t, "192.168.1.20:49153", d.Host())

	d.SerialNumber = ""
	assert.Equal(t, "wemo-221517K0101769", d.ID())

	d.DeviceType = "urn:Belkin:device:lightswitch:1"
	typ, _ := d.Profile()
	assert.Equal(t, device.TypeSwitch, typ)

	_, err = ParseDescription(strings.NewReader(`<root><device><friendlyName>x</friendlyName></device></root>`))
	assert.ErrorIs(t, err, device.ErrProtocolParse)
}
