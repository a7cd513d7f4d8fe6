package wemo

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/urmzd/homai-hub/pkg/device"
)

// BasicEventService is the UPnP service that switches WeMo relays.
const BasicEventService = "urn:Belkin:service:basicevent:1"

// Description is the subset of a WeMo setup.xml the controller needs.
type Description struct {
	DeviceType   string `xml:"device>deviceType"`
	FriendlyName string `xml:"device>friendlyName"`
	Manufacturer string `xml:"device>manufacturer"`
	ModelName    string `xml:"device>modelName"`
	SerialNumber string `xml:"device>serialNumber"`
	UDN          string `xml:"device>UDN"`
	Services     []struct {
		ServiceType string `xml:"serviceType"`
		ControlURL  string `xml:"controlURL"`
	} `xml:"device>serviceList>service"`

	// Location is the URL the description was fetched from.
	Location string `xml:"-"`
}

// ParseDescription decodes a setup.xml document.
func ParseDescription(r io.Reader) (*Description, error) {
	var d Description
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: setup.xml: %w", device.ErrProtocolParse, err)
	}
	if d.UDN == "" && d.SerialNumber == "" {
		return nil, fmt.Errorf("%w: setup.xml has no serial or UDN", device.ErrProtocolParse)
	}
	return &d, nil
}

// ControlURL returns the absolute basicevent control URL.
func (d *Description) ControlURL() (string, error) {
	base, err := url.Parse(d.Location)
	if err != nil {
		return "", fmt.Errorf("parse location %q: %w", d.Location, err)
	}
	for _, s := range d.Services {
		if s.ServiceType == BasicEventService {
			ref, err := url.Parse(strings.TrimSpace(s.ControlURL))
			if err != nil {
				return "", fmt.Errorf("parse control url: %w", err)
			}
			return base.ResolveReference(ref).String(), nil
		}
	}
	return "", fmt.Errorf("%w: no %s service", device.ErrProtocolParse, BasicEventService)
}

// ID returns the stable device id, preferring the serial number.
func (d *Description) ID() string {
	key := d.SerialNumber
	if key == "" {
		key = d.UDN[strings.LastIndex(d.UDN, "-")+1:]
	}
	return "wemo-" + key
}

// Host returns host:port of the description location.
func (d *Description) Host() string {
	u, err := url.Parse(d.Location)
	if err != nil {
		return d.Location
	}
	return u.Host
}

// Profile maps the UPnP device type to a device type and capabilities.
func (d *Description) Profile() (device.DeviceType, []device.Capability) {
	t := strings.ToLower(d.DeviceType)
	switch {
	case strings.Contains(t, "lightswitch"):
		return device.TypeSwitch, []device.Capability{device.CapOnOff}
	case strings.Contains(t, "dimmer"):
		return device.TypeLight, []device.Capability{device.CapOnOff}
	case strings.Contains(t, "sensor"):
		return device.TypeSensor, []device.Capability{device.CapMotion}
	default:
		// controllee, insight and unknown relays behave as outlets.
		return device.TypeOutlet, []device.Capability{device.CapOnOff}
	}
}

// fetchDescription downloads and parses the description at location.
func fetchDescription(ctx context.Context, client *http.Client, location string) (*Description, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", device.ErrTransport, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", device.ErrTransport, location, resp.StatusCode)
	}

	d, err := ParseDescription(resp.Body)
	if err != nil {
		return nil, err
	}
	d.Location = location
	return d, nil
}
