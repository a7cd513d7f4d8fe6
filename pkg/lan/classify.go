package lan

import (
	"strings"

	"github.com/urmzd/homai-hub/pkg/device"
)

// Classification is a best-effort guess at what an announcer is. It can be
// wrong; nothing downstream relies on it for control.
type Classification struct {
	Manufacturer string
	Model        string
	Type         device.DeviceType
}

type rule struct {
	needles []string
	class   Classification
}

// rules are checked in order against the lowercased service, info and host.
var rules = []rule{
	{[]string{"_googlecast", "chromecast", "google home", "nest"}, Classification{"Google", "Cast device", device.TypeSpeaker}},
	{[]string{"sonos"}, Classification{"Sonos", "Speaker", device.TypeSpeaker}},
	{[]string{"_airplay", "_raop", "appletv", "homepod"}, Classification{"Apple", "AirPlay receiver", device.TypeSpeaker}},
	{[]string{"_hue", "philips hue", "ipbridge"}, Classification{"Signify", "Hue bridge", device.TypeBridge}},
	{[]string{"belkin", "wemo"}, Classification{"Belkin", "WeMo", device.TypeOutlet}},
	{[]string{"shelly"}, Classification{"Shelly", "Shelly relay", device.TypeSwitch}},
	{[]string{"tasmota"}, Classification{"Tasmota", "Tasmota relay", device.TypeSwitch}},
	{[]string{"_esphomelib", "esphome"}, Classification{"ESPHome", "ESPHome node", device.TypeOther}},
	{[]string{"_rtsp", "camera", "axis", "hikvision", "onvif"}, Classification{"Unknown", "IP camera", device.TypeCamera}},
	{[]string{"_hap"}, Classification{"Unknown", "HomeKit accessory", device.TypeOther}},
	{[]string{"roku"}, Classification{"Roku", "Media player", device.TypeOther}},
	{[]string{"_ipp", "_printer", "printer"}, Classification{"Unknown", "Printer", device.TypeOther}},
}

var unknown = Classification{"Unknown", "Network device", device.TypeOther}

// Classify guesses manufacturer and type from substrings of the announcement.
func Classify(a Announcement) Classification {
	haystack := strings.ToLower(a.Service + " " + a.Info + " " + a.Host)
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(haystack, n) {
				return r.class
			}
		}
	}
	return unknown
}

// hostKey normalizes an announcer to the part of its device id after "lan-".
// The address keys the host so mDNS and SSDP sightings of one machine fold
// together; the hostname is used only when no address was announced.
func hostKey(a Announcement) string {
	if a.Address != "" {
		return strings.ToLower(a.Address)
	}
	return hostName(a)
}

// hostName is the announced hostname without its trailing dot and ".local".
func hostName(a Announcement) string {
	h := strings.ToLower(strings.TrimSuffix(a.Host, "."))
	return strings.TrimSuffix(h, ".local")
}
