package meshradio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homai-hub/pkg/device"
)

func TestBrightnessRoundTrip(t *testing.T) {
	for _, fam := range []Family{Zigbee(), ZWave()} {
		t.Run(fam.Key, func(t *testing.T) {
			for pct := 0; pct <= 100; pct++ {
				instrs, err := EncodeAction(fam, device.Brightness{Percent: pct})
				require.NoError(t, err)
				require.Len(t, instrs, 1)
				assert.LessOrEqual(t, int(instrs[0].Payload[0]), fam.LevelMax)

				back, err := DecodeAction(fam, instrs[0])
				require.NoError(t, err)
				got, ok := back.(device.Brightness)
				require.True(t, ok)
				assert.InDelta(t, pct, got.Percent, 1, "percent %d", pct)
			}
		})
	}
}

func TestBrightnessLevelRanges(t *testing.T) {
	zb, _ := EncodeAction(Zigbee(), device.Brightness{Percent: 100})
	zw, _ := EncodeAction(ZWave(), device.Brightness{Percent: 100})
	assert.Equal(t, byte(254), zb[0].Payload[0])
	assert.Equal(t, byte(99), zw[0].Payload[0])
}

func TestActionRoundTrip(t *testing.T) {
	fam := Zigbee()
	tests := []device.Action{
		device.Power{On: true},
		device.Power{On: false},
		device.Lock{Locked: true},
		device.ColorTemperature{Kelvin: 2000},
		device.TargetTemperature{Celsius: 21.5},
		device.TargetTemperature{Celsius: -4.25},
	}
	for _, want := range tests {
		instrs, err := EncodeAction(fam, want)
		require.NoError(t, err)
		require.Len(t, instrs, 1)

		got, err := DecodeAction(fam, instrs[0])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestColorTemperatureRoundTrip(t *testing.T) {
	for k := device.MinKelvin; k <= device.MaxKelvin; k += 250 {
		instrs, err := EncodeAction(Zigbee(), device.ColorTemperature{Kelvin: k})
		require.NoError(t, err)
		got, err := DecodeAction(Zigbee(), instrs[0])
		require.NoError(t, err)
		// One mired step near 6500K is about 40K.
		assert.InDelta(t, k, got.(device.ColorTemperature).Kelvin, 45)
	}
}

func TestColorRoundTrip(t *testing.T) {
	in := device.Color{HSV: device.HSV{Hue: 200, Saturation: 60, Value: 40}}

	instrs, err := EncodeAction(Zigbee(), in)
	require.NoError(t, err)
	require.Len(t, instrs, 2, "color plus level")
	assert.Equal(t, ClusterColor, instrs[0].Cluster)
	assert.Equal(t, ClusterLevel, instrs[1].Cluster)

	got, err := DecodeAction(Zigbee(), instrs[0])
	require.NoError(t, err)
	c := got.(device.Color)
	assert.InDelta(t, 200, c.HSV.Hue, 360.0/254)
	assert.InDelta(t, 60, c.HSV.Saturation, 100.0/254)

	level, err := DecodeAction(Zigbee(), instrs[1])
	require.NoError(t, err)
	assert.InDelta(t, 40, level.(device.Brightness).Percent, 1)
}

func TestColorWithoutValueSendsNoLevel(t *testing.T) {
	instrs, err := EncodeAction(Zigbee(), device.Color{HSV: device.HSV{Hue: 10, Saturation: 10, Value: -1}})
	require.NoError(t, err)
	assert.Len(t, instrs, 1)
}

func TestEncodeToggleUnsupported(t *testing.T) {
	_, err := EncodeAction(Zigbee(), device.Toggle{})
	assert.True(t, errors.Is(err, device.ErrUnsupportedCommand))
}

func TestDecodeReport(t *testing.T) {
	fam := ZWave()
	tests := []struct {
		name    string
		cluster uint16
		payload []byte
		want    device.State
	}{
		{"on", ClusterOnOff, []byte{1}, device.State{device.CapOnOff: true}},
		{"level", ClusterLevel, []byte{99}, device.State{device.CapBrightness: 100}},
		{"temperature", ClusterTemperature, []byte{0x34, 0x08}, device.State{device.CapTemperature: 21.0}},
		{"motion", ClusterOccupancy, []byte{0x01}, device.State{device.CapMotion: true}},
		{"contact closed", ClusterIASZone, []byte{0x00}, device.State{device.CapContact: true}},
		{"contact open", ClusterIASZone, []byte{0x01}, device.State{device.CapContact: false}},
		{"locked", ClusterDoorLock, []byte{1}, device.State{device.CapLock: true}},
		{"color temperature", ClusterColor, []byte{colorCmdColorTemp, 0xF4, 0x01}, device.State{device.CapColorTemperature: 2000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReport(fam, tt.cluster, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeReport(fam, 0x0B04, []byte{1, 2})
	assert.ErrorIs(t, err, device.ErrProtocolParse)
	_, err = DecodeReport(fam, ClusterOnOff, nil)
	assert.ErrorIs(t, err, device.ErrProtocolParse)
}
