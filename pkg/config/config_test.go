package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homai-hub/pkg/db"
)

func TestFromSettings_Defaults(t *testing.T) {
	cfg, err := FromSettings(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.API.Address)
	assert.Equal(t, "zigbee", cfg.Mesh.Family)
	assert.Equal(t, "zwave", cfg.Mesh.SecondaryFamily())
	assert.Equal(t, 5*time.Second, cfg.Mesh.ScanWindow)
	assert.True(t, cfg.Wemo.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Wemo.SearchWindow)
	assert.Contains(t, cfg.LAN.Services, "_googlecast._tcp")
	assert.Equal(t, 30*time.Second, cfg.Discovery.Timeout)
	assert.Equal(t, "homai", cfg.MQTT.TopicPrefix)
	assert.False(t, cfg.Hue.Enabled())
}

func TestFromSettings_StoredValues(t *testing.T) {
	cfg, err := FromSettings(map[string]string{
		"hue.bridge_ip":     "192.168.1.2",
		"hue.username":      "abc123",
		"mesh.family":       "zwave",
		"mesh.port":         "/dev/ttyACM0",
		"lan.services":      "_hap._tcp, ,_ipp._tcp",
		"discovery.timeout": "45s",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Hue.Enabled())
	assert.Equal(t, "192.168.1.2", cfg.Hue.BridgeIP)
	assert.Equal(t, "zigbee", cfg.Mesh.SecondaryFamily())
	assert.Equal(t, []string{"_hap._tcp", "_ipp._tcp"}, cfg.LAN.Services)
	assert.Equal(t, 45*time.Second, cfg.Discovery.Timeout)
}

func TestFromSettings_EnvOverrides(t *testing.T) {
	t.Setenv("HOMAI_HUE_BRIDGE_IP", "10.0.0.5")
	t.Setenv("HOMAI_WEMO_ENABLED", "false")
	t.Setenv("HOMAI_MQTT_BROKER", "tcp://broker.local:1883")

	cfg, err := FromSettings(map[string]string{"hue.bridge_ip": "192.168.1.2"})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Hue.BridgeIP)
	assert.False(t, cfg.Wemo.Enabled)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
}

func TestFromSettings_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		field    string
	}{
		{"bad family", map[string]string{"mesh.family": "thread"}, "Family"},
		{"bad bridge address", map[string]string{"hue.bridge_ip": "hue bridge!"}, "BridgeIP"},
		{"same ports", map[string]string{"mesh.port": "/dev/ttyUSB0", "mesh.secondary_port": "/dev/ttyUSB0"}, "SecondaryPort"},
		{"zero timeout", map[string]string{"discovery.timeout": "0s"}, "Timeout"},
		{"wildcard prefix", map[string]string{"mqtt.topic_prefix": "home/#"}, "TopicPrefix"},
		{"bad service", map[string]string{"lan.services": "http"}, "Services"},
		{"bad listener", map[string]string{"api.address": "localhost"}, "Address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSettings(tt.settings)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestFromSettings_BridgeAddressForms(t *testing.T) {
	for _, addr := range []string{"192.168.1.2", "philips-hue.local", "http://192.168.1.2:8080"} {
		cfg, err := FromSettings(map[string]string{"hue.bridge_ip": addr})
		require.NoError(t, err, addr)
		assert.Equal(t, addr, cfg.Hue.BridgeIP)
	}
}

func TestFromSettings_DiscoveryConcurrency(t *testing.T) {
	cfg, err := FromSettings(nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.Discovery.Concurrency)

	cfg, err = FromSettings(map[string]string{"discovery.concurrency": "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Discovery.Concurrency)

	_, err = FromSettings(map[string]string{"discovery.concurrency": "-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Concurrency")
}

func TestLoad_FromDatabase(t *testing.T) {
	ctx := context.Background()
	store, err := db.OpenAndMigrate(ctx, db.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p, err := store.Profiles().GetActive(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Settings().Set(ctx, p.ID, "mesh.port", "/dev/ttyUSB0"))
	require.NoError(t, store.APIServers().Upsert(ctx, &db.APIServer{ProfileID: p.ID, Host: "127.0.0.1", Port: 9000}))

	cfg, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Mesh.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Address)
}
