package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Records(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.ObserveDiscovery("hue", 120*time.Millisecond, 3)
	r.ObserveDiscovery("hue", 80*time.Millisecond, 2)
	r.DiscoveryFailed("zigbee", ReasonTimeout)
	r.CommandRouted("hue", "turnOn", "ok")
	r.SetRegistryDevices(5)
	r.EventPublished("mqtt", errors.New("broker down"))

	assert.Equal(t, 5.0, testutil.ToFloat64(r.discoveredDevices.WithLabelValues("hue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.discoveryFailures.WithLabelValues("zigbee", ReasonTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("hue", "turnOn", "ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.registryDevices))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.eventsPublished.WithLabelValues("mqtt", "error")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveDiscovery("hue", time.Second, 1)
	r.DiscoveryFailed("hue", ReasonPanic)
	r.CommandRouted("hue", "turnOn", "ok")
	r.SetRegistryDevices(1)
	r.EventPublished("mqtt", nil)
	assert.NotNil(t, r.Handler())
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry(nil)
	r.SetRegistryDevices(2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "homai_registry_devices 2"))
}
