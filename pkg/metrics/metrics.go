// Package metrics defines the hub's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "homai"

// Failure reasons for DiscoveryFailures.
const (
	ReasonTimeout = "timeout"
	ReasonError   = "error"
	ReasonPanic   = "panic"
	ReasonInvalid = "invalid_device"
)

// Registry holds every collector. A nil *Registry is valid and records nothing.
type Registry struct {
	gatherer prometheus.Gatherer

	discoveryDuration *prometheus.HistogramVec
	discoveredDevices *prometheus.CounterVec
	discoveryFailures *prometheus.CounterVec
	commands          *prometheus.CounterVec
	registryDevices   prometheus.Gauge
	eventsPublished   *prometheus.CounterVec
}

// NewRegistry registers the collectors on reg. A nil reg creates a private
// registry.
func NewRegistry(reg *prometheus.Registry) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Registry{
		gatherer: reg,
		discoveryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "duration_seconds",
			Help:      "Time spent in one controller's discovery pass.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"protocol"}),
		discoveredDevices: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_total",
			Help:      "Valid devices reported by controllers.",
		}, []string{"protocol"}),
		discoveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "failures_total",
			Help:      "Discovery failures by reason.",
		}, []string{"protocol", "reason"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "commands_total",
			Help:      "Routed commands by outcome.",
		}, []string{"protocol", "command", "result"}),
		registryDevices: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "devices",
			Help:      "Devices currently in the registry.",
		}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events forwarded to external sinks.",
		}, []string{"sink", "result"}),
	}
}

// ObserveDiscovery records one controller pass.
func (r *Registry) ObserveDiscovery(protocol string, d time.Duration, devices int) {
	if r == nil {
		return
	}
	r.discoveryDuration.WithLabelValues(protocol).Observe(d.Seconds())
	r.discoveredDevices.WithLabelValues(protocol).Add(float64(devices))
}

// DiscoveryFailed counts a failed or partially failed pass.
func (r *Registry) DiscoveryFailed(protocol, reason string) {
	if r == nil {
		return
	}
	r.discoveryFailures.WithLabelValues(protocol, reason).Inc()
}

// CommandRouted counts a command by outcome ("ok" or an error kind).
func (r *Registry) CommandRouted(protocol, command, result string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(protocol, command, result).Inc()
}

// SetRegistryDevices sets the registry size.
func (r *Registry) SetRegistryDevices(n int) {
	if r == nil {
		return
	}
	r.registryDevices.Set(float64(n))
}

// EventPublished counts an event forwarded to sink.
func (r *Registry) EventPublished(sink string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.eventsPublished.WithLabelValues(sink, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
