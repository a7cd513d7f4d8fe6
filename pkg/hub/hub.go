// Package hub assembles the integration manager and its event sinks from a
// resolved configuration. Both binaries start through it.
package hub

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/config"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/hue"
	"github.com/urmzd/homai-hub/pkg/integration"
	"github.com/urmzd/homai-hub/pkg/lan"
	"github.com/urmzd/homai-hub/pkg/meshradio"
	"github.com/urmzd/homai-hub/pkg/metrics"
	"github.com/urmzd/homai-hub/pkg/mqtt"
	"github.com/urmzd/homai-hub/pkg/wemo"
)

// Controllers builds the protocol controllers enabled by cfg, in
// registration order. Mesh families without a port are skipped.
func Controllers(cfg *config.Config) []device.Controller {
	var out []device.Controller

	mesh := func(key, port string) {
		if port == "" {
			return
		}
		family, ok := meshradio.FamilyByKey(key)
		if !ok {
			log.Warn().Str("family", key).Msg("Unknown mesh family, skipping")
			return
		}
		out = append(out, meshradio.NewController(family, meshradio.Config{
			Port:       port,
			ScanWindow: cfg.Mesh.ScanWindow,
		}))
	}
	mesh(cfg.Mesh.Family, cfg.Mesh.Port)
	mesh(cfg.Mesh.SecondaryFamily(), cfg.Mesh.SecondaryPort)

	if cfg.Hue.Enabled() {
		out = append(out, hue.NewController(hue.Config{
			BridgeIP: cfg.Hue.BridgeIP,
			Username: cfg.Hue.Username,
		}))
	}
	if cfg.Wemo.Enabled {
		out = append(out, wemo.NewController(wemo.Config{SearchWindow: cfg.Wemo.SearchWindow}))
	}
	if cfg.LAN.Enabled {
		out = append(out, lan.NewController(lan.Config{Services: cfg.LAN.Services}))
	}
	return out
}

// NewManager creates a manager over the controllers enabled by cfg.
func NewManager(cfg *config.Config, reg *metrics.Registry) (*integration.Manager, error) {
	controllers := Controllers(cfg)
	keys := make([]string, 0, len(controllers))
	for _, c := range controllers {
		keys = append(keys, c.Protocol())
	}
	log.Info().Strs("controllers", keys).Str("profile", cfg.Profile).Msg("Registering controllers")

	return integration.New(integration.Options{
		DiscoveryTimeout: cfg.Discovery.Timeout,
		DiscoveryLimit:   cfg.Discovery.Concurrency,
		Metrics:          reg,
	}, controllers...)
}

// StartPublisher forwards every registry event to MQTT when a broker is
// configured. The returned stop function drains the forwarder and
// disconnects; it is a no-op when publishing is disabled.
func StartPublisher(ctx context.Context, cfg config.MQTTConfig, events device.EventSubscriber, reg *metrics.Registry) (func(), error) {
	if cfg.Broker == "" {
		return func() {}, nil
	}

	p, err := mqtt.Connect(mqtt.Config{Broker: cfg.Broker, TopicPrefix: cfg.TopicPrefix}, reg)
	if err != nil {
		return nil, err
	}

	ch := events.Subscribe()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, ch)
	}()

	return func() {
		cancel()
		<-done
		events.Unsubscribe(ch)
		p.Close()
	}, nil
}
