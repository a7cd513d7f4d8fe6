// Package mqtt forwards registry events to an MQTT broker.
//
// Per-device events go to <prefix>/devices/<id>/<event>, discovery summaries
// to <prefix>/discovery/completed, and the hub's availability is a retained
// message on <prefix>/hub/status backed by a last will.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/metrics"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	quiesceMillis  = 250
	maxQoS         = 2
)

var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrInvalidQoS       = errors.New("mqtt: invalid QoS level")
)

// Config configures the publisher.
type Config struct {
	Broker      string // tcp://host:1883
	TopicPrefix string
	ClientID    string // default homai-hub-<hostname>
	Username    string
	Password    string
	QoS         byte

	ConnectTimeout time.Duration // default 10s
}

// client is the subset of pahomqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher publishes device events as JSON.
type Publisher struct {
	client  client
	cfg     Config
	metrics *metrics.Registry
	log     zerolog.Logger
}

// Connect dials the broker and announces the hub as online.
func Connect(cfg Config, m *metrics.Registry) (*Publisher, error) {
	if cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	if cfg.ClientID == "" {
		host, _ := os.Hostname()
		cfg.ClientID = "homai-hub-" + host
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = connectTimeout
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetKeepAlive(60*time.Second).
		SetWill(statusTopic(cfg.TopicPrefix), string(statusPayload("offline", "unexpected_disconnect")), 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	plog := log.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger()
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		plog.Warn().Err(err).Msg("MQTT connection lost")
	})

	// Auto-reconnect only covers drops after the first connect. A failed
	// first connect stops the client so nothing keeps dialing.
	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		c.Disconnect(quiesceMillis)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.Disconnect(quiesceMillis)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := newPublisher(c, cfg, m)
	if err := p.publish(statusTopic(cfg.TopicPrefix), statusPayload("online", ""), true); err != nil {
		plog.Warn().Err(err).Msg("Failed to publish online status")
	}
	plog.Info().Msg("MQTT publisher connected")
	return p, nil
}

func newPublisher(c client, cfg Config, m *metrics.Registry) *Publisher {
	return &Publisher{
		client:  c,
		cfg:     cfg,
		metrics: m,
		log:     log.With().Str("component", "mqtt").Logger(),
	}
}

// Topic returns the topic an event is published on.
func Topic(prefix string, evt device.Event) string {
	if evt.Type == device.EventDevicesDiscovered {
		return prefix + "/discovery/completed"
	}
	return fmt.Sprintf("%s/devices/%s/%s", prefix, evt.DeviceID, evt.Type)
}

// Publish sends one event.
func (p *Publisher) Publish(evt device.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	err = p.publish(Topic(p.cfg.TopicPrefix, evt), payload, false)
	p.metrics.EventPublished("mqtt", err)
	return err
}

func (p *Publisher) publish(topic string, payload any, retained bool) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, p.cfg.QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Run publishes every event from events until the channel closes or ctx is
// done. Failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, events <-chan device.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := p.Publish(evt); err != nil {
				p.log.Warn().Err(err).Str("event", string(evt.Type)).Str("device", evt.DeviceID).Msg("Failed to publish event")
			}
		}
	}
}

// Close announces a graceful shutdown and disconnects.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		if err := p.publish(statusTopic(p.cfg.TopicPrefix), statusPayload("offline", "shutdown"), true); err != nil {
			p.log.Warn().Err(err).Msg("Failed to publish offline status")
		}
	}
	p.client.Disconnect(quiesceMillis)
}

func statusTopic(prefix string) string {
	return prefix + "/hub/status"
}

func statusPayload(status, reason string) []byte {
	b, _ := json.Marshal(struct {
		Status    string `json:"status"`
		Reason    string `json:"reason,omitempty"`
		Timestamp string `json:"timestamp"`
	}{status, reason, time.Now().UTC().Format(time.RFC3339)})
	return b
}
