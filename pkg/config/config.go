// Package config resolves the hub's runtime configuration. Stored profile
// settings are the defaults and HOMAI_* environment variables override them,
// so HOMAI_HUE_BRIDGE_IP replaces the hue.bridge_ip setting.
package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/urmzd/homai-hub/pkg/db"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "HOMAI"

// Config is the resolved hub configuration.
type Config struct {
	Profile   string          `mapstructure:"-"`
	API       APIConfig       `mapstructure:"api"`
	Hue       HueConfig       `mapstructure:"hue"`
	Mesh      MeshConfig      `mapstructure:"mesh"`
	Wemo      WemoConfig      `mapstructure:"wemo"`
	LAN       LANConfig       `mapstructure:"lan"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

// APIConfig is the REST listener.
type APIConfig struct {
	Address string `mapstructure:"address" validate:"required,listen"`
}

// HueConfig enables the Hue controller when Username is set. BridgeIP takes
// an address, a hostname or a base URL.
type HueConfig struct {
	BridgeIP string `mapstructure:"bridge_ip" validate:"omitempty,ip|hostname_rfc1123|url"`
	Username string `mapstructure:"username"`
}

// Enabled reports whether the Hue controller should be registered.
func (h HueConfig) Enabled() bool { return h.Username != "" }

// MeshConfig configures the serial coordinators. Port runs Family; the
// optional SecondaryPort runs the other family.
type MeshConfig struct {
	Port          string        `mapstructure:"port"`
	Family        string        `mapstructure:"family" validate:"oneof=zigbee zwave"`
	SecondaryPort string        `mapstructure:"secondary_port" validate:"omitempty,nefield=Port"`
	ScanWindow    time.Duration `mapstructure:"scan_window" validate:"gt=0"`
}

// SecondaryFamily is the family served by SecondaryPort.
func (m MeshConfig) SecondaryFamily() string {
	if m.Family == "zwave" {
		return "zigbee"
	}
	return "zwave"
}

// WemoConfig configures the UPnP switch controller.
type WemoConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SearchWindow time.Duration `mapstructure:"search_window" validate:"gt=0"`
}

// LANConfig configures the passive scanner.
type LANConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Services []string `mapstructure:"services" validate:"dive,required,startswith=_"`
}

// DiscoveryConfig bounds each controller's discovery pass.
type DiscoveryConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=0"` // 0 runs every controller at once
}

// MQTTConfig enables event publishing when Broker is set.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker" validate:"omitempty,url"`
	TopicPrefix string `mapstructure:"topic_prefix" validate:"required,excludesall=#+"`
}

// Load resolves the active profile of store.
func Load(ctx context.Context, store *db.DB) (*Config, error) {
	stored, err := store.ActiveConfig(ctx)
	if err != nil {
		return nil, err
	}

	settings := make(map[string]string, len(stored.Settings)+1)
	for k, v := range stored.Settings {
		settings[k] = v
	}
	settings["api.address"] = stored.APIAddress()

	cfg, err := FromSettings(settings)
	if err != nil {
		return nil, err
	}
	cfg.Profile = stored.Profile.Name
	return cfg, nil
}

// FromSettings resolves a flat settings map, applying built-in defaults for
// missing keys and environment overrides on top.
func FromSettings(settings map[string]string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.address", "0.0.0.0:8080")
	for k, val := range db.DefaultSettings {
		v.SetDefault(k, val)
	}
	for k, val := range settings {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LAN.Services = compact(cfg.LAN.Services)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("listen", listenAddress)
	return v
}

// listenAddress accepts host:port with an optional host and a port in 1-65535.
func listenAddress(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " /") {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}

// Validate checks cfg's struct tags and reports every failing field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
