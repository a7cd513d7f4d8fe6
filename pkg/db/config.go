package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveProfile = errors.New("no active profile found")

// Config is the stored configuration of the active profile.
type Config struct {
	Profile   *Profile
	APIServer *APIServer
	Settings  map[string]string
}

// APIAddress returns the REST listen address.
func (c *Config) APIAddress() string {
	if c.APIServer == nil {
		return "0.0.0.0:8080"
	}
	return c.APIServer.Address()
}

// ActiveConfig loads the active profile with its listener and settings.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrNoActiveProfile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	cfg := &Config{Profile: profile}

	cfg.APIServer, err = db.APIServers().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrAPIServerNotFound) {
		return nil, fmt.Errorf("failed to get API server config: %w", err)
	}

	cfg.Settings, err = db.Settings().All(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return cfg, nil
}
