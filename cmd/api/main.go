package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/api"
	"github.com/urmzd/homai-hub/pkg/config"
	"github.com/urmzd/homai-hub/pkg/db"
	"github.com/urmzd/homai-hub/pkg/hub"
	"github.com/urmzd/homai-hub/pkg/metrics"

	_ "github.com/urmzd/homai-hub/docs"
)

// @title           Homai Hub API
// @version         1.0
// @description     REST API for discovering and controlling devices across Zigbee, Z-Wave, Hue, WeMo and LAN protocols

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/homai-hub/hub.db)")
	discover := flag.Bool("discover", true, "Run a discovery pass at startup")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenAndMigrate(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()
	log.Info().Str("path", database.Path()).Msg("Database opened")

	cfg, err := config.Load(ctx, database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().
		Str("profile", cfg.Profile).
		Str("api_address", cfg.API.Address).
		Msg("Configuration loaded")

	reg := metrics.NewRegistry(nil)
	manager, err := hub.NewManager(cfg, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create integration manager")
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down controllers")
		}
	}()

	stopPublisher, err := hub.StartPublisher(ctx, cfg.MQTT, manager, reg)
	if err != nil {
		log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT publishing disabled")
		stopPublisher = func() {}
	}
	defer stopPublisher()

	if err := manager.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize controllers")
	}
	if *discover {
		go func() {
			devices, err := manager.DiscoverDevices(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Startup discovery incomplete")
			}
			log.Info().Int("devices", len(devices)).Msg("Startup discovery finished")
		}()
	}

	router := api.NewRouter(manager, database, reg)

	log.Info().Str("address", cfg.API.Address).Msg("Starting API server")
	if err := router.Run(ctx, cfg.API.Address); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Shutting down...")
}
