package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/config"
	"github.com/urmzd/homai-hub/pkg/db"
	"github.com/urmzd/homai-hub/pkg/hub"
	homaimcp "github.com/urmzd/homai-hub/pkg/mcp"
)

var version = "dev"

func main() {
	// Logging must go to stderr, stdout is the MCP transport
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/homai-hub/hub.db)")
	flag.Parse()

	ctx := context.Background()

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

	// No metrics endpoint on stdio; the manager's recorders are nil-safe.
	manager, err := hub.NewManager(cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create integration manager")
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down controllers")
		}
	}()

	stopPublisher, err := hub.StartPublisher(ctx, cfg.MQTT, manager, nil)
	if err != nil {
		log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT publishing disabled")
		stopPublisher = func() {}
	}
	defer stopPublisher()

	if err := manager.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize controllers")
	}
	go func() {
		if _, err := manager.DiscoverDevices(ctx); err != nil {
			log.Warn().Err(err).Msg("Startup discovery incomplete")
		}
	}()

	mcpServer := homaimcp.NewServer(manager, version)

	log.Info().Str("profile", cfg.Profile).Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
	}
}
