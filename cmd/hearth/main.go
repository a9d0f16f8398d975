// Hearth Core - home automation hub.
//
// Hearth ingests device telemetry over MQTT, reconciles it into a local
// SQLite registry, and fans live updates out to WebSocket subscribers. It
// also serves a REST API for device state, sensor history, commands and
// OTA firmware updates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearthlab/hearth-core/migrations"

	"github.com/hearthlab/hearth-core/internal/api"
	"github.com/hearthlab/hearth-core/internal/bridge"
	"github.com/hearthlab/hearth-core/internal/device"
	"github.com/hearthlab/hearth-core/internal/infrastructure/config"
	"github.com/hearthlab/hearth-core/internal/infrastructure/database"
	"github.com/hearthlab/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearthlab/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlab/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthlab/hearth-core/internal/ota"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	repo := device.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT client started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional telemetry sink)
	var influxClient *influxdb.Client
	var telemetry bridge.TelemetryWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// OTA firmware service
	otaService, err := ota.New(cfg.OTA, log)
	if err != nil {
		return fmt.Errorf("initialising OTA service: %w", err)
	}

	// Fan-out hub. Runs on its own context so it outlives the bridge:
	// its teardown defer is registered before the bridge's, which means
	// the bridge stops broadcasting before the hub disconnects clients.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := api.NewHub(cfg.WebSocket, nil, log)
	go hub.Run(hubCtx)

	// Event bridge: broker -> store -> hub fan-out. The hub relays
	// client commands back through the bridge, so it is attached after
	// construction.
	eventBridge := bridge.New(repo, mqttClient, hub, telemetry, log, bridge.Config{
		QoS: byte(cfg.MQTT.QoS),
	})
	hub.SetPublisher(eventBridge)

	server, err := api.New(api.Deps{
		Config:   cfg.Server,
		WS:       cfg.WebSocket,
		Logger:   log,
		Repo:     repo,
		Commands: eventBridge,
		OTA:      otaService,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(context.Background()); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := eventBridge.Start(context.Background()); err != nil {
		return fmt.Errorf("starting event bridge: %w", err)
	}
	defer func() {
		log.Info("stopping event bridge")
		if closeErr := eventBridge.Close(); closeErr != nil {
			log.Error("error closing bridge", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// bridge, API server, hub, InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path. Uses the
// HEARTH_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
