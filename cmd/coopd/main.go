// coopd - Omlet smart coop daemon
//
// coopd manages one Omlet Autodoor: it logs in to the vendor cloud, polls
// the device on a fixed interval, caches the last-known state, and exposes
// it to the smart home over MQTT and a local HTTP API. Commands (door
// open/close, light on/off) flow the other way through the same cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/api"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/bridge"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/coop"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/config"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/database"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/influxdb"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/logging"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/mqtt"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting coopd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the credential cache database
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
	log.Info("database connected", "path", cfg.Database.Path)

	if setupErr := db.Setup(ctx); setupErr != nil {
		return fmt.Errorf("setting up database schema: %w", setupErr)
	}

	// Omlet cloud client
	client, err := omlet.New(omlet.Config{BaseURL: cfg.Omlet.APIURL})
	if err != nil {
		return fmt.Errorf("creating Omlet client: %w", err)
	}

	// Session manager with the SQLite-backed credential store
	store := session.NewSQLiteStore(db)
	manager := buildSessionManager(client, store, cfg)
	manager.SetLogger(log.With("component", "session"))

	if initErr := manager.Init(ctx); initErr != nil {
		return fmt.Errorf("initialising session: %w", initErr)
	}

	// Resolve the device selection before the poll loop starts. An
	// ambiguous account (0 or 2+ devices) is not fatal; the setup API
	// handles selection while the daemon idles.
	if manager.DeviceID() == "" {
		devices, discErr := manager.Discover(ctx)
		switch {
		case errors.Is(discErr, session.ErrAuthPermanentlyFailed):
			return fmt.Errorf("device discovery: %w", discErr)
		case discErr != nil:
			log.Warn("device discovery failed, will retry via setup API", "error", discErr)
		case manager.DeviceID() == "":
			log.Warn("no unambiguous device to select, waiting for setup",
				"devices_found", len(devices),
			)
		}
	}
	if id := manager.DeviceID(); id != "" {
		log.Info("device selected", "device_id", id)
	}

	// Poll cache and action coordinator
	coordinator := coop.NewCoordinator(client, manager, coop.Options{
		PollInterval:   cfg.Omlet.GetPollInterval(),
		LightEnabled:   cfg.Omlet.Features.Light,
		BatteryEnabled: cfg.Omlet.Features.Battery,
	})
	coordinator.SetLogger(log.With("component", "coordinator"))

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttBridge, bridgeErr := bridge.New(bridge.Options{
			Publisher:   mqttClient,
			Coordinator: coordinator,
			QoS:         byte(cfg.MQTT.QoS),
			Logger:      log.With("component", "bridge"),
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := mqttBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		coordinator.Subscribe(func(snap coop.Snapshot) {
			influxClient.WriteCoopState(snap.Serial,
				string(snap.DoorState),
				string(snap.LightState),
				snap.BatteryLevel,
			)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Local status/setup HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			Logger:      log.With("component", "api"),
			Coordinator: coordinator,
			Session:     manager,
			Devices:     client,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify infrastructure health before entering the poll loop
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, starting poll loop",
		"interval", cfg.Omlet.GetPollInterval(),
	)

	// The poll loop blocks until the shutdown signal cancels ctx
	coordinator.Run(ctx)

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (publishes graceful offline status)
	// 4. Database

	log.Info("coopd stopped")
	return nil
}

// buildSessionManager assembles the session manager from config.
func buildSessionManager(client *omlet.Client, store session.Store, cfg *config.Config) *session.Manager {
	var creds *omlet.Credentials
	if cfg.Omlet.HasCredentials() {
		creds = &omlet.Credentials{
			EmailAddress: cfg.Omlet.EmailAddress,
			Password:     cfg.Omlet.Password,
			CountryCode:  cfg.Omlet.CountryCode,
		}
	}

	return session.NewManager(client, store, session.Options{
		Credentials: creds,
		Token:       cfg.Omlet.Token,
		DeviceID:    cfg.Omlet.DeviceID,
	})
}

// getConfigPath returns the configuration file path.
// Uses OMLETCOOP_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("OMLETCOOP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
