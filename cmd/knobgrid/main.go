// KnobGrid Core - embedded device control daemon
//
// This is the main entry point for the KnobGrid Core application.
// KnobGrid fronts an embedded device's tunable parameters ("knobs") with
// a line-oriented command protocol served over serial, TCP, and MQTT,
// plus a read-only HTTP status API, mutation history, and telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/knobgrid/knobgrid-core/migrations"

	"github.com/knobgrid/knobgrid-core/internal/api"
	"github.com/knobgrid/knobgrid-core/internal/history"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/database"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/influxdb"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/mqtt"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
	"github.com/knobgrid/knobgrid-core/internal/transport"
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
	log.Info("starting KnobGrid Core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the knob grid. Cells are daemon-owned; an embedding host
	// would point these at its own parameter block instead.
	knobs := buildGrid(cfg.Protocol)

	registry, err := protocol.NewRegistry(knobs, cfg.Protocol.Channels, len(cfg.Protocol.Knobs))
	if err != nil {
		return fmt.Errorf("building knob registry: %w", err)
	}

	// Mutation history (optional)
	var historyRepo history.Repository
	var recorder *history.Recorder
	if cfg.History.Enabled {
		db, openErr := database.Open(cfg.History)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.History.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		historyRepo = history.NewSQLiteRepository(db)
		recorder = history.NewRecorder(historyRepo, cfg.History.GetRetention(), log)
		recorder.Start(ctx)
		defer recorder.Stop()
	} else {
		log.Info("mutation history disabled")
	}

	// InfluxDB telemetry (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Protocol engine with observers fanned out to history and telemetry
	deviceID := cfg.Device.ID
	engine, err := protocol.New(protocol.Config{
		Registry:      registry,
		Verbose:       cfg.Protocol.Verbose,
		MaxLineLen:    cfg.Protocol.MaxLineLength,
		ActiveChannel: cfg.Protocol.Active.Channel,
		ActiveIndex:   cfg.Protocol.Active.Knob,
		OnMutation: func(event protocol.MutationEvent) {
			if recorder != nil {
				recorder.Observe(event)
			}
			if influxClient != nil {
				influxClient.WriteMutation(deviceID, event)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("building protocol engine: %w", err)
	}
	log.Info("protocol engine ready",
		"channels", cfg.Protocol.Channels,
		"knobs_per_channel", len(cfg.Protocol.Knobs),
	)

	// Byte transports
	var wg sync.WaitGroup
	if cfg.Transports.Serial.Enabled {
		serial := transport.NewSerial(engine, cfg.Transports.Serial, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if runErr := serial.Run(ctx); runErr != nil {
				log.Error("serial transport stopped", "error", runErr)
			}
		}()
	} else {
		log.Info("serial transport disabled")
	}

	if cfg.Transports.TCP.Enabled {
		tcp := transport.NewTCP(engine, cfg.Transports.TCP, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if runErr := tcp.Run(ctx); runErr != nil {
				log.Error("tcp transport stopped", "error", runErr)
			}
		}()
	} else {
		log.Info("tcp transport disabled")
	}

	var mqttClient *mqtt.Client
	if cfg.Transports.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.Transports.MQTT, deviceID)
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
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Transports.MQTT.Broker.Host, cfg.Transports.MQTT.Broker.Port),
			"client_id", cfg.Transports.MQTT.Broker.ClientID,
		)

		bridge := transport.NewMQTTBridge(engine, mqttClient, deviceID, byte(cfg.Transports.MQTT.QoS), log)
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT transport: %w", startErr)
		}
		defer func() {
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Error("error stopping MQTT transport", "error", stopErr)
			}
		}()
	} else {
		log.Info("mqtt transport disabled")
	}

	// HTTP status API (optional)
	if cfg.API.Enabled {
		server, newErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Engine:   engine,
			History:  historyRepo,
			DeviceID: deviceID,
			Version:  version,
		})
		if newErr != nil {
			return fmt.Errorf("building API server: %w", newErr)
		}
		if startErr := server.Start(); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	wg.Wait()

	log.Info("KnobGrid Core stopped")
	return nil
}

// buildGrid expands the per-channel knob template across all channels in
// channel-major order and allocates a backing cell for each position. The
// cells stay alive through the knobs' value pointers.
func buildGrid(cfg config.ProtocolConfig) []protocol.Knob {
	total := cfg.Channels * len(cfg.Knobs)
	cells := make([]float64, total)
	knobs := make([]protocol.Knob, total)

	for ch := 0; ch < cfg.Channels; ch++ {
		for i, template := range cfg.Knobs {
			pos := ch*len(cfg.Knobs) + i
			cells[pos] = template.Initial
			knobs[pos] = protocol.Knob{
				Name:  template.Name,
				Unit:  template.Unit,
				Min:   template.Min,
				Max:   template.Max,
				Value: &cells[pos],
			}
		}
	}

	return knobs
}

// getConfigPath returns the configuration file path.
// Uses KNOBGRID_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KNOBGRID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
