// Streamflux - MQTT to InfluxDB delivery pipeline
//
// This is the main entry point for the Streamflux application. Streamflux
// consumes records from MQTT topics, batches them per topic-partition, and
// delivers them to InfluxDB with configurable field/tag mapping, honouring
// destination backpressure without dropping records.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/streamflux/streamflux-core/internal/infrastructure/config"
	"github.com/streamflux/streamflux-core/internal/infrastructure/deadletter"
	"github.com/streamflux/streamflux-core/internal/infrastructure/influxdb"
	"github.com/streamflux/streamflux-core/internal/infrastructure/logging"
	"github.com/streamflux/streamflux-core/internal/infrastructure/mqtt"
	"github.com/streamflux/streamflux-core/internal/pipeline"
	"github.com/streamflux/streamflux-core/internal/sink"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Streamflux",
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

	// Open dead-letter store (optional)
	var dlq *deadletter.Store
	dlq, err = deadletter.Open(ctx, cfg.Pipeline.DeadLetter)
	switch {
	case errors.Is(err, deadletter.ErrDisabled):
		log.Info("dead-letter store disabled")
		dlq = nil
	case err != nil:
		return fmt.Errorf("opening dead-letter store: %w", err)
	default:
		defer func() {
			log.Info("closing dead-letter store")
			if closeErr := dlq.Close(); closeErr != nil {
				log.Error("error closing dead-letter store", "error", closeErr)
			}
		}()
		log.Info("dead-letter store opened", "path", dlq.Path())
	}

	// Build the sink over the InfluxDB client. The connection itself is
	// established by Setup below.
	influxClient := influxdb.New(cfg.Influx)
	snk, err := sink.New(influxClient, sink.Config{
		Measurement:         sink.StaticMeasurement(cfg.Influx.Measurement),
		FieldsKeys:          sink.StaticKeys(cfg.Influx.FieldsKeys...),
		TagsKeys:            sink.StaticKeys(cfg.Influx.TagsKeys...),
		TimeKey:             cfg.Influx.TimeKey,
		TimePrecision:       sink.Precision(cfg.Influx.TimePrecision),
		AllowMissingFields:  cfg.Influx.AllowMissingFields,
		IncludeMetadataTags: cfg.Influx.IncludeMetadataTags,
		WriteChunkSize:      cfg.Influx.WriteChunkSize,
		OnConnectSuccess: func() {
			log.Info("InfluxDB connected",
				"url", cfg.Influx.URL,
				"org", cfg.Influx.Org,
				"database", cfg.Influx.Database,
			)
		},
	})
	if err != nil {
		return fmt.Errorf("building sink: %w", err)
	}
	snk.SetLogger(log)
	defer func() {
		log.Info("closing InfluxDB connection")
		if closeErr := snk.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()

	// Connect and probe authentication before consuming any records
	if err := snk.Setup(ctx); err != nil {
		return fmt.Errorf("sink setup: %w", err)
	}

	// Connect to MQTT broker and subscribe
	source, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	source.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topics", len(cfg.MQTT.Topics),
	)

	// Wire the pipeline
	p := pipeline.New(source, snk, pipeline.Config{
		CheckpointInterval: cfg.GetCheckpointInterval(),
	})
	p.SetLogger(log)
	if dlq != nil {
		p.SetDeadLetter(dlq)
	}
	log.Info("pipeline initialised",
		"pipeline_id", p.ID(),
		"checkpoint_interval", cfg.GetCheckpointInterval().String(),
	)

	// Run until the shutdown signal; Run performs the final flush itself.
	runErr := p.Run(ctx)

	// The source must stop before its records channel is torn down.
	log.Info("disconnecting from MQTT")
	if closeErr := source.Close(); closeErr != nil {
		log.Error("error closing MQTT", "error", closeErr)
	}

	if runErr != nil {
		return fmt.Errorf("pipeline: %w", runErr)
	}

	log.Info("Streamflux stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STREAMFLUX_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STREAMFLUX_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
