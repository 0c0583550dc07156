package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Streamflux.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Influx   InfluxConfig   `yaml:"influx"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings for the record source.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Topics    []string            `yaml:"topics"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxConfig contains the destination store connection and mapping
// settings. The mapping keys configured here are static; dynamic
// (per-record) mappings are wired in code via the sink setters.
type InfluxConfig struct {
	// URL is the InfluxDB host in the form "https://<host>".
	URL string `yaml:"url"`

	// Token is the InfluxDB access token. Prefer the STREAMFLUX_INFLUX_TOKEN
	// environment variable over placing it in the file.
	Token string `yaml:"token"`

	// Org is the InfluxDB organization ID.
	Org string `yaml:"org"`

	// Database is the destination database (bucket) name.
	Database string `yaml:"database"`

	// Measurement is the measurement points are written to.
	Measurement string `yaml:"measurement"`

	// FieldsKeys are the record keys written as fields. Empty means the
	// whole record value (minus tags) becomes the field set. Must not
	// overlap with TagsKeys.
	FieldsKeys []string `yaml:"fields_keys"`

	// TagsKeys are the record keys written as tags. Extracted keys are
	// removed from the value before field selection.
	TagsKeys []string `yaml:"tags_keys"`

	// TimeKey names the record key holding the point timestamp. Empty means
	// the record's own timestamp is used.
	TimeKey string `yaml:"time_key"`

	// TimePrecision is one of "ms", "ns", "us", "s".
	TimePrecision string `yaml:"time_precision"`

	// AllowMissingFields skips absent field keys instead of failing the batch.
	AllowMissingFields bool `yaml:"allow_missing_fields"`

	// IncludeMetadataTags adds __key, __topic, and __partition tags to every point.
	IncludeMetadataTags bool `yaml:"include_metadata_tags"`

	// WriteChunkSize caps the number of points per write request.
	WriteChunkSize int `yaml:"write_chunk_size"`

	// EnableGzip compresses write request bodies.
	EnableGzip bool `yaml:"enable_gzip"`

	// RequestTimeoutMS is the HTTP request timeout in milliseconds.
	RequestTimeoutMS int `yaml:"request_timeout_ms"`

	// Debug enables the InfluxDB client's debug logging.
	Debug bool `yaml:"debug"`
}

// PipelineConfig contains checkpointing and dead-letter settings.
type PipelineConfig struct {
	// CheckpointInterval is the seconds between sink flushes.
	CheckpointInterval int `yaml:"checkpoint_interval"`

	// DeadLetter configures the SQLite store for unprocessable records.
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
}

// DeadLetterConfig contains dead-letter store settings.
type DeadLetterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings. When Path is set,
// log output goes to a size-rotated file instead of stdout/stderr.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// validPrecisions are the accepted time_precision values.
var validPrecisions = map[string]bool{
	"ms": true,
	"ns": true,
	"us": true,
	"s":  true,
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STREAMFLUX_SECTION_KEY
// For example: STREAMFLUX_INFLUX_TOKEN, STREAMFLUX_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "streamflux",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Influx: InfluxConfig{
			TimePrecision:    "ms",
			WriteChunkSize:   1000,
			EnableGzip:       true,
			RequestTimeoutMS: 10000,
		},
		Pipeline: PipelineConfig{
			CheckpointInterval: 5,
			DeadLetter: DeadLetterConfig{
				Path:        "./data/deadletter.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STREAMFLUX_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("STREAMFLUX_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STREAMFLUX_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STREAMFLUX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Influx - token should come from the environment in production
	if v := os.Getenv("STREAMFLUX_INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("STREAMFLUX_INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("STREAMFLUX_INFLUX_ORG"); v != "" {
		cfg.Influx.Org = v
	}
	if v := os.Getenv("STREAMFLUX_INFLUX_DATABASE"); v != "" {
		cfg.Influx.Database = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if len(c.MQTT.Topics) == 0 {
		errs = append(errs, "mqtt.topics requires at least one topic")
	}

	// Influx validation
	if c.Influx.URL == "" {
		errs = append(errs, "influx.url is required")
	}
	if c.Influx.Token == "" {
		errs = append(errs, "influx.token is required (set STREAMFLUX_INFLUX_TOKEN environment variable)")
	}
	if c.Influx.Org == "" {
		errs = append(errs, "influx.org is required")
	}
	if c.Influx.Database == "" {
		errs = append(errs, "influx.database is required")
	}
	if c.Influx.Measurement == "" {
		errs = append(errs, "influx.measurement is required")
	}
	if !validPrecisions[c.Influx.TimePrecision] {
		errs = append(errs, fmt.Sprintf("influx.time_precision %q is invalid (valid: ms, ns, us, s)", c.Influx.TimePrecision))
	}
	if c.Influx.WriteChunkSize < 1 {
		errs = append(errs, "influx.write_chunk_size must be at least 1")
	}
	if c.Influx.RequestTimeoutMS < 1 {
		errs = append(errs, "influx.request_timeout_ms must be at least 1")
	}
	if overlap := keyOverlap(c.Influx.FieldsKeys, c.Influx.TagsKeys); len(overlap) > 0 {
		errs = append(errs, fmt.Sprintf("influx.fields_keys and influx.tags_keys overlap: %s", strings.Join(overlap, ",")))
	}

	// Pipeline validation
	if c.Pipeline.CheckpointInterval < 1 {
		errs = append(errs, "pipeline.checkpoint_interval must be at least 1 second")
	}
	if c.Pipeline.DeadLetter.Enabled && c.Pipeline.DeadLetter.Path == "" {
		errs = append(errs, "pipeline.dead_letter.path is required when dead-lettering is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// keyOverlap returns the keys present in both lists.
func keyOverlap(fields, tags []string) []string {
	tagSet := make(map[string]bool, len(tags))
	for _, k := range tags {
		tagSet[k] = true
	}
	var overlap []string
	for _, k := range fields {
		if tagSet[k] {
			overlap = append(overlap, k)
		}
	}
	return overlap
}

// GetCheckpointInterval returns the checkpoint interval as a Duration.
func (c *Config) GetCheckpointInterval() time.Duration {
	return time.Duration(c.Pipeline.CheckpointInterval) * time.Second
}

// GetRequestTimeout returns the Influx request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Influx.RequestTimeoutMS) * time.Millisecond
}
