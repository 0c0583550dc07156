package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const validConfig = `
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topics:
    - "sensors/#"
influx:
  url: "http://localhost:8086"
  token: "test-token"
  org: "streamflux"
  database: "metrics"
  measurement: "sensors"
  tags_keys: ["room"]
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if cfg.Influx.Measurement != "sensors" {
		t.Errorf("Influx.Measurement = %q, want %q", cfg.Influx.Measurement, "sensors")
	}
	if len(cfg.Influx.TagsKeys) != 1 || cfg.Influx.TagsKeys[0] != "room" {
		t.Errorf("Influx.TagsKeys = %v, want [room]", cfg.Influx.TagsKeys)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Influx.TimePrecision != "ms" {
		t.Errorf("TimePrecision = %q, want ms", cfg.Influx.TimePrecision)
	}
	if cfg.Influx.WriteChunkSize != 1000 {
		t.Errorf("WriteChunkSize = %d, want 1000", cfg.Influx.WriteChunkSize)
	}
	if !cfg.Influx.EnableGzip {
		t.Error("EnableGzip = false, want true by default")
	}
	if cfg.Influx.RequestTimeoutMS != 10000 {
		t.Errorf("RequestTimeoutMS = %d, want 10000", cfg.Influx.RequestTimeoutMS)
	}
	if cfg.Pipeline.CheckpointInterval != 5 {
		t.Errorf("CheckpointInterval = %d, want 5", cfg.Pipeline.CheckpointInterval)
	}
}

func TestLoad_GzipExplicitlyDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+"  enable_gzip: false\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Influx.EnableGzip {
		t.Error("EnableGzip = true, want false when explicitly disabled")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STREAMFLUX_INFLUX_TOKEN", "env-token")
	t.Setenv("STREAMFLUX_MQTT_HOST", "broker.example.com")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Influx.Token != "env-token" {
		t.Errorf("Influx.Token = %q, want env override", cfg.Influx.Token)
	}
	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
}

func TestValidate_InvalidPrecision(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"  time_precision: \"minutes\"\n"))
	if err == nil {
		t.Fatal("Load() should fail for invalid time_precision")
	}
	if !strings.Contains(err.Error(), "time_precision") {
		t.Errorf("error = %v, want mention of time_precision", err)
	}
}

func TestValidate_FieldTagOverlap(t *testing.T) {
	content := validConfig + "  fields_keys: [\"room\", \"temp\"]\n"
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() should fail when fields_keys and tags_keys overlap")
	}
	if !strings.Contains(err.Error(), "overlap") {
		t.Errorf("error = %v, want mention of overlap", err)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	content := `
mqtt:
  topics: ["sensors/#"]
influx:
  url: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() should fail with missing required influx settings")
	}
	for _, want := range []string{"influx.url", "influx.token", "influx.measurement"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %v, want mention of %s", err, want)
		}
	}
}

func TestValidate_NoTopics(t *testing.T) {
	content := strings.Replace(validConfig, "  topics:\n    - \"sensors/#\"\n", "", 1)
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() should fail without mqtt.topics")
	}
}

func TestValidate_BadQoS(t *testing.T) {
	content := strings.Replace(validConfig, "qos: 1", "qos: 7", 1)
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() should fail for qos outside 0-2")
	}
}

func TestGetCheckpointInterval(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetCheckpointInterval().Seconds(); got != 5 {
		t.Errorf("GetCheckpointInterval() = %vs, want 5s", got)
	}
}
