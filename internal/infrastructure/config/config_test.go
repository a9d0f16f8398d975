package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "hearth-test"
  topic_prefix: "smart_home"
  qos: 1
server:
  host: "0.0.0.0"
  port: 8000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.TopicPrefix != "smart_home" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "smart_home")
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal file: everything else should come from defaults.
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.MQTT.TopicPrefix != "smart_home" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "smart_home")
	}
	if cfg.MQTT.Broker.ClientID != "hearth-core" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "hearth-core")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.WebSocket.SendBuffer != 256 {
		t.Errorf("WebSocket.SendBuffer = %d, want 256", cfg.WebSocket.SendBuffer)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad qos", "mqtt:\n  qos: 7\n"},
		{"empty prefix", "mqtt:\n  topic_prefix: \"\"\n"},
		{"multi-segment prefix", "mqtt:\n  topic_prefix: \"smart/home\"\n"},
		{"bad port", "server:\n  port: 99999\n"},
		{"influx enabled without url", "influxdb:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Load() expected validation error, got nil")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HEARTH_MQTT_HOST", "env-broker")
	t.Setenv("HEARTH_MQTT_TOPIC_PREFIX", "env_home")
	t.Setenv("HEARTH_SERVER_PORT", "9001")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker:\n    host: file-broker\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "env-broker")
	}
	if cfg.MQTT.TopicPrefix != "env_home" {
		t.Errorf("MQTT.TopicPrefix = %q, want env override %q", cfg.MQTT.TopicPrefix, "env_home")
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want env override 9001", cfg.Server.Port)
	}
}
