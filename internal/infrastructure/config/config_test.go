package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// writeConfig writes a config file into a temp dir and returns its path.
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
omlet:
  email_address: "coop@example.com"
  password: "hunter2"
  country_code: "GB"
  poll_interval: 60
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Omlet.EmailAddress != "coop@example.com" {
		t.Errorf("Omlet.EmailAddress = %q, want %q", cfg.Omlet.EmailAddress, "coop@example.com")
	}
	if !cfg.Omlet.HasCredentials() {
		t.Error("HasCredentials() = false, want true")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
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

func TestLoad_PollIntervalClamping(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		want     int
	}{
		{"below minimum clamps up", 5, MinPollInterval},
		{"above maximum clamps down", 10000, MaxPollInterval},
		{"in range unchanged", 120, 120},
		{"at minimum unchanged", 30, 30},
		{"at maximum unchanged", 300, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `
omlet:
  token: "manual-token"
  poll_interval: ` + strconv.Itoa(tt.interval) + `
`
			cfg, err := Load(writeConfig(t, content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Omlet.PollInterval != tt.want {
				t.Errorf("PollInterval = %d, want %d", cfg.Omlet.PollInterval, tt.want)
			}
		})
	}
}

func TestValidate_PartialCredentials(t *testing.T) {
	content := `
omlet:
  email_address: "coop@example.com"
  password: ""
  country_code: "GB"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for partial credentials, got nil")
	}
}

func TestValidate_NoCredentialsNoToken(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error when neither credentials nor token set, got nil")
	}
}

func TestValidate_BadCountryCode(t *testing.T) {
	content := `
omlet:
  email_address: "coop@example.com"
  password: "hunter2"
  country_code: "GBR"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for 3-letter country code, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OMLETCOOP_OMLET_PASSWORD", "from-env")
	t.Setenv("OMLETCOOP_DATABASE_PATH", "/tmp/env.db")

	content := `
omlet:
  email_address: "coop@example.com"
  password: "from-file"
  country_code: "GB"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Omlet.Password != "from-env" {
		t.Errorf("Password = %q, want env override", cfg.Omlet.Password)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
omlet:
  token: "manual-token"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Omlet.APIURL == "" {
		t.Error("default APIURL is empty")
	}
	if cfg.Omlet.PollInterval != 60 {
		t.Errorf("default PollInterval = %d, want 60", cfg.Omlet.PollInterval)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
}
