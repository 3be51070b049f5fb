package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Poll interval clamp bounds (seconds).
//
// The Omlet cloud rate-limits aggressive pollers and the door takes several
// seconds to actuate, so there is no value in polling faster than 30s.
// The upper bound keeps the cached state from going badly stale.
const (
	MinPollInterval = 30
	MaxPollInterval = 300
)

// Config is the root configuration structure for the coop daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Omlet    OmletConfig    `yaml:"omlet"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// OmletConfig contains the Omlet cloud account and device settings.
type OmletConfig struct {
	// APIURL is the base URL of the Omlet cloud API.
	APIURL string `yaml:"api_url"`

	// EmailAddress, Password and CountryCode are the account credentials.
	// All three must be set together, or all left empty (manual-token mode).
	EmailAddress string `yaml:"email_address"`
	Password     string `yaml:"password"`
	CountryCode  string `yaml:"country_code"`

	// DeviceID pins the daemon to a known device. Leave empty to auto-discover.
	DeviceID string `yaml:"device_id"`

	// Token is a manually supplied bearer token. Only useful without
	// credentials; a stored token from a previous login takes priority.
	Token string `yaml:"token"`

	// PollInterval is the background refresh interval in seconds.
	// Clamped to [MinPollInterval, MaxPollInterval].
	PollInterval int `yaml:"poll_interval"`

	Features FeaturesConfig `yaml:"features"`
}

// FeaturesConfig toggles optional device capabilities.
// Older Autodoor hardware has no light or battery reporting.
type FeaturesConfig struct {
	Light   bool `yaml:"light"`
	Battery bool `yaml:"battery"`
}

// DatabaseConfig contains SQLite database settings for the credential cache.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the
// smart-home bridge. Disabled by default.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
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

// InfluxDBConfig contains InfluxDB connection settings for optional
// door/battery telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains settings for the local status/setup HTTP server.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OMLETCOOP_SECTION_KEY
// For example: OMLETCOOP_OMLET_PASSWORD, OMLETCOOP_MQTT_HOST
//
// The poll interval is clamped to [MinPollInterval, MaxPollInterval] rather
// than rejected: a misconfigured interval should degrade, not stop the daemon.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.clampPollInterval()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Omlet: OmletConfig{
			APIURL:       "https://x107.omlet.co.uk/api/v1",
			PollInterval: 60,
			Features: FeaturesConfig{
				Light:   true,
				Battery: true,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/omletcoop.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "omletcoop",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8321,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
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
// Environment variables follow the pattern: OMLETCOOP_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Omlet account (secrets belong in the environment, not on disk)
	if v := os.Getenv("OMLETCOOP_OMLET_EMAIL"); v != "" {
		cfg.Omlet.EmailAddress = v
	}
	if v := os.Getenv("OMLETCOOP_OMLET_PASSWORD"); v != "" {
		cfg.Omlet.Password = v
	}
	if v := os.Getenv("OMLETCOOP_OMLET_TOKEN"); v != "" {
		cfg.Omlet.Token = v
	}
	if v := os.Getenv("OMLETCOOP_OMLET_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Omlet.PollInterval = n
		}
	}

	// Database
	if v := os.Getenv("OMLETCOOP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("OMLETCOOP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OMLETCOOP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OMLETCOOP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("OMLETCOOP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// clampPollInterval forces the poll interval into the allowed range.
func (c *Config) clampPollInterval() {
	if c.Omlet.PollInterval < MinPollInterval {
		c.Omlet.PollInterval = MinPollInterval
	}
	if c.Omlet.PollInterval > MaxPollInterval {
		c.Omlet.PollInterval = MaxPollInterval
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Omlet validation
	if c.Omlet.APIURL == "" {
		errs = append(errs, "omlet.api_url is required")
	}

	// Credentials are all-or-nothing. A partial set would pass startup and
	// then fail every re-login, which is the worst place to find out.
	hasAny := c.Omlet.EmailAddress != "" || c.Omlet.Password != "" || c.Omlet.CountryCode != ""
	hasAll := c.Omlet.HasCredentials()
	if hasAny && !hasAll {
		errs = append(errs, "omlet: email_address, password and country_code must all be set together")
	}
	if !hasAny && c.Omlet.Token == "" {
		errs = append(errs, "omlet: either account credentials or a manual token is required")
	}
	if c.Omlet.CountryCode != "" && len(c.Omlet.CountryCode) != 2 {
		errs = append(errs, "omlet.country_code must be a 2-letter ISO code")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HasCredentials reports whether a full set of account credentials is configured.
func (c *OmletConfig) HasCredentials() bool {
	return c.EmailAddress != "" && c.Password != "" && c.CountryCode != ""
}

// GetPollInterval returns the poll interval as a Duration.
func (c *OmletConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
