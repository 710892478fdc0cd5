package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for KnobGrid Core.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Protocol   ProtocolConfig   `yaml:"protocol"`
	Transports TransportsConfig `yaml:"transports"`
	History    HistoryConfig    `yaml:"history"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DeviceConfig identifies the physical device this daemon fronts.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ProtocolConfig describes the knob grid and the engine's wire behaviour.
type ProtocolConfig struct {
	// Verbose enables the "Msg: " diagnostic lines intended for humans.
	Verbose bool `yaml:"verbose"`

	// MaxLineLength bounds extended-mode command lines in bytes.
	MaxLineLength int `yaml:"max_line_length"`

	// Channels is the number of channels; every channel carries one
	// instance of each configured knob.
	Channels int `yaml:"channels"`

	// Active seeds the initially active knob.
	Active ActiveConfig `yaml:"active"`

	// Knobs is the per-channel knob template, in letter order (the first
	// entry is knob A).
	Knobs []KnobConfig `yaml:"knobs"`
}

// ActiveConfig selects a grid position.
type ActiveConfig struct {
	Channel int `yaml:"channel"`
	Knob    int `yaml:"knob"`
}

// KnobConfig describes one knob of the per-channel template.
type KnobConfig struct {
	Name    string  `yaml:"name"`
	Unit    string  `yaml:"unit"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Initial float64 `yaml:"initial"`
}

// TransportsConfig groups the byte transports that feed the engine.
type TransportsConfig struct {
	Serial SerialConfig `yaml:"serial"`
	TCP    TCPConfig    `yaml:"tcp"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// SerialConfig contains serial port settings.
type SerialConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`

	// ReconnectDelay is the pause in seconds before reopening the port
	// after a read failure.
	ReconnectDelay int `yaml:"reconnect_delay"`
}

// TCPConfig contains the TCP line service settings.
type TCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// MQTTReconnectConfig controls reconnection backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HistoryConfig contains mutation history settings (SQLite).
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// WALMode enables Write-Ahead Logging for concurrent reads.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int `yaml:"busy_timeout"`

	// RetentionDays bounds how long mutation entries are kept; older
	// entries are pruned periodically. Zero disables pruning.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains knob telemetry settings.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`

	// BatchSize is the number of points batched before a write.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the batch flush interval in seconds.
	FlushInterval int `yaml:"flush_interval"`
}

// APIConfig contains the read-only HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	Format string `yaml:"format"`

	// Output is the destination: stdout or stderr.
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KNOBGRID_SECTION_KEY
// For example: KNOBGRID_HISTORY_PATH, KNOBGRID_MQTT_HOST
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "knobgrid-001",
			Name: "KnobGrid",
		},
		Protocol: ProtocolConfig{
			Verbose:       true,
			MaxLineLength: 256,
			Channels:      1,
		},
		Transports: TransportsConfig{
			Serial: SerialConfig{
				Port:           "/dev/ttyACM0",
				BaudRate:       115200,
				ReconnectDelay: 2,
			},
			TCP: TCPConfig{
				Host: "0.0.0.0",
				Port: 5333,
			},
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{
					Host:     "localhost",
					Port:     1883,
					ClientID: "knobgrid-core",
				},
				QoS: 1,
				Reconnect: MQTTReconnectConfig{
					InitialDelay: 1,
					MaxDelay:     60,
				},
			},
		},
		History: HistoryConfig{
			Path:          "./data/knobgrid.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern:
// KNOBGRID_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KNOBGRID_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	if v := os.Getenv("KNOBGRID_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	if v := os.Getenv("KNOBGRID_SERIAL_PORT"); v != "" {
		cfg.Transports.Serial.Port = v
	}

	if v := os.Getenv("KNOBGRID_MQTT_HOST"); v != "" {
		cfg.Transports.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KNOBGRID_MQTT_USERNAME"); v != "" {
		cfg.Transports.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KNOBGRID_MQTT_PASSWORD"); v != "" {
		cfg.Transports.MQTT.Auth.Password = v
	}

	if v := os.Getenv("KNOBGRID_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("KNOBGRID_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("KNOBGRID_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.Protocol.Channels < 1 {
		errs = append(errs, "protocol.channels must be at least 1")
	}
	if len(c.Protocol.Knobs) == 0 {
		errs = append(errs, "protocol.knobs must define at least one knob")
	}
	if len(c.Protocol.Knobs) > 26 {
		errs = append(errs, "protocol.knobs cannot exceed 26 entries (knobs are addressed A-Z)")
	}
	if c.Protocol.MaxLineLength < 8 {
		errs = append(errs, "protocol.max_line_length must be at least 8")
	}
	for i, k := range c.Protocol.Knobs {
		if k.Name == "" {
			errs = append(errs, fmt.Sprintf("protocol.knobs[%d].name is required", i))
		}
		if k.Min > k.Max {
			errs = append(errs, fmt.Sprintf("protocol.knobs[%d] has min > max", i))
		}
	}

	if c.Transports.MQTT.QoS < 0 || c.Transports.MQTT.QoS > 2 {
		errs = append(errs, "transports.mqtt.qos must be 0, 1, or 2")
	}
	if c.Transports.TCP.Enabled && (c.Transports.TCP.Port < 1 || c.Transports.TCP.Port > 65535) {
		errs = append(errs, "transports.tcp.port must be between 1 and 65535")
	}
	if c.Transports.Serial.Enabled && c.Transports.Serial.Port == "" {
		errs = append(errs, "transports.serial.port is required when serial is enabled")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required (set KNOBGRID_INFLUXDB_TOKEN)")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// GetReconnectDelay returns the serial reconnect delay as a Duration.
func (c *SerialConfig) GetReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Second
}

// GetRetention returns the history retention window as a Duration.
func (c *HistoryConfig) GetRetention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
