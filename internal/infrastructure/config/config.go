package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for chroma-sync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Engine    EngineConfig    `yaml:"engine"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Power     PowerConfig     `yaml:"power"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AppConfig holds the first-run values of the persisted settings record.
// Once the settings store holds a record these are ignored.
type AppConfig struct {
	BroadcastAppID string `yaml:"broadcast_app_id"`
	SyncEnabled    bool   `yaml:"sync_enabled"`
	RunAtBoot      bool   `yaml:"run_at_boot"`
}

// EngineConfig tunes the device worker queues.
type EngineConfig struct {
	// DeviceTimeout bounds a single device operation, in milliseconds.
	DeviceTimeout int `yaml:"device_timeout"`

	// ShutdownGrace bounds how long shutdown waits for device queues to drain, in seconds.
	ShutdownGrace int `yaml:"shutdown_grace"`

	// QueueWarnDepth logs a warning when a device queue grows past this many operations.
	QueueWarnDepth int `yaml:"queue_warn_depth"`

	// MaxOpsPerSecond paces each device worker. 0 disables pacing.
	MaxOpsPerSecond float64 `yaml:"max_ops_per_second"`
	Burst           int     `yaml:"burst"`
}

// BroadcastConfig selects the broadcast feed adapter.
type BroadcastConfig struct {
	// Source is one of "chroma", "mqtt", "none".
	Source string `yaml:"source"`

	// ColorPolicy decides what happens to out-of-range channel values
	// arriving from loosely typed sources: "clamp" or "reject".
	ColorPolicy string `yaml:"color_policy"`

	// DLL overrides the broadcast SDK library name.
	DLL string `yaml:"dll"`

	// EventBuffer is the capacity of the router's inbound event channel.
	EventBuffer int `yaml:"event_buffer"`
}

// PowerConfig selects the power notification adapter.
type PowerConfig struct {
	// Source is one of "auto", "windows", "logind", "mqtt", "none".
	Source string `yaml:"source"`
}

// ScheduleConfig holds optional cron specs for toggling sync.
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Enable   string `yaml:"enable"`
	Disable  string `yaml:"disable"`
	Timezone string `yaml:"timezone"`
}

// DiscoveryConfig controls mDNS discovery of network LED controllers.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"`
}

// DeviceConfig is the YAML form of a device instance. It seeds the
// device table on first run.
type DeviceConfig struct {
	ID       string                `yaml:"id"`
	Name     string                `yaml:"name"`
	Kind     string                `yaml:"kind"`
	Keyboard *KeyboardDeviceConfig `yaml:"keyboard,omitempty"`
	WLED     *WLEDDeviceConfig     `yaml:"wled,omitempty"`
}

// KeyboardDeviceConfig contains HID keyboard connection settings.
type KeyboardDeviceConfig struct {
	Path       string `yaml:"path"`
	VendorID   uint16 `yaml:"vendor_id"`
	ProductID  uint16 `yaml:"product_id"`
	Brightness int    `yaml:"brightness"`
	ZoneMap    []int  `yaml:"zone_map"`
}

// WLEDDeviceConfig contains network LED controller settings.
type WLEDDeviceConfig struct {
	Host            string `yaml:"host"`
	HTTPPort        int    `yaml:"http_port"`
	UDPPort         int    `yaml:"udp_port"`
	LEDCount        int    `yaml:"led_count"`
	RealtimeTimeout int    `yaml:"realtime_timeout"`
	Segments        []int  `yaml:"segments"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP control API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket hub settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: CHROMASYNC_SECTION_KEY
// For example: CHROMASYNC_DATABASE_PATH, CHROMASYNC_API_PORT
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DeviceTimeout:  2000,
			ShutdownGrace:  5,
			QueueWarnDepth: 256,
			Burst:          1,
		},
		Broadcast: BroadcastConfig{
			Source:      "chroma",
			ColorPolicy: "clamp",
			DLL:         "RzChromaBroadcastAPI64.dll",
			EventBuffer: 64,
		},
		Power: PowerConfig{
			Source: "auto",
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Timeout: 3,
		},
		Database: DatabaseConfig{
			Path:        "./data/chromasync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "chromasync",
			},
			QoS:         1,
			TopicPrefix: "chromasync",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8321,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CHROMASYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHROMASYNC_APP_ID"); v != "" {
		cfg.App.BroadcastAppID = v
	}
	if v := os.Getenv("CHROMASYNC_BROADCAST_SOURCE"); v != "" {
		cfg.Broadcast.Source = v
	}
	if v := os.Getenv("CHROMASYNC_POWER_SOURCE"); v != "" {
		cfg.Power.Source = v
	}

	if v := os.Getenv("CHROMASYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("CHROMASYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CHROMASYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CHROMASYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("CHROMASYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CHROMASYNC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("CHROMASYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("CHROMASYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Broadcast.Source {
	case "chroma", "mqtt", "none":
	default:
		errs = append(errs, "broadcast.source must be chroma, mqtt or none")
	}
	switch c.Broadcast.ColorPolicy {
	case "clamp", "reject":
	default:
		errs = append(errs, "broadcast.color_policy must be clamp or reject")
	}
	if c.Broadcast.EventBuffer < 1 {
		errs = append(errs, "broadcast.event_buffer must be at least 1")
	}

	switch c.Power.Source {
	case "auto", "windows", "logind", "mqtt", "none":
	default:
		errs = append(errs, "power.source must be auto, windows, logind, mqtt or none")
	}

	if (c.Broadcast.Source == "mqtt" || c.Power.Source == "mqtt") && !c.MQTT.Enabled {
		errs = append(errs, "mqtt.enabled is required when an mqtt source is selected")
	}

	if c.Engine.DeviceTimeout <= 0 {
		errs = append(errs, "engine.device_timeout must be positive")
	}
	if c.Engine.ShutdownGrace < 0 {
		errs = append(errs, "engine.shutdown_grace must not be negative")
	}
	if c.Engine.MaxOpsPerSecond < 0 {
		errs = append(errs, "engine.max_ops_per_second must not be negative")
	}

	if c.Schedule.Enabled && c.Schedule.Enable == "" && c.Schedule.Disable == "" {
		errs = append(errs, "schedule.enable or schedule.disable is required when schedule.enabled is set")
	}

	ids := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID != "" {
			if ids[d.ID] {
				errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
			}
			ids[d.ID] = true
		}
		switch d.Kind {
		case "keyboard":
			if d.Keyboard == nil {
				errs = append(errs, fmt.Sprintf("devices[%d].keyboard is required for kind keyboard", i))
			}
		case "wled":
			if d.WLED == nil || d.WLED.Host == "" {
				errs = append(errs, fmt.Sprintf("devices[%d].wled.host is required for kind wled", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].kind must be keyboard or wled", i))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DeviceTimeout returns the per-operation device timeout as a Duration.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.Engine.DeviceTimeout) * time.Millisecond
}

// ShutdownGrace returns the shutdown drain bound as a Duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Engine.ShutdownGrace) * time.Second
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
