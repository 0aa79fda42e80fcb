package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-bthome/internal/ble"
	"github.com/nerrad567/gray-logic-bthome/internal/homie"
)

// Config is the root configuration structure for the BTHome bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Homie       HomieConfig       `yaml:"homie"`
	BLE         BLEConfig         `yaml:"ble"`
	Zigbee2MQTT Zigbee2MQTTConfig `yaml:"zigbee2mqtt"`
	Inspector   InspectorConfig   `yaml:"inspector"`
	Health      HealthConfig      `yaml:"health"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// MaxInflight bounds concurrent unacknowledged publishes per connection.
	// Publishers block once the limit is reached.
	MaxInflight int `yaml:"max_inflight"`
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

// HomieConfig controls how devices are published.
type HomieConfig struct {
	// BaseTopic is the root of every device topic. Default: "homie".
	BaseTopic string `yaml:"base_topic"`

	// ClientIDPrefix is joined to each device id to form its MQTT client id.
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// BLEConfig contains the BTHome scanner settings.
type BLEConfig struct {
	Enabled bool `yaml:"enabled"`

	// HCIDevice selects the adapter (hciN).
	HCIDevice int `yaml:"hci_device"`

	// QueueSize is the per-peripheral advertisement queue length.
	QueueSize int `yaml:"queue_size"`

	// MinInterval drops advertisements that arrive faster than this from one
	// peripheral. Zero disables throttling.
	MinInterval time.Duration `yaml:"min_interval"`

	// AllowUnknown publishes peripherals that are not listed in Devices
	// under a generated id.
	AllowUnknown bool `yaml:"allow_unknown"`

	// Devices maps known peripherals to stable ids and names.
	Devices []BLEDeviceConfig `yaml:"devices"`
}

// BLEDeviceConfig is one statically configured peripheral.
type BLEDeviceConfig struct {
	Address string `yaml:"address"`
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
}

// Zigbee2MQTTConfig contains the zigbee2mqtt ingestion settings.
type Zigbee2MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseTopic string `yaml:"base_topic"`
}

// InspectorConfig contains topic-tree inspector settings.
type InspectorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Topics are the subscription filters. Default: the homie base topic
	// and the zigbee2mqtt base topic.
	Topics []string `yaml:"topics"`

	// MaxTopics caps the number of leaf topics kept in memory.
	MaxTopics int `yaml:"max_topics"`
}

// HealthConfig contains bridge health reporting settings.
type HealthConfig struct {
	// Interval between health publishes.
	Interval time.Duration `yaml:"interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the topic browser from disk instead of the embedded
	// copy. Empty uses the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: BTHOME_SECTION_KEY
// For example: BTHOME_MQTT_HOST, BTHOME_API_PORT
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
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bthome-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			MaxInflight: 64,
		},
		Homie: HomieConfig{
			BaseTopic:      homie.DefaultBaseTopic,
			ClientIDPrefix: "bthome",
		},
		BLE: BLEConfig{
			Enabled:     true,
			QueueSize:   16,
			MinInterval: time.Second,
		},
		Zigbee2MQTT: Zigbee2MQTTConfig{
			BaseTopic: "zigbee2mqtt",
		},
		Inspector: InspectorConfig{
			Enabled:   true,
			MaxTopics: 10000,
		},
		Health: HealthConfig{
			Interval: 30 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BTHOME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("BTHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BTHOME_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("BTHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BTHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// BLE
	if v := os.Getenv("BTHOME_BLE_HCI_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BLE.HCIDevice = n
		}
	}

	// API
	if v := os.Getenv("BTHOME_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("BTHOME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BTHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is reported, not just the first one.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.MaxInflight < 1 {
		errs = append(errs, "mqtt.max_inflight must be at least 1")
	}

	// Homie validation
	if c.Homie.BaseTopic == "" || strings.ContainsAny(c.Homie.BaseTopic, "+#") {
		errs = append(errs, "homie.base_topic must be non-empty and contain no wildcards")
	}
	if c.Homie.ClientIDPrefix == "" {
		errs = append(errs, "homie.client_id_prefix is required")
	}

	// BLE validation
	if c.BLE.Enabled {
		errs = append(errs, c.BLE.validate()...)
	}

	if c.Zigbee2MQTT.Enabled && c.Zigbee2MQTT.BaseTopic == "" {
		errs = append(errs, "zigbee2mqtt.base_topic is required when enabled")
	}

	if c.Health.Interval <= 0 {
		errs = append(errs, "health.interval must be positive")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (b BLEConfig) validate() []string {
	var errs []string

	if b.QueueSize < 1 {
		errs = append(errs, "ble.queue_size must be at least 1")
	}
	if b.MinInterval < 0 {
		errs = append(errs, "ble.min_interval must not be negative")
	}

	addresses := make(map[string]struct{}, len(b.Devices))
	ids := make(map[string]struct{}, len(b.Devices))
	for i, d := range b.Devices {
		addr := ble.NormalizeAddress(d.Address)
		if addr == "" {
			errs = append(errs, fmt.Sprintf("ble.devices[%d].address is required", i))
		} else if _, dup := addresses[addr]; dup {
			errs = append(errs, fmt.Sprintf("ble.devices[%d].address %q is duplicated", i, d.Address))
		}
		addresses[addr] = struct{}{}

		if !homie.ValidID(d.ID) {
			errs = append(errs, fmt.Sprintf("ble.devices[%d].id %q must be lowercase letters, digits and inner hyphens", i, d.ID))
		} else if _, dup := ids[d.ID]; dup {
			errs = append(errs, fmt.Sprintf("ble.devices[%d].id %q is duplicated", i, d.ID))
		}
		ids[d.ID] = struct{}{}
	}

	if len(b.Devices) == 0 && !b.AllowUnknown {
		errs = append(errs, "ble.devices is empty and ble.allow_unknown is false; nothing would be published")
	}

	return errs
}

// InspectorTopics returns the inspector subscription filters, defaulting to
// everything under the homie base topic and, when enabled, zigbee2mqtt.
func (c *Config) InspectorTopics() []string {
	if len(c.Inspector.Topics) > 0 {
		return c.Inspector.Topics
	}
	topics := []string{c.Homie.BaseTopic + "/#"}
	if c.Zigbee2MQTT.Enabled {
		topics = append(topics, c.Zigbee2MQTT.BaseTopic+"/#")
	}
	return topics
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
