package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Security    SecurityConfig    `yaml:"security"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Entries     []EntryConfig     `yaml:"entries"`
	Templates   []TemplateConfig  `yaml:"templates"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	// Output is stdout, stderr or file. File output appends to File.
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// TelemetryConfig controls the OpenTelemetry meter and its Prometheus endpoint.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
//
// An empty secret leaves the control endpoints unauthenticated, which is
// only acceptable on an isolated network.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
}

// CoordinatorConfig holds defaults shared by every polling coordinator.
type CoordinatorConfig struct {
	DefaultInterval  time.Duration    `yaml:"default_interval"`
	DefaultTimeout   time.Duration    `yaml:"default_timeout"`
	SetupRetry       SetupRetryConfig `yaml:"setup_retry"`
	HistoryRetention time.Duration    `yaml:"history_retention"`
}

// SetupRetryConfig bounds how entries whose first refresh failed are retried.
type SetupRetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	// MaxElapsed of zero retries until shutdown.
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

// EntryConfig describes one REST/JSON device polled by the hub.
type EntryConfig struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	URL        string            `yaml:"url"`
	Timeout    time.Duration     `yaml:"timeout"`
	RebootPath string            `yaml:"reboot_path"`
	Headers    map[string]string `yaml:"headers"`
	Retry      RetryConfig       `yaml:"retry"`
	Debounce   DebounceConfig    `yaml:"request_debounce"`
	Categories []CategoryConfig  `yaml:"categories"`
}

// DebounceConfig limits how often requested refreshes reach the device.
// A zero cooldown sends every request straight through.
type DebounceConfig struct {
	Cooldown  time.Duration `yaml:"cooldown"`
	Immediate bool          `yaml:"immediate"`
}

// RetryConfig enables the fixed-delay retry policy for an entry's coordinators.
type RetryConfig struct {
	Enabled     bool `yaml:"enabled"`
	Multiplier  int  `yaml:"multiplier"`
	MaxFailures int  `yaml:"max_failures"`
}

// CategoryConfig is one data category of a device, polled by its own coordinator.
type CategoryConfig struct {
	Name          string         `yaml:"name"`
	Path          string         `yaml:"path"`
	Interval      time.Duration  `yaml:"interval"`
	SkipUnchanged bool           `yaml:"skip_unchanged"`
	Sensors       []SensorConfig `yaml:"sensors"`
}

// SensorConfig maps a JSON path in a category payload to an entity.
type SensorConfig struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Path        string `yaml:"path"`
	Unit        string `yaml:"unit"`
	DeviceClass string `yaml:"device_class"`
}

// TemplateConfig describes a sensor whose value is derived from other entities.
type TemplateConfig struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Template  string          `yaml:"template"`
	Unit      string          `yaml:"unit"`
	Validator ValidatorConfig `yaml:"validator"`
}

// ValidatorConfig selects how a template result is checked before use.
type ValidatorConfig struct {
	Type   string   `yaml:"type"` // number, boolean, string, one_of or empty
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
	Values []string `yaml:"values"`
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Per-entry defaults filled from the coordinator section
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
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
	cfg.applyEntryDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-hub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-hub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
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
		Telemetry: TelemetryConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60,
			},
		},
		Coordinator: CoordinatorConfig{
			DefaultInterval: 30 * time.Second,
			DefaultTimeout:  10 * time.Second,
			SetupRetry: SetupRetryConfig{
				InitialDelay: 5 * time.Second,
				MaxDelay:     5 * time.Minute,
			},
			HistoryRetention: 7 * 24 * time.Hour,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// applyEntryDefaults fills unset per-entry timing with coordinator defaults.
func (c *Config) applyEntryDefaults() {
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Timeout == 0 {
			e.Timeout = c.Coordinator.DefaultTimeout
		}
		if e.Retry.Enabled {
			if e.Retry.Multiplier == 0 {
				e.Retry.Multiplier = 2
			}
			if e.Retry.MaxFailures == 0 {
				e.Retry.MaxFailures = 3
			}
		}
		for j := range e.Categories {
			if e.Categories[j].Interval == 0 {
				e.Categories[j].Interval = c.Coordinator.DefaultInterval
			}
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Coordinator.DefaultInterval <= 0 {
		errs = append(errs, "coordinator.default_interval must be positive")
	}

	errs = append(errs, c.validateEntries()...)
	errs = append(errs, c.validateTemplates()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateEntries() []string {
	var errs []string
	seen := make(map[string]bool)

	for i, e := range c.Entries {
		prefix := fmt.Sprintf("entries[%d]", i)
		switch {
		case !idPattern.MatchString(e.ID):
			errs = append(errs, prefix+".id must be lowercase letters, digits and underscores")
		case seen[e.ID]:
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, e.ID))
		}
		seen[e.ID] = true

		if e.URL == "" {
			errs = append(errs, prefix+".url is required")
		}
		if e.Timeout <= 0 {
			errs = append(errs, prefix+".timeout must be positive")
		}
		if len(e.Categories) == 0 {
			errs = append(errs, prefix+" needs at least one category")
		}
		if e.Retry.Enabled && (e.Retry.Multiplier < 1 || e.Retry.MaxFailures < 1) {
			errs = append(errs, prefix+".retry multiplier and max_failures must be at least 1")
		}
		if e.Debounce.Cooldown < 0 {
			errs = append(errs, prefix+".request_debounce.cooldown must not be negative")
		}

		categories := make(map[string]bool)
		for j, cat := range e.Categories {
			cp := fmt.Sprintf("%s.categories[%d]", prefix, j)
			if !idPattern.MatchString(cat.Name) {
				errs = append(errs, cp+".name must be lowercase letters, digits and underscores")
			} else if categories[cat.Name] {
				errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", cp, cat.Name))
			}
			categories[cat.Name] = true
			if cat.Interval <= 0 {
				errs = append(errs, cp+".interval must be positive")
			}
			for k, s := range cat.Sensors {
				if !idPattern.MatchString(s.Key) {
					errs = append(errs, fmt.Sprintf("%s.sensors[%d].key is invalid", cp, k))
				}
				if s.Path == "" {
					errs = append(errs, fmt.Sprintf("%s.sensors[%d].path is required", cp, k))
				}
			}
		}
	}

	return errs
}

func (c *Config) validateTemplates() []string {
	var errs []string
	seen := make(map[string]bool)

	for i, t := range c.Templates {
		prefix := fmt.Sprintf("templates[%d]", i)
		if !idPattern.MatchString(t.ID) {
			errs = append(errs, prefix+".id must be lowercase letters, digits and underscores")
		} else if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, t.ID))
		}
		seen[t.ID] = true

		if strings.TrimSpace(t.Template) == "" {
			errs = append(errs, prefix+".template is required")
		}

		switch t.Validator.Type {
		case "", "number", "boolean", "string":
		case "one_of":
			if len(t.Validator.Values) == 0 {
				errs = append(errs, prefix+".validator.values is required for one_of")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.validator.type %q is not supported", prefix, t.Validator.Type))
		}
		if t.Validator.Min != nil && t.Validator.Max != nil && *t.Validator.Min > *t.Validator.Max {
			errs = append(errs, prefix+".validator.min must not exceed max")
		}
	}

	return errs
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
