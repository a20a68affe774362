package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

// Config is the root configuration structure for the MQTT MCP server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT       MQTTConfig       `yaml:"mqtt"`
	History    HistoryConfig    `yaml:"history"`
	Management ManagementConfig `yaml:"management"`
	Classroom  ClassroomConfig  `yaml:"classroom"`
	Commands   CommandsConfig   `yaml:"commands"`
	MCP        MCPConfig        `yaml:"mcp"`
	API        APIConfig        `yaml:"api"`
	Audit      AuditConfig      `yaml:"audit"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic receives the retained online/offline documents and the
	// Last Will. Empty disables status publishing.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ClientIDPrefix is combined with a short random suffix on every
	// connect so that several instances never share a client ID.
	ClientIDPrefix string `yaml:"client_id_prefix"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains transport security settings for the broker connection.
type MQTTTLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// VerifyCerts disables certificate and hostname verification when false.
	// Only use false against development brokers with self-signed certificates.
	VerifyCerts bool `yaml:"verify_certs"`

	// CAFile is an optional PEM bundle used instead of the system roots.
	CAFile string `yaml:"ca_file"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay   int `yaml:"initial_delay"`   // seconds
	MaxDelay       int `yaml:"max_delay"`       // seconds
	MaxAttempts    int `yaml:"max_attempts"`    // 0 = retry forever
	ConnectTimeout int `yaml:"connect_timeout"` // seconds
}

// HistoryConfig contains message history settings.
type HistoryConfig struct {
	// Size is the number of messages kept per topic.
	Size int `yaml:"size"`
}

// ManagementConfig contains EMQX HTTP management API settings.
type ManagementConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Timeout   int    `yaml:"timeout"` // seconds
}

// ClassroomConfig describes the classroom device profile.
type ClassroomConfig struct {
	ID          string `yaml:"id"`
	TopicPrefix string `yaml:"topic_prefix"`

	// DeviceID is placed in every command document sent to the AC controller.
	DeviceID string `yaml:"device_id"`

	// AutoSubscribe subscribes the sensor and AC status topics at startup.
	AutoSubscribe bool `yaml:"auto_subscribe"`

	ACTempMin float64 `yaml:"ac_temp_min"`
	ACTempMax float64 `yaml:"ac_temp_max"`
}

// CommandsConfig contains command dispatch settings.
type CommandsConfig struct {
	// RateLimit is the sustained number of commands per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// MCPConfig contains MCP server settings.
type MCPConfig struct {
	Name string `yaml:"name"`

	// Transport is "stdio" or "http".
	Transport string `yaml:"transport"`
}

// APIConfig contains HTTP server settings, used when the MCP transport is http.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	MCPPath  string           `yaml:"mcp_path"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig contains bearer-token settings for the HTTP surface.
// An empty JWTSecret disables authentication.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Enabled reports whether requests must carry a bearer token.
func (c APIAuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// AuditConfig contains settings for the SQLite command audit trail.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB telemetry export settings.
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
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables use the established EMQX deployment names where one
// exists (EMQX_BROKER_HOST, MESSAGE_HISTORY_SIZE, AC_TEMP_MIN, ...) and the
// MQTTMCP_SECTION_KEY pattern otherwise.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set are not overwritten and a
// missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:           "localhost",
				Port:           1883,
				ClientIDPrefix: "mqtt_mcp",
				KeepAlive:      60,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay:   1,
				MaxDelay:       60,
				MaxAttempts:    0,
				ConnectTimeout: 10,
			},
			StatusTopic: "mqtt-mcp/status",
		},
		History: HistoryConfig{
			Size: 20,
		},
		Management: ManagementConfig{
			Timeout: 30,
		},
		Classroom: ClassroomConfig{
			ID:            "classroom_01",
			TopicPrefix:   "classroom",
			DeviceID:      "classroom-ac-controller",
			AutoSubscribe: true,
			ACTempMin:     18,
			ACTempMax:     28,
		},
		MCP: MCPConfig{
			Name:      "emqx_mcp_server",
			Transport: "stdio",
		},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8090,
			MCPPath: "/mcp",
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
		Audit: AuditConfig{
			Path:        "./data/audit.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric or boolean values are reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s must be an integer", key))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s must be a number", key))
				return
			}
			*dst = f
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	// MQTT broker
	str("EMQX_BROKER_HOST", &cfg.MQTT.Broker.Host)
	num("EMQX_BROKER_PORT", &cfg.MQTT.Broker.Port)
	str("EMQX_USERNAME", &cfg.MQTT.Auth.Username)
	str("EMQX_PASSWORD", &cfg.MQTT.Auth.Password)
	flag("EMQX_USE_SSL", &cfg.MQTT.TLS.Enabled)
	flag("SSL_VERIFY_CERTS", &cfg.MQTT.TLS.VerifyCerts)
	num("MQTT_KEEPALIVE", &cfg.MQTT.Broker.KeepAlive)
	str("MQTTMCP_MQTT_CLIENT_ID_PREFIX", &cfg.MQTT.Broker.ClientIDPrefix)
	num("MQTTMCP_MQTT_MAX_ATTEMPTS", &cfg.MQTT.Reconnect.MaxAttempts)

	// History
	num("MESSAGE_HISTORY_SIZE", &cfg.History.Size)

	// Management API
	str("EMQX_API_URL", &cfg.Management.URL)
	str("EMQX_API_KEY", &cfg.Management.APIKey)
	str("EMQX_API_SECRET", &cfg.Management.APISecret)

	// Classroom
	str("CLASSROOM_ID", &cfg.Classroom.ID)
	str("CLASSROOM_TOPIC_PREFIX", &cfg.Classroom.TopicPrefix)
	float("AC_TEMP_MIN", &cfg.Classroom.ACTempMin)
	float("AC_TEMP_MAX", &cfg.Classroom.ACTempMax)

	// MCP / API
	str("MQTTMCP_MCP_TRANSPORT", &cfg.MCP.Transport)
	str("MQTTMCP_API_HOST", &cfg.API.Host)
	num("MQTTMCP_API_PORT", &cfg.API.Port)
	str("MQTTMCP_API_JWT_SECRET", &cfg.API.Auth.JWTSecret)

	// Side channels
	flag("MQTTMCP_AUDIT_ENABLED", &cfg.Audit.Enabled)
	str("MQTTMCP_AUDIT_PATH", &cfg.Audit.Path)
	flag("MQTTMCP_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	str("MQTTMCP_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// Logging
	str("MQTTMCP_LOG_LEVEL", &cfg.Logging.Level)

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required (set EMQX_BROKER_HOST)")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.KeepAlive < 0 {
		errs = append(errs, "mqtt.broker.keep_alive must not be negative")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay")
	}

	// History validation
	if c.History.Size < 1 {
		errs = append(errs, "history.size must be at least 1")
	}

	// Classroom validation
	if c.Classroom.TopicPrefix == "" {
		errs = append(errs, "classroom.topic_prefix is required")
	}
	if strings.ContainsAny(c.Classroom.TopicPrefix, "+#") {
		errs = append(errs, "classroom.topic_prefix must not contain wildcards")
	}
	if c.Classroom.ACTempMin > c.Classroom.ACTempMax {
		errs = append(errs, "classroom.ac_temp_min must be <= ac_temp_max")
	}

	// Command validation
	if c.Commands.RateLimit < 0 {
		errs = append(errs, "commands.rate_limit must not be negative")
	}

	// MCP validation
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, "mcp.transport must be stdio or http")
	}
	if c.MCP.Transport == "http" && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Auth.Enabled() && len(c.API.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
	}

	// Side channel validation
	if c.Audit.Enabled && c.Audit.Path == "" {
		errs = append(errs, "audit.path is required when audit is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns host:port of the MQTT broker.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// ConnectTimeout returns the MQTT connect timeout as a Duration.
func (c MQTTConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Reconnect.ConnectTimeout) * time.Second
}

// KeepAliveDuration returns the MQTT keepalive interval as a Duration.
func (c MQTTConfig) KeepAliveDuration() time.Duration {
	return time.Duration(c.Broker.KeepAlive) * time.Second
}

// ManagementTimeout returns the management API request timeout as a Duration.
func (c *Config) ManagementTimeout() time.Duration {
	return time.Duration(c.Management.Timeout) * time.Second
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
