package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "broker.example.com"
    port: 8883
    client_id_prefix: "test-client"
    keep_alive: 30
  tls:
    enabled: true
    verify_certs: true
  qos: 1
history:
  size: 50
classroom:
  topic_prefix: "lab"
  ac_temp_min: 16
  ac_temp_max: 30
mcp:
  transport: "http"
api:
  port: 9000
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.example.com")
	}
	if !cfg.MQTT.TLS.Enabled || !cfg.MQTT.TLS.VerifyCerts {
		t.Errorf("MQTT.TLS = %+v, want enabled and verifying", cfg.MQTT.TLS)
	}
	if cfg.History.Size != 50 {
		t.Errorf("History.Size = %d, want 50", cfg.History.Size)
	}
	if cfg.Classroom.TopicPrefix != "lab" {
		t.Errorf("Classroom.TopicPrefix = %q, want %q", cfg.Classroom.TopicPrefix, "lab")
	}
	if cfg.Classroom.ACTempMax != 30 {
		t.Errorf("Classroom.ACTempMax = %v, want 30", cfg.Classroom.ACTempMax)
	}
	// Unset fields keep their defaults.
	if cfg.MQTT.Reconnect.MaxDelay != 60 {
		t.Errorf("MQTT.Reconnect.MaxDelay = %d, want default 60", cfg.MQTT.Reconnect.MaxDelay)
	}
	if cfg.BrokerAddress() != "broker.example.com:8883" {
		t.Errorf("BrokerAddress() = %q, want %q", cfg.BrokerAddress(), "broker.example.com:8883")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.History.Size != 20 {
		t.Errorf("History.Size = %d, want 20", cfg.History.Size)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
history:
  size: 0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}, wantErr: false},
		{name: "missing host", mutate: func(c *Config) { c.MQTT.Broker.Host = "" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.MQTT.Broker.Port = 70000 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "negative attempts", mutate: func(c *Config) { c.MQTT.Reconnect.MaxAttempts = -1 }, wantErr: true},
		{name: "max delay below initial", mutate: func(c *Config) {
			c.MQTT.Reconnect.InitialDelay = 10
			c.MQTT.Reconnect.MaxDelay = 5
		}, wantErr: true},
		{name: "zero history", mutate: func(c *Config) { c.History.Size = 0 }, wantErr: true},
		{name: "wildcard prefix", mutate: func(c *Config) { c.Classroom.TopicPrefix = "class/#" }, wantErr: true},
		{name: "inverted AC range", mutate: func(c *Config) {
			c.Classroom.ACTempMin = 30
			c.Classroom.ACTempMax = 18
		}, wantErr: true},
		{name: "unknown transport", mutate: func(c *Config) { c.MCP.Transport = "sse" }, wantErr: true},
		{name: "http needs port", mutate: func(c *Config) {
			c.MCP.Transport = "http"
			c.API.Port = 0
		}, wantErr: true},
		{name: "audit needs path", mutate: func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.Path = ""
		}, wantErr: true},
		{name: "influx needs url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "negative rate limit", mutate: func(c *Config) { c.Commands.RateLimit = -1 }, wantErr: true},
		{name: "short jwt secret", mutate: func(c *Config) { c.API.Auth.JWTSecret = "too-short" }, wantErr: true},
		{name: "jwt secret", mutate: func(c *Config) {
			c.API.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Management: ManagementConfig{Timeout: 12},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{KeepAlive: 20},
			Reconnect: MQTTReconnectConfig{ConnectTimeout: 7},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.ManagementTimeout().Seconds(); got != 12 {
		t.Errorf("ManagementTimeout() = %v, want 12", got)
	}
	if got := cfg.MQTT.KeepAliveDuration().Seconds(); got != 20 {
		t.Errorf("KeepAliveDuration() = %v, want 20", got)
	}
	if got := cfg.MQTT.ConnectTimeout().Seconds(); got != 7 {
		t.Errorf("ConnectTimeout() = %v, want 7", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("EMQX_BROKER_HOST", "mqtt.example.com")
	t.Setenv("EMQX_BROKER_PORT", "8883")
	t.Setenv("EMQX_USERNAME", "testuser")
	t.Setenv("EMQX_PASSWORD", "testpass")
	t.Setenv("EMQX_USE_SSL", "TRUE")
	t.Setenv("EMQX_API_URL", "https://api.example.com/api/v5")
	t.Setenv("MESSAGE_HISTORY_SIZE", "40")
	t.Setenv("CLASSROOM_TOPIC_PREFIX", "room7")
	t.Setenv("AC_TEMP_MIN", "17.5")
	t.Setenv("MQTTMCP_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MQTTMCP_API_JWT_SECRET", "jwt-secret")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v, want testuser/testpass", cfg.MQTT.Auth)
	}
	if !cfg.MQTT.TLS.Enabled {
		t.Error("MQTT.TLS.Enabled = false, want true")
	}
	if cfg.Management.URL != "https://api.example.com/api/v5" {
		t.Errorf("Management.URL = %q", cfg.Management.URL)
	}
	if cfg.History.Size != 40 {
		t.Errorf("History.Size = %d, want 40", cfg.History.Size)
	}
	if cfg.Classroom.TopicPrefix != "room7" {
		t.Errorf("Classroom.TopicPrefix = %q, want %q", cfg.Classroom.TopicPrefix, "room7")
	}
	if cfg.Classroom.ACTempMin != 17.5 {
		t.Errorf("Classroom.ACTempMin = %v, want 17.5", cfg.Classroom.ACTempMin)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if !cfg.API.Auth.Enabled() || cfg.API.Auth.JWTSecret != "jwt-secret" {
		t.Errorf("API.Auth.JWTSecret = %q, want %q", cfg.API.Auth.JWTSecret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_Malformed(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("EMQX_BROKER_PORT", "not-a-port")
	t.Setenv("AC_TEMP_MAX", "warm")

	if err := applyEnvOverrides(cfg); err == nil {
		t.Error("applyEnvOverrides() expected error for malformed values, got nil")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want unchanged 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoadEnvFile(t *testing.T) {
	tmpDir := t.TempDir()

	if err := LoadEnvFile(filepath.Join(tmpDir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile() on missing file error = %v, want nil", err)
	}

	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("MQTTMCP_TEST_ENV_FILE=loaded\n"), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("MQTTMCP_TEST_ENV_FILE") })

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("MQTTMCP_TEST_ENV_FILE"); got != "loaded" {
		t.Errorf("MQTTMCP_TEST_ENV_FILE = %q, want %q", got, "loaded")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.History.Size != 20 {
		t.Errorf("defaultConfig History.Size = %d, want 20", cfg.History.Size)
	}
	if cfg.Classroom.ACTempMin != 18 || cfg.Classroom.ACTempMax != 28 {
		t.Errorf("defaultConfig AC range = [%v,%v], want [18,28]", cfg.Classroom.ACTempMin, cfg.Classroom.ACTempMax)
	}
	if cfg.MCP.Transport != "stdio" {
		t.Errorf("defaultConfig MCP.Transport = %q, want stdio", cfg.MCP.Transport)
	}
}
