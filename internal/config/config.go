package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"liveclass/internal/telemetry"
	dbconfig "liveclass/pkg/database"
)

// EnvPrefix is prepended to every environment override,
// e.g. LIVECLASS_HTTP_PORT or LIVECLASS_AUTH_JWT_SECRET
const EnvPrefix = "LIVECLASS"

// Config is the full server configuration
type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	Database  dbconfig.Config  `mapstructure:"database"`
	WebSocket WebSocketConfig  `mapstructure:"websocket"`
	Sessions  SessionsConfig   `mapstructure:"sessions"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Executor  ExecutorConfig   `mapstructure:"executor"`
	Analytics AnalyticsConfig  `mapstructure:"analytics"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns host:port for the listener
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

type WebSocketConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	BufferSize      int           `mapstructure:"buffer_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	// DisconnectGrace is how long a dropped participant keeps their slot
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
}

type SessionsConfig struct {
	MaxPerHost             int           `mapstructure:"max_per_host"`
	IdleTimeout            time.Duration `mapstructure:"idle_timeout"`
	ReapInterval           time.Duration `mapstructure:"reap_interval"`
	MaxDocumentBytes       int           `mapstructure:"max_document_bytes"`
	DefaultMaxParticipants int           `mapstructure:"default_max_participants"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// ExecutorConfig points at the code-execution sandbox. An empty URL
// disables run-code.
type ExecutorConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AnalyticsConfig struct {
	BufferSize  int    `mapstructure:"buffer_size"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisStream string `mapstructure:"redis_stream"`
	Persist     bool   `mapstructure:"persist"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

var defaults = map[string]interface{}{
	"http.host":          "0.0.0.0",
	"http.port":          8080,
	"http.read_timeout":  "30s",
	"http.write_timeout": "30s",

	"database.path":               "./data/liveclass.db",
	"database.timeout":            "30s",
	"database.migrations_path":    "",
	"database.max_connections":    10,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "10m",

	"websocket.ping_interval":     "30s",
	"websocket.read_timeout":      "60s",
	"websocket.write_timeout":     "10s",
	"websocket.buffer_size":       100,
	"websocket.max_message_bytes": 2 << 20,
	"websocket.disconnect_grace":  "30s",

	"sessions.max_per_host":             0,
	"sessions.idle_timeout":             "30m",
	"sessions.reap_interval":            "1m",
	"sessions.max_document_bytes":       1 << 20,
	"sessions.default_max_participants": 0,

	"auth.jwt_secret": "",
	"auth.issuer":     "",

	"executor.url":     "",
	"executor.timeout": "30s",

	"analytics.buffer_size":  1024,
	"analytics.redis_addr":   "",
	"analytics.redis_stream": "liveclass:analytics",
	"analytics.persist":      true,

	"rate_limit.per_minute": 120,

	"telemetry.otlp_endpoint": "",
	"telemetry.service_name":  "liveclass",
}

// NewViper returns a viper instance with defaults and environment binding.
// Command-line flags may be bound to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves configuration with precedence flags > env > file > defaults.
// file may be empty; LIVECLASS_CONFIG_FILE is used then.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file == "" {
		file = v.GetString("config_file")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the defaults without reading env or files.
// The JWT secret is left empty and must be supplied.
func DefaultConfig() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("WebSocket max message bytes must be positive")
	}
	if c.WebSocket.DisconnectGrace < 0 {
		return fmt.Errorf("WebSocket disconnect grace cannot be negative")
	}

	if c.Sessions.MaxPerHost < 0 {
		return fmt.Errorf("sessions max per host cannot be negative")
	}
	if c.Sessions.IdleTimeout < 0 {
		return fmt.Errorf("sessions idle timeout cannot be negative")
	}
	if c.Sessions.IdleTimeout > 0 && c.Sessions.ReapInterval <= 0 {
		return fmt.Errorf("sessions reap interval must be positive when idle timeout is set")
	}
	if c.Sessions.MaxDocumentBytes <= 0 {
		return fmt.Errorf("sessions max document bytes must be positive")
	}
	if c.Sessions.DefaultMaxParticipants < 0 {
		return fmt.Errorf("sessions default max participants cannot be negative")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt secret is required")
	}
	if c.Executor.URL != "" && c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor timeout must be positive")
	}
	if c.Analytics.BufferSize <= 0 {
		return fmt.Errorf("analytics buffer size must be positive")
	}
	if c.Analytics.RedisAddr != "" && c.Analytics.RedisStream == "" {
		return fmt.Errorf("analytics redis stream cannot be empty")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("rate limit per minute must be positive")
	}
	return nil
}
