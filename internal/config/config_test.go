package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "./data/liveclass.db", cfg.Database.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.Database.WriteTimeout)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.DisconnectGrace)
	assert.Equal(t, int64(2<<20), cfg.WebSocket.MaxMessageBytes)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Sessions.ReapInterval)
	assert.Equal(t, 1<<20, cfg.Sessions.MaxDocumentBytes)
	assert.Equal(t, "liveclass:analytics", cfg.Analytics.RedisStream)
	assert.True(t, cfg.Analytics.Persist)
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
	assert.Equal(t, "liveclass", cfg.Telemetry.ServiceName)

	// the secret has no default
	assert.Error(t, cfg.Validate())
	assert.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty database path", func(c *Config) { c.Database.DatabasePath = "" }},
		{"read timeout not above ping", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval }},
		{"zero buffer", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"negative grace", func(c *Config) { c.WebSocket.DisconnectGrace = -time.Second }},
		{"negative per host", func(c *Config) { c.Sessions.MaxPerHost = -1 }},
		{"idle without reap interval", func(c *Config) { c.Sessions.ReapInterval = 0 }},
		{"zero document size", func(c *Config) { c.Sessions.MaxDocumentBytes = 0 }},
		{"executor without timeout", func(c *Config) { c.Executor.URL = "http://sandbox"; c.Executor.Timeout = 0 }},
		{"redis without stream", func(c *Config) { c.Analytics.RedisAddr = "localhost:6379"; c.Analytics.RedisStream = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.PerMinute = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("idle reaping disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sessions.IdleTimeout = 0
		cfg.Sessions.ReapInterval = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LIVECLASS_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("LIVECLASS_HTTP_PORT", "9090")
	t.Setenv("LIVECLASS_SESSIONS_IDLE_TIMEOUT", "5m")
	t.Setenv("LIVECLASS_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("LIVECLASS_ANALYTICS_PERSIST", "false")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.IdleTimeout)
	assert.Equal(t, "/tmp/env.db", cfg.Database.DatabasePath)
	assert.False(t, cfg.Analytics.Persist)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveclass.toml")
	content := `
[http]
port = 7000

[auth]
jwt_secret = "file-secret"
issuer = "school"

[websocket]
disconnect_grace = "45s"

[executor]
url = "http://sandbox:9000/run"
timeout = "10s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// env still wins over the file
	t.Setenv("LIVECLASS_HTTP_PORT", "7100")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.HTTP.Port)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "school", cfg.Auth.Issuer)
	assert.Equal(t, 45*time.Second, cfg.WebSocket.DisconnectGrace)
	assert.Equal(t, "http://sandbox:9000/run", cfg.Executor.URL)
	assert.Equal(t, 10*time.Second, cfg.Executor.Timeout)
	// untouched keys keep defaults
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
}

func TestLoadConfigFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveclass.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"auth": {"jwt_secret": "json-secret"}}`), 0o600))
	t.Setenv("LIVECLASS_CONFIG_FILE", path)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "json-secret", cfg.Auth.JWTSecret)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	// no secret anywhere
	t.Setenv("LIVECLASS_AUTH_JWT_SECRET", "")
	_, err = Load(NewViper(), "")
	assert.Error(t, err)
}

func TestHTTPAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", HTTPConfig{Host: "127.0.0.1", Port: 8080}.Addr())
}
