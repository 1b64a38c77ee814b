package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crewcrew.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
api_base_url: http://backend:8000
storage: memory
refresh_interval: 1m
google:
  client_id: g-id
  client_secret: g-secret
  callback_url: http://localhost:9000/auth/google/callback
session_secret: 0123456789abcdef
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port, "env wins over file")
	assert.Equal(t, "http://backend:8000", cfg.APIBaseURL)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Google.Enabled())
	assert.False(t, cfg.GitHub.Enabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STORAGE":          "redis",
		"REDIS_ADDR":       "cache:6379",
		"REDIS_DB":         "2",
		"REFRESH_INTERVAL": "45s",
		"GITHUB_CLIENT_ID": "gh",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 45*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "gh", cfg.GitHub.ClientID)
}

func TestGetenvDuration_BadValueKeepsDefault(t *testing.T) {
	get := func(v string) func(string) string { return func(string) string { return v } }

	assert.Equal(t, 30*time.Second, getenvDuration(get("soon"), "X", 30*time.Second))
	assert.Equal(t, 30*time.Second, getenvDuration(get("-5s"), "X", 30*time.Second))
	assert.Equal(t, 2*time.Second, getenvDuration(get("2s"), "X", 30*time.Second))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "postgres" }},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }},
		{"redis without addr", func(c *Config) { c.Storage = StorageRedis; c.RedisAddr = "" }},
		{"oauth without secret", func(c *Config) {
			c.GitHub = OAuthClient{ClientID: "id", ClientSecret: "secret"}
			c.SessionSecret = "short"
		}},
		{"zero refresh interval", func(c *Config) { c.RefreshInterval = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no port", func(c *Config) { c.Port = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
