package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "c2VjcmV0LWtleS1mb3ItdGVzdGluZy1wdXJwb3Nlcy0xMjM0NTY3ODkw"

func TestLoad(t *testing.T) {
	t.Run("defaults with secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "recipe-bff", cfg.App.Name)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Greater(t, cfg.Server.WriteTimeout, cfg.Inference.GenerateTimeout)
		assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
		assert.Equal(t, 336*time.Hour, cfg.JWT.RefreshTokenTTL)
		assert.Equal(t, "local", cfg.Notification.Relay)
		assert.Equal(t, []string{"*"}, cfg.Realtime.AllowedOrigins)
		assert.Len(t, cfg.CORS.AllowedOrigins, 4)
		assert.True(t, cfg.IsDevelopment())
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("JWT_ACCESS_TOKEN_TTL", "10m")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
		t.Setenv("INFERENCE_BASE_URL", "http://ai:5000/")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 10*time.Minute, cfg.JWT.AccessTokenTTL)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "http://ai:5000", cfg.Inference.BaseURL)
	})

	t.Run("missing secret is fatal", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT secret is required")
	})

	t.Run("secret must be base64", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "not base64 !!")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base64")
	})

	t.Run("redis relay needs redis", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("NOTIFICATION_RELAY", "redis")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoadWithPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bff.env")
	content := "JWT_SECRET=" + testSecret + "\nSERVER_PORT=9090\nDATABASE_DBNAME=recipes\nREALTIME_ALLOWED_ORIGINS=https://a.example, https://b.example\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Run("file values over defaults", func(t *testing.T) {
		cfg, err := LoadWithPath(path)
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "recipes", cfg.Database.DBName)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Realtime.AllowedOrigins)
		assert.Equal(t, 5432, cfg.Database.Port)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "7070")
		cfg, err := LoadWithPath(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWithPath(filepath.Join(dir, "nope.env"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{Notification: NotificationConfig{Relay: "carrier-pigeon"}}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"app name is required", "invalid server port", "JWT secret is required", "unknown notification relay"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_WriteTimeoutOutlastsGeneration(t *testing.T) {
	t.Run("shorter write timeout rejected", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("SERVER_WRITE_TIMEOUT", "60s")
		t.Setenv("INFERENCE_GENERATE_TIMEOUT", "120s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must exceed inference generate timeout")
	})

	t.Run("equal write timeout rejected", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("SERVER_WRITE_TIMEOUT", "90s")
		t.Setenv("INFERENCE_GENERATE_TIMEOUT", "90s")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("longer write timeout accepted", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("SERVER_WRITE_TIMEOUT", "100s")
		t.Setenv("INFERENCE_GENERATE_TIMEOUT", "90s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 100*time.Second, cfg.Server.WriteTimeout)
	})
}
