package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("WaitingTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{WaitingTTLSeconds: 900}
		assert.Equal(t, 900*time.Second, cfg.WaitingTTL())
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects non-positive waiting TTL", func(t *testing.T) {
		cfg := &Config{WaitingTTLSeconds: 0}
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("accepts sane config", func(t *testing.T) {
		cfg := &Config{WaitingTTLSeconds: 900, RedisURL: "rediss://localhost:6379"}
		assert.NoError(t, cfg.Validate(true))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                    os.Getenv("PORT"),
		"DATABASE_URL":            os.Getenv("DATABASE_URL"),
		"REDIS_URL":               os.Getenv("REDIS_URL"),
		"WAITING_TTL_SECONDS":     os.Getenv("WAITING_TTL_SECONDS"),
		"ANONYMOUS_PEERS_ALLOWED": os.Getenv("ANONYMOUS_PEERS_ALLOWED"),
		"LOG_LEVEL":               os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("WAITING_TTL_SECONDS")
		os.Unsetenv("ANONYMOUS_PEERS_ALLOWED")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 900, cfg.WaitingTTLSeconds)
		assert.False(t, cfg.AnonymousPeersAllowed)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("fails without database url", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("reads overrides", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "9999")
		os.Setenv("WAITING_TTL_SECONDS", "60")
		os.Setenv("ANONYMOUS_PEERS_ALLOWED", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Port)
		assert.Equal(t, 60*time.Second, cfg.WaitingTTL())
		assert.True(t, cfg.AnonymousPeersAllowed)
	})
}
