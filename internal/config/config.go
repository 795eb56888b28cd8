package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	WaitingTTLSeconds     int    `env:"WAITING_TTL_SECONDS" envDefault:"900"`
	AnonymousPeersAllowed bool   `env:"ANONYMOUS_PEERS_ALLOWED" envDefault:"false"`
	AllowedOrigin         string `env:"ALLOWED_ORIGIN" envDefault:""`
}

// WaitingTTL is how long a seeker may sit in the waiting pool before the
// sweeper evicts it with a match_failed.
func (c *Config) WaitingTTL() time.Duration {
	return time.Duration(c.WaitingTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.WaitingTTLSeconds <= 0 {
		return fmt.Errorf("WAITING_TTL_SECONDS must be positive")
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.AllowedOrigin == "" {
			log.Warn().Msg("ALLOWED_ORIGIN is empty in production: websocket upgrades restricted to same-host origins")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
