package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	OpsPasswordHash        string `env:"OPS_PASSWORD_HASH"`
	PairingCodeTTLSeconds  int    `env:"PAIRING_CODE_TTL_SECONDS" envDefault:"600"`
	LivenessTimeoutSeconds int    `env:"LIVENESS_TIMEOUT_SECONDS" envDefault:"75"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.LivenessTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.OpsPasswordHash != "" {
		if !strings.HasPrefix(c.OpsPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.OpsPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.OpsPasswordHash, "$2y$") {
			return fmt.Errorf("OPS_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if c.PairingCodeTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_CODE_TTL_SECONDS must be positive")
	}

	// The timeout must comfortably exceed the heartbeat interval so a
	// single delayed heartbeat does not flap a device offline.
	if c.LivenessTimeout() <= DeviceHeartbeatInterval {
		return fmt.Errorf("LIVENESS_TIMEOUT_SECONDS must exceed the %s heartbeat interval", DeviceHeartbeatInterval)
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
