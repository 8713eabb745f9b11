package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"3000"`
	DSN         string `env:"DSN"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mysql"`
	JWTSecret   string `env:"JWT_SECRET"`
	BcryptCost  int    `env:"BCRYPT_COST" envDefault:"10"`

	// TokenTTL of 0 issues tokens that only end through logout.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"0s"`

	LoginRateRPS   float64 `env:"LOGIN_RATE_RPS" envDefault:"5"`
	LoginRateBurst int     `env:"LOGIN_RATE_BURST" envDefault:"10"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverMySQL:
		if c.DSN == "" {
			return errors.New("DSN is required for the mysql store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.TokenTTL < 0 {
		return errors.New("TOKEN_TTL cannot be negative")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
