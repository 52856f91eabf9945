package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// DatabaseConfig selects and sizes the store backend
type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	DSN          string
	MaxOpenConns int
}

// AuthConfig configures token issuance and validation
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// EventsConfig configures the post-commit event publisher.
// An empty RabbitMQURL selects the log publisher.
type EventsConfig struct {
	RabbitMQURL string
	Exchange    string
}

// Config is the complete application configuration
type Config struct {
	Env   string
	Port  string
	Debug bool

	Database DatabaseConfig
	Auth     AuthConfig
	Events   EventsConfig

	// PriceTolerance is the largest accepted gap between a cart price and
	// the live product price
	PriceTolerance decimal.Decimal
	// RestockOnCancel credits item quantities back to stock when an order
	// is cancelled. Off by default: cancellation only resets product status.
	RestockOnCancel bool

	IdempotencyTTL  time.Duration
	JanitorInterval time.Duration
	SeedDemo        bool
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("debug", false)
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "curio.db")
	v.SetDefault("db_max_open_conns", 10)
	v.SetDefault("jwt_secret", "curio-secret-key")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("events_exchange", "curio.events")
	v.SetDefault("price_tolerance", "0.1")
	v.SetDefault("restock_on_cancel", false)
	v.SetDefault("idempotency_ttl", "24h")
	v.SetDefault("janitor_interval", "5m")
	v.SetDefault("seed_demo", false)
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	tolerance, err := decimal.NewFromString(v.GetString("price_tolerance"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_TOLERANCE: %w", err)
	}
	if tolerance.IsNegative() {
		return nil, errors.New("PRICE_TOLERANCE must not be negative")
	}

	cfg := &Config{
		Env:   v.GetString("env"),
		Port:  v.GetString("port"),
		Debug: v.GetBool("debug"),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("db_driver")),
			DSN:          v.GetString("db_dsn"),
			MaxOpenConns: v.GetInt("db_max_open_conns"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("jwt_secret"),
			TokenTTL:  v.GetDuration("token_ttl"),
		},
		Events: EventsConfig{
			RabbitMQURL: v.GetString("rabbitmq_url"),
			Exchange:    v.GetString("events_exchange"),
		},
		PriceTolerance:  tolerance,
		RestockOnCancel: v.GetBool("restock_on_cancel"),
		IdempotencyTTL:  v.GetDuration("idempotency_ttl"),
		JanitorInterval: v.GetDuration("janitor_interval"),
		SeedDemo:        v.GetBool("seed_demo"),
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	if cfg.IsProduction() && cfg.Auth.JWTSecret == "curio-secret-key" {
		return nil, errors.New("JWT_SECRET must be overridden in production")
	}

	return cfg, nil
}
