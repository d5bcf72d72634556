// Package config defines the runtime configuration of the bidding engine and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BIDDING_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Bidding  BiddingConfig  `toml:"bidding"`
	Closer   CloserConfig   `toml:"closer"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
	WebSocket       bool     `toml:"websocket"`
}

// StoreConfig selects the auction store and bounds how long a unit of work
// waits for an entity lock.
type StoreConfig struct {
	Driver      string   `toml:"driver"`
	LockTimeout duration `toml:"lock_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When enabled, updates are
// also published on Redis channels and the closing sweep takes a Redis lease.
type RedisConfig struct {
	Enabled       bool   `toml:"enabled"`
	Addr          string `toml:"addr"`
	Password      string `toml:"password"`
	DB            int    `toml:"db"`
	PoolSize      int    `toml:"pool_size"`
	MaxRetries    int    `toml:"max_retries"`
	TLSEnabled    bool   `toml:"tls_enabled"`
	ChannelPrefix string `toml:"channel_prefix"`
}

// BiddingConfig tunes the proxy-bidding rules.
type BiddingConfig struct {
	IncrementRate string   `toml:"increment_rate"`
	SnipeWindow   duration `toml:"snipe_window"`
}

// Rate returns the parsed increment rate. Validate must have succeeded.
func (b BiddingConfig) Rate() decimal.Decimal {
	d, _ := decimal.NewFromString(b.IncrementRate)
	return d
}

// CloserConfig controls the sweep that ends expired auctions.
type CloserConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	BatchSize int      `toml:"batch_size"`
}

// NotifyConfig sizes the outbound update queue.
type NotifyConfig struct {
	QueueSize int `toml:"queue_size"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: duration{10 * time.Second},
			WebSocket:       true,
		},
		Store: StoreConfig{
			Driver:      DriverMemory,
			LockTimeout: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "bidding",
			User:          "bidding",
			SSLMode:       "disable",
			MaxConns:      10,
			MinConns:      1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			ChannelPrefix: "bidding:",
		},
		Bidding: BiddingConfig{
			IncrementRate: "0.05",
			SnipeWindow:   duration{3 * time.Minute},
		},
		Closer: CloserConfig{
			Enabled:   true,
			Interval:  duration{5 * time.Second},
			BatchSize: 100,
		},
		Notify: NotifyConfig{
			QueueSize: 1024,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, "server: shutdown_timeout must be > 0")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.MaxConns < 1 {
			errs = append(errs, "postgres: max_conns must be >= 1")
		}
		if c.Postgres.MinConns < 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
			errs = append(errs, "postgres: min_conns must be between 0 and max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: memory, postgres)", c.Store.Driver))
	}
	if c.Store.LockTimeout.Duration <= 0 {
		errs = append(errs, "store: lock_timeout must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	rate, err := decimal.NewFromString(c.Bidding.IncrementRate)
	if err != nil || !rate.IsPositive() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Sprintf("bidding: increment_rate must be a decimal in (0, 1), got %q", c.Bidding.IncrementRate))
	}
	if c.Bidding.SnipeWindow.Duration <= 0 {
		errs = append(errs, "bidding: snipe_window must be > 0")
	}

	if c.Closer.Enabled {
		if c.Closer.Interval.Duration <= 0 {
			errs = append(errs, "closer: interval must be > 0")
		}
		if c.Closer.BatchSize < 1 {
			errs = append(errs, "closer: batch_size must be >= 1")
		}
	}

	if c.Notify.QueueSize < 1 {
		errs = append(errs, "notify: queue_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
