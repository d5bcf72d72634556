package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (if any) over the built-in defaults, then
// applies BIDDING_* environment variable overrides. A .env file in the working
// directory is loaded first when present. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BIDDING_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "BIDDING_SERVER_PORT")
	setDuration(&cfg.Server.ShutdownTimeout, "BIDDING_SERVER_SHUTDOWN_TIMEOUT")
	setBool(&cfg.Server.WebSocket, "BIDDING_SERVER_WEBSOCKET")

	// ── Store ──
	setStr(&cfg.Store.Driver, "BIDDING_STORE_DRIVER")
	setDuration(&cfg.Store.LockTimeout, "BIDDING_STORE_LOCK_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BIDDING_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BIDDING_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BIDDING_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BIDDING_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BIDDING_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BIDDING_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BIDDING_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxConns, "BIDDING_POSTGRES_MAX_CONNS")
	setInt(&cfg.Postgres.MinConns, "BIDDING_POSTGRES_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BIDDING_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BIDDING_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BIDDING_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BIDDING_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BIDDING_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BIDDING_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BIDDING_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BIDDING_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.ChannelPrefix, "BIDDING_REDIS_CHANNEL_PREFIX")

	// ── Bidding ──
	setStr(&cfg.Bidding.IncrementRate, "BIDDING_BIDDING_INCREMENT_RATE")
	setDuration(&cfg.Bidding.SnipeWindow, "BIDDING_BIDDING_SNIPE_WINDOW")

	// ── Closer ──
	setBool(&cfg.Closer.Enabled, "BIDDING_CLOSER_ENABLED")
	setDuration(&cfg.Closer.Interval, "BIDDING_CLOSER_INTERVAL")
	setInt(&cfg.Closer.BatchSize, "BIDDING_CLOSER_BATCH_SIZE")

	// ── Notify ──
	setInt(&cfg.Notify.QueueSize, "BIDDING_NOTIFY_QUEUE_SIZE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "BIDDING_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
