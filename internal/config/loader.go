package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults and then applies VAULT_*
// environment overrides. A missing file is not an error so a deployment
// can run from environment alone. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setInt(&cfg.Server.Port, "VAULT_SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "VAULT_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "VAULT_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "VAULT_SERVER_SHUTDOWN_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "VAULT_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "VAULT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "REDIS_URL") // compatibility alias
	setStr(&cfg.Redis.URL, "VAULT_REDIS_URL")
	setDuration(&cfg.Redis.CacheTTL, "VAULT_REDIS_CACHE_TTL")
	setStr(&cfg.Redis.LockKey, "VAULT_REDIS_LOCK_KEY")
	setDuration(&cfg.Redis.LockTTL, "VAULT_REDIS_LOCK_TTL")

	// ── Vault ──
	setStr(&cfg.Vault.ProgramID, "VAULT_PROGRAM_ID")
	setBool(&cfg.Vault.FeePolicy.Seed, "VAULT_FEE_POLICY_SEED")
	setStr(&cfg.Vault.FeePolicy.Address, "VAULT_FEE_POLICY_ADDRESS")
	setStr(&cfg.Vault.FeePolicy.Destination, "VAULT_FEE_POLICY_DESTINATION")

	setStr(&cfg.LogLevel, "VAULT_LOG_LEVEL")
}

// Each helper only mutates the target when the variable is non-empty and
// parses.

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
