// Package config loads vault-engine settings from TOML, a .env file and
// VAULT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atmx/vault-engine/internal/model"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Vault    VaultConfig    `toml:"vault"`
	LogLevel string         `toml:"log_level"`
}

type ServerConfig struct {
	Port            int      `toml:"port"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// PostgresConfig selects the durable store. An empty DSN means records
// live in memory and are lost on restart.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig enables the read-through cache and the shared execution
// lock. Both are off when URL is empty.
type RedisConfig struct {
	URL      string   `toml:"url"`
	CacheTTL duration `toml:"cache_ttl"`
	LockKey  string   `toml:"lock_key"`
	LockTTL  duration `toml:"lock_ttl"`
}

// VaultConfig identifies the deployment. ProgramID seeds every derived
// record address.
type VaultConfig struct {
	ProgramID string          `toml:"program_id"`
	FeePolicy FeePolicyConfig `toml:"fee_policy"`
}

// FeePolicyConfig seeds a fee policy record at startup when Seed is set
// and no record exists at Address yet.
type FeePolicyConfig struct {
	Seed          bool   `toml:"seed"`
	Address       string `toml:"address"`
	Destination   string `toml:"destination"`
	MintingBps    int    `toml:"minting_bps"`
	RedemptionBps int    `toml:"redemption_bps"`
	TakerBps      int    `toml:"taker_bps"`
	MakerBps      int    `toml:"maker_bps"`
	SettlementBps int    `toml:"settlement_bps"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding ("5s", "250ms").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config suitable for local development.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     duration{10 * time.Second},
			WriteTimeout:    duration{10 * time.Second},
			ShutdownTimeout: duration{5 * time.Second},
		},
		Postgres: PostgresConfig{RunMigrations: true},
		Redis: RedisConfig{
			CacheTTL: duration{30 * time.Second},
			LockKey:  "vault:exec-lock",
			LockTTL:  duration{5 * time.Second},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks required fields and ranges, reporting every problem at
// once.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout.Duration <= 0 || c.Server.WriteTimeout.Duration <= 0 {
		errs = append(errs, "server: read_timeout and write_timeout must be positive")
	}
	if c.Redis.URL != "" {
		if c.Redis.CacheTTL.Duration <= 0 {
			errs = append(errs, "redis: cache_ttl must be positive")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be positive")
		}
		if c.Redis.LockKey == "" {
			errs = append(errs, "redis: lock_key must not be empty")
		}
	}

	if c.Vault.ProgramID == "" {
		errs = append(errs, "vault: program_id is required")
	} else if _, err := model.ParseIdentity(c.Vault.ProgramID); err != nil {
		errs = append(errs, "vault: program_id: "+err.Error())
	}

	if fp := c.Vault.FeePolicy; fp.Seed {
		if _, err := model.ParseIdentity(fp.Address); err != nil {
			errs = append(errs, "vault.fee_policy: address: "+err.Error())
		}
		if _, err := model.ParseIdentity(fp.Destination); err != nil {
			errs = append(errs, "vault.fee_policy: destination: "+err.Error())
		}
		for name, bps := range map[string]int{
			"minting_bps":    fp.MintingBps,
			"redemption_bps": fp.RedemptionBps,
			"taker_bps":      fp.TakerBps,
			"maker_bps":      fp.MakerBps,
			"settlement_bps": fp.SettlementBps,
		} {
			if bps < 0 || bps > 10_000 {
				errs = append(errs, fmt.Sprintf("vault.fee_policy: %s %d outside [0, 10000]", name, bps))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// ProgramID returns the parsed program identity. Call after Validate.
func (c *Config) ProgramID() model.Identity {
	id, _ := model.ParseIdentity(c.Vault.ProgramID)
	return id
}
