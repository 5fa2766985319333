// Package config loads service configuration from the environment.
// A .env file in the working directory is loaded first if present;
// variables already set in the environment take precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/pipeline"
	"fee-reinvestor/internal/solana"
	"fee-reinvestor/internal/venue"
	"fee-reinvestor/internal/watcher"
)

// ErrConfiguration is returned by Validate.
var ErrConfiguration = pipeline.ErrConfiguration

// Config is the full service configuration.
type Config struct {
	// Ledger
	RPCURL        string
	WSURL         string // optional, enables account notifications
	Commitment    solana.Commitment
	RPCMaxRetries int

	// Storage
	PostgresDSN   string
	ClickhouseDSN string // optional, run history is kept in memory without it
	UseMemory     bool

	// Trigger surface
	HTTPAddr     string
	CronSecret   string
	CronSchedule string // empty disables the in-process scheduler

	// Orchestration
	GroupSize  int
	GroupPause time.Duration

	Policy  pipeline.Config
	Venue   venue.Config
	Watcher watcher.Config

	LogLevel       string
	LogDevelopment bool
}

// Load reads configuration from .env and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		RPCURL:         getEnvString("SOLANA_RPC_URL", ""),
		WSURL:          getEnvString("SOLANA_WS_URL", ""),
		Commitment:     solana.Commitment(getEnvString("SOLANA_COMMITMENT", string(solana.CommitmentConfirmed))),
		RPCMaxRetries:  getEnvInt("SOLANA_RPC_MAX_RETRIES", 3),
		PostgresDSN:    getEnvString("POSTGRES_DSN", ""),
		ClickhouseDSN:  getEnvString("CLICKHOUSE_DSN", ""),
		UseMemory:      getEnvBool("USE_MEMORY", false),
		HTTPAddr:       getEnvString("HTTP_ADDR", ":8080"),
		CronSecret:     getEnvString("CRON_SECRET", ""),
		CronSchedule:   getEnvString("CRON_SCHEDULE", "*/15 * * * *"),
		GroupSize:      getEnvInt("GROUP_SIZE", 10),
		LogLevel:       getEnvString("LOG_LEVEL", "info"),
		LogDevelopment: getEnvBool("LOG_DEVELOPMENT", false),
		Policy:         pipeline.DefaultConfig(),
		Venue:          venue.DefaultConfig(),
		Watcher:        watcher.DefaultConfig(),
	}

	var err error
	if cfg.GroupPause, err = getEnvDuration("GROUP_PAUSE", 2*time.Second); err != nil {
		return nil, err
	}

	// Policy
	cfg.Policy.TargetMint = getEnvString("TARGET_TOKEN_CA", "")
	cfg.Policy.TargetName = getEnvString("TARGET_TOKEN_NAME", "")
	cfg.Policy.Mode = domain.ReinvestMode(getEnvString("REINVEST_MODE", string(domain.ModeDirect)))
	if cfg.Policy.MinClaimSOL, err = getEnvDecimal("MIN_CLAIM_SOL", cfg.Policy.MinClaimSOL); err != nil {
		return nil, err
	}
	if cfg.Policy.ReserveSOL, err = getEnvDecimal("RESERVE_SOL", cfg.Policy.ReserveSOL); err != nil {
		return nil, err
	}
	if cfg.Policy.MinTradeSOL, err = getEnvDecimal("MIN_TRADE_SOL", cfg.Policy.MinTradeSOL); err != nil {
		return nil, err
	}

	// Venue
	cfg.Venue.BaseURL = getEnvString("VENUE_BASE_URL", cfg.Venue.BaseURL)
	cfg.Venue.Slippage = getEnvInt("VENUE_SLIPPAGE", cfg.Venue.Slippage)
	cfg.Venue.Burst = getEnvInt("VENUE_BURST", cfg.Venue.Burst)
	cfg.Venue.MinTradeSOL = cfg.Policy.MinTradeSOL
	if cfg.Venue.Timeout, err = getEnvDuration("VENUE_TIMEOUT", cfg.Venue.Timeout); err != nil {
		return nil, err
	}
	if cfg.Venue.PriorityFee, err = getEnvDecimal("VENUE_PRIORITY_FEE", cfg.Venue.PriorityFee); err != nil {
		return nil, err
	}
	if cfg.Venue.RequestsPerSecond, err = getEnvFloat("VENUE_RPS", cfg.Venue.RequestsPerSecond); err != nil {
		return nil, err
	}

	// Watcher
	cfg.Watcher.Commitment = cfg.Commitment
	cfg.Watcher.MaxPolls = getEnvInt("CLAIM_MAX_POLLS", cfg.Watcher.MaxPolls)
	if cfg.Watcher.InitialDelay, err = getEnvDuration("CLAIM_SETTLE_DELAY", cfg.Watcher.InitialDelay); err != nil {
		return nil, err
	}
	if cfg.Watcher.PollInterval, err = getEnvDuration("CLAIM_POLL_INTERVAL", cfg.Watcher.PollInterval); err != nil {
		return nil, err
	}
	dust, err := strconv.ParseUint(getEnvString("DUST_LAMPORTS", strconv.FormatUint(cfg.Watcher.DustLamports, 10)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer for DUST_LAMPORTS: %w", err)
	}
	cfg.Watcher.DustLamports = dust

	return cfg, nil
}

// Validate checks the settings every entry point needs. A missing target
// token is not rejected here; passes fail with ErrConfiguration instead.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("%w: SOLANA_RPC_URL is required", ErrConfiguration)
	}
	if !c.Commitment.IsValid() {
		return fmt.Errorf("%w: unknown commitment %q", ErrConfiguration, c.Commitment)
	}
	if c.Policy.TargetMint != "" {
		if err := solana.ValidateMint(c.Policy.TargetMint); err != nil {
			return fmt.Errorf("%w: TARGET_TOKEN_CA: %v", ErrConfiguration, err)
		}
	}
	if !c.Policy.Mode.IsValid() {
		return fmt.Errorf("%w: unknown REINVEST_MODE %q", ErrConfiguration, c.Policy.Mode)
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("%w: POSTGRES_DSN is required unless USE_MEMORY is set", ErrConfiguration)
	}
	if c.GroupSize <= 0 {
		return fmt.Errorf("%w: GROUP_SIZE must be positive", ErrConfiguration)
	}
	if c.GroupPause < 0 {
		return fmt.Errorf("%w: GROUP_PAUSE must not be negative", ErrConfiguration)
	}
	if c.Watcher.MaxPolls < 0 {
		return fmt.Errorf("%w: CLAIM_MAX_POLLS must not be negative", ErrConfiguration)
	}
	if c.Policy.ReserveSOL.IsNegative() || c.Policy.MinClaimSOL.IsNegative() || !c.Policy.MinTradeSOL.IsPositive() {
		return fmt.Errorf("%w: SOL thresholds must be non-negative and MIN_TRADE_SOL positive", ErrConfiguration)
	}
	if c.Venue.Slippage < 0 || c.Venue.Slippage > 100 {
		return fmt.Errorf("%w: VENUE_SLIPPAGE must be a percent in [0, 100]", ErrConfiguration)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
