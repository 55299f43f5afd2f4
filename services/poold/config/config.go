// Package config captures the runtime settings for the poold gateway
// daemon: the HTTP listen address, auth/rate-limit/CORS middleware
// configuration, the executor HMAC bindings, and the storage/logging
// paths. It is separate from iptpool/config, which is the core engine's
// own TOML file of principals and economic parameters.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the poold gateway daemon.
type Config struct {
	ListenAddress string `yaml:"listen"`
	EngineConfig  string `yaml:"engine_config"`
	DataDir       string `yaml:"data_dir"`

	Auth         AuthConfig         `yaml:"auth"`
	ExecutorAuth ExecutorAuthConfig `yaml:"executor_auth"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	CORS         CORSConfig         `yaml:"cors"`
	Observability ObservabilityConfig `yaml:"observability"`
	EventLog     EventLogConfig     `yaml:"event_log"`
}

// AuthConfig configures the JWT bearer-token middleware gating the
// admin/oracle/fee_collector/user route groups.
type AuthConfig struct {
	Enabled            bool     `yaml:"enabled"`
	HMACSecret         string   `yaml:"hmac_secret"`
	Issuer             string   `yaml:"issuer"`
	Audience           string   `yaml:"audience"`
	ScopeClaim         string   `yaml:"scope_claim"`
	ClockSkewSeconds   int      `yaml:"clock_skew_seconds"`
	AdminScopes        []string `yaml:"admin_scopes"`
	OracleScopes       []string `yaml:"oracle_scopes"`
	FeeCollectorScopes []string `yaml:"fee_collector_scopes"`
	UserScopes         []string `yaml:"user_scopes"`
}

// ExecutorAuthConfig configures the HMAC+nonce authenticator gating
// BatchExecuteWithdraw, and the API-key-to-executor-address bindings.
type ExecutorAuthConfig struct {
	Enabled              bool              `yaml:"enabled"`
	Secrets              map[string]string `yaml:"secrets"`
	Executors            map[string]string `yaml:"executors"`
	TimestampSkewSeconds int               `yaml:"timestamp_skew_seconds"`
	NonceWindowSeconds   int               `yaml:"nonce_window_seconds"`
	NonceCapacity        int               `yaml:"nonce_capacity"`

	// MaxRequestsPerEpoch/MaxReserveVolumePerEpoch/EpochSeconds configure the
	// on-engine executor quota (distinct from the network-layer rate limiter
	// above it) guarding BatchExecuteWithdraw.
	MaxRequestsPerEpoch      uint32 `yaml:"max_requests_per_epoch"`
	MaxReserveVolumePerEpoch uint64 `yaml:"max_reserve_volume_per_epoch"`
	EpochSeconds             uint32 `yaml:"epoch_seconds"`
}

// RateLimitConfig configures the per-route token-bucket limits.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// CORSConfig configures the gateway's CORS middleware.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// ObservabilityConfig configures the Prometheus/logging middleware.
type ObservabilityConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ServiceName   string `yaml:"service_name"`
	MetricsPrefix string `yaml:"metrics_prefix"`
	LogRequests   bool   `yaml:"log_requests"`
}

// EventLogConfig configures the rotating JSON audit trail emitter.
type EventLogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8090",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8090"
	}
	cfg.EngineConfig = strings.TrimSpace(cfg.EngineConfig)
	if cfg.EngineConfig == "" {
		cfg.EngineConfig = "./pool.toml"
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = "./pool-data"
	}
	cfg.Auth.normalize()
	cfg.ExecutorAuth.normalize()
	cfg.EventLog.normalize()
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := cfg.ExecutorAuth.validate(); err != nil {
		return fmt.Errorf("executor_auth: %w", err)
	}
	return nil
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.ScopeClaim = strings.TrimSpace(cfg.ScopeClaim)
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.ClockSkewSeconds <= 0 {
		cfg.ClockSkewSeconds = 120
	}
}

func (cfg AuthConfig) validate() error {
	if cfg.Enabled && strings.TrimSpace(cfg.HMACSecret) == "" {
		return fmt.Errorf("hmac_secret is required when auth is enabled")
	}
	return nil
}

// ClockSkew returns the configured clock skew tolerance as a duration.
func (cfg AuthConfig) ClockSkew() time.Duration {
	return time.Duration(cfg.ClockSkewSeconds) * time.Second
}

func (cfg *ExecutorAuthConfig) normalize() {
	if cfg == nil {
		return
	}
	if cfg.TimestampSkewSeconds <= 0 {
		cfg.TimestampSkewSeconds = 120
	}
	if cfg.NonceWindowSeconds <= 0 {
		cfg.NonceWindowSeconds = 600
	}
	if cfg.NonceCapacity <= 0 {
		cfg.NonceCapacity = 4096
	}
	if cfg.MaxRequestsPerEpoch == 0 {
		cfg.MaxRequestsPerEpoch = 12
	}
	if cfg.EpochSeconds == 0 {
		cfg.EpochSeconds = 60
	}
}

func (cfg ExecutorAuthConfig) validate() error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Secrets) == 0 {
		return fmt.Errorf("at least one executor secret must be configured")
	}
	for apiKey := range cfg.Executors {
		if _, ok := cfg.Secrets[apiKey]; !ok {
			return fmt.Errorf("executor %q has no matching hmac secret", apiKey)
		}
	}
	return nil
}

// TimestampSkew returns the configured timestamp skew tolerance.
func (cfg ExecutorAuthConfig) TimestampSkew() time.Duration {
	return time.Duration(cfg.TimestampSkewSeconds) * time.Second
}

// NonceWindow returns the configured nonce replay window.
func (cfg ExecutorAuthConfig) NonceWindow() time.Duration {
	return time.Duration(cfg.NonceWindowSeconds) * time.Second
}

func (cfg *EventLogConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Path == "" {
		cfg.Path = "./pool-events.log"
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 7
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 28
	}
}
