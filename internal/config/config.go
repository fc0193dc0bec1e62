package config

import (
	"time"

	"github.com/postpilot/postpilot/internal/ailink"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the user config file, then
// POSTPILOT_* environment variables, then runtime overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Humanizer HumanizerConfig `mapstructure:"humanizer"`
	AILink    ailink.Config   `mapstructure:"ailink"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the SQL backend.
//
// Driver "libsql" (default) supports local files and remote Turso URLs.
// Driver "sqlite" is the pure-Go modernc driver for local files and tests.
type StoreConfig struct {
	Driver    string `mapstructure:"driver" validate:"omitempty,oneof=libsql sqlite"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig configures the offline response cache.
type CacheConfig struct {
	// DefaultTTL is applied to live responses saved by the network-aware fetcher.
	DefaultTTL time.Duration `mapstructure:"default_ttl" validate:"gte=0"`

	// SweepInterval controls the background expiry sweep. Zero disables it.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`

	// Offline forces cache-only mode regardless of connectivity.
	Offline bool `mapstructure:"offline"`

	// ProbeAddr is dialed to decide whether the network is reachable.
	ProbeAddr    string        `mapstructure:"probe_addr"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// RateLimitConfig configures the fixed-window request limiters.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Backend selects the counter store: memory, store (SQL), or redis.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=memory store redis"`

	// CleanupProbability is the chance that a check sweeps expired entries.
	CleanupProbability float64 `mapstructure:"cleanup_probability" validate:"gte=0,lte=1"`

	// TrustUserHeader keys HTTP limits on X-User-ID instead of the client IP.
	// Only safe when an authenticating proxy sets the header.
	TrustUserHeader bool `mapstructure:"trust_user_header"`

	Redis RedisConfig `mapstructure:"redis"`

	// Limiters maps a limiter name to its window settings.
	Limiters map[string]LimiterConfig `mapstructure:"limiters" validate:"dive"`
}

// LimiterConfig defines one named limiter instance.
type LimiterConfig struct {
	Prefix string        `mapstructure:"prefix"`
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
	Limit  int           `mapstructure:"limit" validate:"gte=0"`
}

// RedisConfig holds connection settings for the redis limiter backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HumanizerConfig controls generation parameters and post-processing.
type HumanizerConfig struct {
	Temperature              float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
	TopP                     float64 `mapstructure:"top_p" validate:"gte=0,lte=1"`
	AddFillerWords           bool    `mapstructure:"add_filler_words"`
	AddGrammaticalVariations bool    `mapstructure:"add_grammatical_variations"`
	AddPauses                bool    `mapstructure:"add_pauses"`
	MaxTokens                int     `mapstructure:"max_tokens" validate:"gte=0"`

	// Seed fixes the random source when non-zero.
	Seed uint64 `mapstructure:"seed"`

	Role string `mapstructure:"role"`
}

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"gte=0,lte=1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
