package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the essay pipeline service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"BIZHEN_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// TTL for terminal run snapshots
	SnapshotTTL time.Duration `env:"REDIS_SNAPSHOT_TTL" envDefault:"24h"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`

	// Default model settings
	DefaultModel       string  `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	DefaultTemperature float64 `env:"LLM_DEFAULT_TEMPERATURE" envDefault:"0.7"`
	DefaultMaxTokens   int     `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"4096"`

	// Per-call timeout and transport retry. Transient failures are
	// retried with backoff before a call counts as failed; this is
	// independent of the pipeline's revision loop.
	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"600s"`
	MaxAttempts    int           `env:"LLM_MAX_ATTEMPTS" envDefault:"5"`
	BackoffMin     time.Duration `env:"LLM_BACKOFF_MIN" envDefault:"4s"`
	BackoffMax     time.Duration `env:"LLM_BACKOFF_MAX" envDefault:"10s"`
}

// PipelineConfig holds the length band and revision loop settings
type PipelineConfig struct {
	// Target unit-count band for a finished draft
	TargetMin   int `env:"PIPELINE_TARGET_MIN" envDefault:"850"`
	TargetMax   int `env:"PIPELINE_TARGET_MAX" envDefault:"1050"`
	TolerateMax int `env:"PIPELINE_TOLERATE_MAX" envDefault:"1100"`

	// Hard ceiling on revision loops per branch
	MaxRevisions int `env:"PIPELINE_MAX_REVISIONS" envDefault:"3"`

	// Length-driven retries inside a single revise step
	LengthRetries int `env:"PIPELINE_LENGTH_RETRIES" envDefault:"2"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"3600s"` // 1 hour
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server port
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate LLM config
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s (only 'anthropic' is supported)", c.LLM.Provider)
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("LLM max attempts must be at least 1")
	}

	// Validate pipeline config
	if c.Pipeline.TargetMin <= 0 || c.Pipeline.TargetMax < c.Pipeline.TargetMin {
		return fmt.Errorf("invalid target band: %d-%d", c.Pipeline.TargetMin, c.Pipeline.TargetMax)
	}
	if c.Pipeline.TolerateMax < c.Pipeline.TargetMax {
		return fmt.Errorf("tolerance ceiling %d below target max %d", c.Pipeline.TolerateMax, c.Pipeline.TargetMax)
	}
	if c.Pipeline.MaxRevisions < 1 {
		return fmt.Errorf("max revisions must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
