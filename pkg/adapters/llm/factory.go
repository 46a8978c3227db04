package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bizhen/bizhen/pkg/adapters/llm/anthropic"
	"github.com/bizhen/bizhen/pkg/ports"
)

// Config holds LLM client configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int

	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffMin     time.Duration
	BackoffMax     time.Duration

	Logger *zap.Logger
}

// NewClient creates a new LLM client based on provider.
func NewClient(cfg *Config) (ports.Invoker, error) {
	switch cfg.Provider {
	case "anthropic":
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			RequestTimeout: cfg.RequestTimeout,
			MaxAttempts:    cfg.MaxAttempts,
			BackoffMin:     cfg.BackoffMin,
			BackoffMax:     cfg.BackoffMax,
		}, cfg.Logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
