package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config holds the Anthropic client settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int

	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
}

// Client implements the Invoker port against the Anthropic Messages API.
// Transient failures (rate limits, 5xx, network timeouts) are retried
// with exponential backoff; a returned error is terminal for the call.
type Client struct {
	client anthropic.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new Anthropic client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 600 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 4 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}

	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Invoke sends a system+user directive pair and returns the text of the
// first content block.
func (c *Client) Invoke(ctx context.Context, systemDirective, userDirective string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var result string
	operation := func() error {
		message, err := c.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:       anthropic.Model(c.cfg.Model),
			MaxTokens:   int64(c.cfg.MaxTokens),
			Temperature: anthropic.Float(c.cfg.Temperature),
			System: []anthropic.TextBlockParam{
				{Text: systemDirective},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userDirective)),
			},
		})
		if err != nil {
			if isRetryable(err) {
				c.logger.Warn("anthropic call failed, will retry", zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("empty response from model"))
		}

		result = message.Content[0].Text
		return nil
	}

	// Fresh backoff per call: ExponentialBackOff is stateful.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BackoffMin
	bo.MaxInterval = c.cfg.BackoffMax
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxAttempts-1)), callCtx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	return result, nil
}

// isRetryable classifies transport errors. Rate limits and server errors
// are transient; context cancellation and client errors are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
