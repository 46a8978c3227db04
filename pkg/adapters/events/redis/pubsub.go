package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bizhen/bizhen/pkg/ports"
)

// PubSubEventBus implements EventBus on Redis Pub/Sub. Events are
// ephemeral: a subscriber sees only events published while it listens,
// which matches the fire-and-forget contract.
type PubSubEventBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPubSubEventBus creates a Redis Pub/Sub event bus.
func NewPubSubEventBus(client *redis.Client, logger *zap.Logger) *PubSubEventBus {
	return &PubSubEventBus{
		client: client,
		logger: logger,
	}
}

// Publish publishes a run event to the run's channel.
func (e *PubSubEventBus) Publish(ctx context.Context, runID string, event ports.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := getChannel(runID)
	if err := e.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("channel", channel))

	return nil
}

// Subscribe returns a channel of events for a run. The channel closes
// when ctx is cancelled or the Redis subscription drops.
func (e *PubSubEventBus) Subscribe(ctx context.Context, runID string) (<-chan ports.Event, error) {
	channel := getChannel(runID)
	sub := e.client.Subscribe(ctx, channel)

	// Force the subscription to be established before returning so the
	// caller never misses events published right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan ports.Event, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var event ports.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					e.logger.Error("failed to unmarshal event",
						zap.String("channel", channel),
						zap.Error(err))
					continue
				}

				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	e.logger.Info("subscribed to run events", zap.String("channel", channel))

	return out, nil
}

// Close closes the event bus. The Redis client is owned by the caller.
func (e *PubSubEventBus) Close() error {
	return nil
}

// getChannel returns the Pub/Sub channel name for a run.
func getChannel(runID string) string {
	return fmt.Sprintf("run_stream:%s", runID)
}
