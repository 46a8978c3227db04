package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bizhen/bizhen/pkg/ports"
)

// SnapshotStore implements SnapshotStore using Redis. Terminal run
// snapshots are stored as JSON with a TTL.
type SnapshotStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSnapshotStore creates a new Redis snapshot store.
func NewSnapshotStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save persists a run's terminal snapshot with the configured TTL.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *ports.RunSnapshot) error {
	key := getSnapshotKey(snapshot.RunID)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("run_id", snapshot.RunID),
		zap.String("outcome", snapshot.Outcome))

	return nil
}

// Get retrieves a run's terminal snapshot.
func (s *SnapshotStore) Get(ctx context.Context, runID string) (*ports.RunSnapshot, error) {
	key := getSnapshotKey(runID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("snapshot not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot ports.RunSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// Delete removes a run's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, runID string) error {
	key := getSnapshotKey(runID)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	s.logger.Debug("snapshot deleted", zap.String("run_id", runID))

	return nil
}

// getSnapshotKey returns the Redis key for a run snapshot.
func getSnapshotKey(runID string) string {
	return fmt.Sprintf("bizhen:snapshot:%s", runID)
}
