package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bizhen/bizhen/pkg/ports"
)

// InMemorySnapshotStore implements SnapshotStore using an in-memory map.
// This is for testing purposes only.
type InMemorySnapshotStore struct {
	snapshots map[string]*ports.RunSnapshot
	mu        sync.RWMutex
}

// NewInMemorySnapshotStore creates a new in-memory snapshot store.
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots: make(map[string]*ports.RunSnapshot),
	}
}

// Save stores a run's terminal snapshot.
func (s *InMemorySnapshotStore) Save(_ context.Context, snapshot *ports.RunSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shallow copy to guard against caller mutation.
	snapCopy := *snapshot
	s.snapshots[snapshot.RunID] = &snapCopy
	return nil
}

// Get retrieves a run's terminal snapshot.
func (s *InMemorySnapshotStore) Get(_ context.Context, runID string) (*ports.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[runID]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", runID)
	}
	return snapshot, nil
}

// Delete removes a run's snapshot.
func (s *InMemorySnapshotStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, runID)
	return nil
}
