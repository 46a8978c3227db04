// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Pub/Sub per-run channels
//   - memory: In-memory for testing
package events
