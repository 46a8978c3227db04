package memory

import (
	"context"
	"sync"

	"github.com/bizhen/bizhen/pkg/ports"
)

// InMemoryEventBus implements EventBus with in-process channels.
// This is for testing purposes only.
type InMemoryEventBus struct {
	mu     sync.Mutex
	subs   map[string][]chan ports.Event
	closed bool
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subs: make(map[string][]chan ports.Event),
	}
}

// Publish delivers an event to all current subscribers of the run.
// Slow subscribers drop events instead of blocking the publisher.
func (e *InMemoryEventBus) Publish(_ context.Context, runID string, event ports.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subs[runID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of events for a run. The channel closes
// when ctx is cancelled or the bus is closed.
func (e *InMemoryEventBus) Subscribe(ctx context.Context, runID string) (<-chan ports.Event, error) {
	ch := make(chan ports.Event, 16)

	e.mu.Lock()
	e.subs[runID] = append(e.subs[runID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(runID, ch)
	}()

	return ch, nil
}

// Close closes the event bus and all subscriber channels.
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	for _, chans := range e.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	e.subs = make(map[string][]chan ports.Event)
	return nil
}

func (e *InMemoryEventBus) unsubscribe(runID string, ch chan ports.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	chans := e.subs[runID]
	for i, c := range chans {
		if c == ch {
			e.subs[runID] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.subs[runID]) == 0 {
		delete(e.subs, runID)
	}
}
