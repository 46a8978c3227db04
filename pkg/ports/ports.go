package ports

import (
	"context"
	"time"
)

// EventType classifies run events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventEnd      EventType = "end"
	EventError    EventType = "error"
)

// Event is an ephemeral progress notification for a run. Events are
// delivered best-effort: no acknowledgement, no replay.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventBus publishes run events and lets API handlers stream them.
// Publish failures must never fail the publishing stage.
type EventBus interface {
	Publish(ctx context.Context, runID string, event Event) error
	Subscribe(ctx context.Context, runID string) (<-chan Event, error)
	Close() error
}

// Invoker is the opaque generation/evaluation collaborator.
// Implementations retry transient transport failures internally; a
// returned error is terminal for the call.
type Invoker interface {
	Invoke(ctx context.Context, systemDirective, userDirective string) (string, error)
}

// EssaySnapshot is the persisted-state boundary for one successful branch.
type EssaySnapshot struct {
	Branch   string `json:"branch"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Score    int    `json:"score"`
	Critique string `json:"critique"`
	Units    int    `json:"units"`
}

// RunSnapshot is the terminal record of a run.
type RunSnapshot struct {
	RunID       string          `json:"run_id"`
	Outcome     string          `json:"outcome"`
	Essays      []EssaySnapshot `json:"essays"`
	MeanScore   float64         `json:"mean_score"`
	BestBranch  string          `json:"best_branch,omitempty"`
	BestScore   int             `json:"best_score,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// SnapshotStore persists terminal run snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *RunSnapshot) error
	Get(ctx context.Context, runID string) (*RunSnapshot, error)
	Delete(ctx context.Context, runID string) error
}

// MetricsCollector records pipeline observability signals.
type MetricsCollector interface {
	RecordRunSubmitted()
	RecordRunCompleted(outcome string, duration time.Duration)
	RecordStageExecuted(branch, stage string, duration time.Duration)
	RecordLLMCall(stage string, duration time.Duration, failed bool)
	RecordRevisionLoop(branch string)
	RecordForcedAccept(branch string)
}
