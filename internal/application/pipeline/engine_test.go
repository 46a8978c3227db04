package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bizhen/bizhen/internal/prompts"
	"github.com/bizhen/bizhen/internal/textcheck"
	"github.com/bizhen/bizhen/pkg/ports"
)

// goodEssay is a structurally complete draft inside the 850-1050 band.
var goodEssay = strings.Join([]string{
	"随着" + strings.Repeat("思", 118),
	"首先，" + strings.Repeat("论", 697),
	"综上所述，" + strings.Repeat("终", 145),
}, "\n")

const acceptVerdict = "```json\n{\"action\": \"ACCEPT\", \"confidence\": 0.95, \"issues\": [], \"comments\": \"质量合格\"}\n```"

// scriptInvoker routes calls on distinctive phrases in the system
// directive, mirroring how each stage's directive is worded.
type scriptInvoker struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(inv *scriptInvoker, stage, system, user string) (string, error)
}

func newScriptInvoker(respond func(inv *scriptInvoker, stage, system, user string) (string, error)) *scriptInvoker {
	return &scriptInvoker{calls: make(map[string]int), respond: respond}
}

func (s *scriptInvoker) stageOf(system string) string {
	switch {
	case strings.Contains(system, "审题"):
		return "strategist"
	case strings.Contains(system, "素材管理员"):
		return "librarian"
	case strings.Contains(system, "结构设计专家"):
		return "outliner"
	case strings.Contains(system, "写手"):
		return "writer"
	case strings.Contains(system, "阅卷组长"):
		return "grader"
	case strings.Contains(system, "文章编辑"):
		return "reviser"
	case strings.Contains(system, "质检审核员"):
		return "reviewer"
	default:
		return "unknown"
	}
}

func (s *scriptInvoker) Invoke(_ context.Context, system, user string) (string, error) {
	stage := s.stageOf(system)
	s.mu.Lock()
	s.calls[stage]++
	s.mu.Unlock()
	return s.respond(s, stage, system, user)
}

func (s *scriptInvoker) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}

func defaultResponses(inv *scriptInvoker, stage, system, user string) (string, error) {
	switch stage {
	case "strategist":
		return "立意：以小见大\n中心论点：贵在坚持", nil
	case "librarian":
		return "- 锲而不舍，金石可镂。——《荀子》\n- 水滴石穿的事实论据", nil
	case "outliner":
		return "【开头】提出论点【主体】三段论证【结尾】升华", nil
	case "writer":
		return "标题：坚持的力量\n" + goodEssay, nil
	case "grader":
		return "总分：50\n评语\n内容充实，论证有力。", nil
	case "reviser":
		return "标题：坚持的力量\n" + goodEssay, nil
	case "reviewer":
		return acceptVerdict, nil
	default:
		return "", fmt.Errorf("unexpected stage: %s", stage)
	}
}

// memBus collects published events in memory.
type memBus struct {
	mu     sync.Mutex
	events map[string][]ports.Event
}

func newMemBus() *memBus { return &memBus{events: make(map[string][]ports.Event)} }

func (b *memBus) Publish(_ context.Context, runID string, event ports.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[runID] = append(b.events[runID], event)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan ports.Event, error) {
	ch := make(chan ports.Event)
	close(ch)
	return ch, nil
}

func (b *memBus) Close() error { return nil }

func (b *memBus) byRun(runID string) []ports.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.Event(nil), b.events[runID]...)
}

// memStore keeps snapshots in a map.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]*ports.RunSnapshot
}

func newMemStore() *memStore { return &memStore{snaps: make(map[string]*ports.RunSnapshot)} }

func (s *memStore) Save(_ context.Context, snap *ports.RunSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.RunID] = snap
	return nil
}

func (s *memStore) Get(_ context.Context, runID string) (*ports.RunSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[runID]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", runID)
	}
	return snap, nil
}

func (s *memStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, runID)
	return nil
}

// countMetrics counts metric signals.
type countMetrics struct {
	mu            sync.Mutex
	submitted     int
	completed     map[string]int
	revisionLoops int
	forcedAccepts int
}

func newCountMetrics() *countMetrics { return &countMetrics{completed: make(map[string]int)} }

func (m *countMetrics) RecordRunSubmitted() {
	m.mu.Lock()
	m.submitted++
	m.mu.Unlock()
}

func (m *countMetrics) RecordRunCompleted(outcome string, _ time.Duration) {
	m.mu.Lock()
	m.completed[outcome]++
	m.mu.Unlock()
}

func (m *countMetrics) RecordStageExecuted(string, string, time.Duration) {}
func (m *countMetrics) RecordLLMCall(string, time.Duration, bool)        {}

func (m *countMetrics) RecordRevisionLoop(string) {
	m.mu.Lock()
	m.revisionLoops++
	m.mu.Unlock()
}

func (m *countMetrics) RecordForcedAccept(string) {
	m.mu.Lock()
	m.forcedAccepts++
	m.mu.Unlock()
}

func (m *countMetrics) forced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forcedAccepts
}

func newTestEngine(t *testing.T, inv ports.Invoker, bus ports.EventBus, store ports.SnapshotStore, metrics ports.MetricsCollector) *Engine {
	t.Helper()
	lib, err := prompts.Load()
	require.NoError(t, err)

	return NewEngine(inv, bus, store, metrics, lib, zap.NewNop(), Options{
		Band:          textcheck.DefaultBand(),
		MaxRevisions:  3,
		LengthRetries: 2,
		RunTimeout:    10 * time.Second,
	})
}

func awaitSnapshot(t *testing.T, store *memStore, runID string) *ports.RunSnapshot {
	t.Helper()
	var snap *ports.RunSnapshot
	require.Eventually(t, func() bool {
		s, err := store.Get(context.Background(), runID)
		if err != nil {
			return false
		}
		snap = s
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestEngineFullSuccessRun(t *testing.T) {
	inv := newScriptInvoker(defaultResponses)
	bus := newMemBus()
	store := newMemStore()
	metrics := newCountMetrics()
	engine := newTestEngine(t, inv, bus, store, metrics)

	runID, err := engine.Submit(context.Background(), "谈坚持")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	snap := awaitSnapshot(t, store, runID)

	assert.Equal(t, OutcomeSuccess, snap.Outcome)
	require.Len(t, snap.Essays, 3)
	assert.InDelta(t, 50.0, snap.MeanScore, 0.001)
	assert.Equal(t, string(BranchProfound), snap.BestBranch)
	assert.Equal(t, 50, snap.BestScore)
	assert.Empty(t, snap.Errors)

	for _, essay := range snap.Essays {
		assert.Equal(t, "坚持的力量", essay.Title)
		assert.GreaterOrEqual(t, essay.Units, 850)
		assert.LessOrEqual(t, essay.Units, 1100)
		assert.NotEmpty(t, essay.Critique)
	}

	// Three writers, one strategize/gather/outline each.
	assert.Equal(t, 1, inv.count("strategist"))
	assert.Equal(t, 1, inv.count("librarian"))
	assert.Equal(t, 1, inv.count("outliner"))
	assert.Equal(t, 3, inv.count("writer"))
	assert.Equal(t, 3, inv.count("reviewer"))

	// Terminal event is the last one published. The snapshot is saved
	// just before it, so wait for it to land.
	var last ports.Event
	require.Eventually(t, func() bool {
		events := bus.byRun(runID)
		if len(events) == 0 {
			return false
		}
		last = events[len(events)-1]
		return last.Type == ports.EventEnd
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, OutcomeSuccess, last.Payload["outcome"])
}

func TestEngineStatusLifecycle(t *testing.T) {
	inv := newScriptInvoker(defaultResponses)
	store := newMemStore()
	engine := newTestEngine(t, inv, newMemBus(), store, newCountMetrics())

	runID, err := engine.Submit(context.Background(), "谈坚持")
	require.NoError(t, err)

	awaitSnapshot(t, store, runID)

	require.Eventually(t, func() bool {
		status, err := engine.Status(context.Background(), runID)
		return err == nil && status.Status == OutcomeSuccess
	}, 5*time.Second, 10*time.Millisecond)

	result, err := engine.Result(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, runID, result.RunID)

	_, err = engine.Status(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestEngineRejectsEmptyTopic(t *testing.T) {
	engine := newTestEngine(t, newScriptInvoker(defaultResponses), newMemBus(), newMemStore(), newCountMetrics())

	_, err := engine.Submit(context.Background(), "   ")
	assert.Error(t, err)
}

// An auditor that never accepts must still terminate through the forced
// accept at the revision ceiling.
func TestEngineSafetyValveTerminatesHostileAuditor(t *testing.T) {
	reviseForever := func(inv *scriptInvoker, stage, system, user string) (string, error) {
		if stage == "reviewer" {
			return `{"action": "REVISE", "confidence": 0.9, "issues": ["还不够好"], "comments": "继续修改"}`, nil
		}
		return defaultResponses(inv, stage, system, user)
	}

	inv := newScriptInvoker(reviseForever)
	store := newMemStore()
	metrics := newCountMetrics()
	engine := newTestEngine(t, inv, newMemBus(), store, metrics)

	runID, err := engine.Submit(context.Background(), "谈坚持")
	require.NoError(t, err)

	snap := awaitSnapshot(t, store, runID)

	assert.Equal(t, OutcomeSuccess, snap.Outcome)
	require.Len(t, snap.Essays, 3)

	// Every branch hits the ceiling exactly once.
	assert.Equal(t, 3, metrics.forced())

	// Audits per branch: revision counts 0 through 3, then accept.
	assert.Equal(t, 12, inv.count("reviewer"))
}

// A branch whose writer and reviser both fail ends with an empty draft;
// the run still finalizes as partial with the other branches intact.
func TestEnginePartialWhenOneBranchFails(t *testing.T) {
	failing := func(inv *scriptInvoker, stage, system, user string) (string, error) {
		switch stage {
		case "writer":
			if strings.Contains(system, "深刻型") {
				return "", fmt.Errorf("model overloaded")
			}
		case "reviser":
			if strings.Contains(user, "当前字数：0字") {
				return "", fmt.Errorf("model overloaded")
			}
		}
		return defaultResponses(inv, stage, system, user)
	}

	inv := newScriptInvoker(failing)
	store := newMemStore()
	engine := newTestEngine(t, inv, newMemBus(), store, newCountMetrics())

	runID, err := engine.Submit(context.Background(), "谈坚持")
	require.NoError(t, err)

	snap := awaitSnapshot(t, store, runID)

	assert.Equal(t, OutcomePartial, snap.Outcome)
	require.Len(t, snap.Essays, 2)
	for _, essay := range snap.Essays {
		assert.NotEqual(t, string(BranchProfound), essay.Branch)
	}
	assert.NotEmpty(t, snap.Errors)
}
