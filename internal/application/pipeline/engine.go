package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizhen/bizhen/internal/parse"
	"github.com/bizhen/bizhen/internal/prompts"
	"github.com/bizhen/bizhen/internal/textcheck"
	"github.com/bizhen/bizhen/pkg/ports"
)

// Options holds the engine's pipeline knobs.
type Options struct {
	Band          textcheck.Band
	MaxRevisions  int
	LengthRetries int
	RunTimeout    time.Duration
	FinalizeGrace time.Duration
}

// Engine coordinates essay pipeline runs.
type Engine struct {
	invoker ports.Invoker
	events  ports.EventBus
	store   ports.SnapshotStore
	metrics ports.MetricsCollector
	prompts *prompts.Library
	logger  *zap.Logger

	opts Options

	// Track active runs
	runs sync.Map // map[string]*runContext
}

// runContext holds in-flight state for a single run.
type runContext struct {
	runID     string
	topic     string
	startedAt time.Time
	cancel    context.CancelFunc

	mu    sync.RWMutex
	stage string
}

func (rc *runContext) setStage(stage string) {
	rc.mu.Lock()
	rc.stage = stage
	rc.mu.Unlock()
}

func (rc *runContext) currentStage() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.stage
}

// RunStatus is the engine's answer to a status query.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// NewEngine creates a pipeline engine.
func NewEngine(
	invoker ports.Invoker,
	events ports.EventBus,
	store ports.SnapshotStore,
	metrics ports.MetricsCollector,
	library *prompts.Library,
	logger *zap.Logger,
	opts Options,
) *Engine {
	if opts.FinalizeGrace <= 0 {
		opts.FinalizeGrace = 30 * time.Second
	}
	return &Engine{
		invoker: invoker,
		events:  events,
		store:   store,
		metrics: metrics,
		prompts: library,
		logger:  logger,
		opts:    opts,
	}
}

// Submit starts a run for a topic and returns its id immediately.
// Execution happens in the background.
func (e *Engine) Submit(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}

	runID := uuid.New().String()

	runCtx, cancel := context.WithTimeout(context.Background(), e.opts.RunTimeout)
	rc := &runContext{
		runID:     runID,
		topic:     topic,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	e.runs.Store(runID, rc)

	e.metrics.RecordRunSubmitted()
	e.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("topic", topic))

	e.emit(ctx, runID, ports.EventProgress, StageStrategize,
		fmt.Sprintf("开始处理作文题目：%s", topic), nil)

	go e.execute(runCtx, rc)

	return runID, nil
}

// Status reports whether a run is still executing or, for finished runs,
// its terminal outcome from the snapshot store.
func (e *Engine) Status(ctx context.Context, runID string) (*RunStatus, error) {
	if val, ok := e.runs.Load(runID); ok {
		rc := val.(*runContext)
		return &RunStatus{
			RunID:     runID,
			Status:    "running",
			Stage:     rc.currentStage(),
			Topic:     rc.topic,
			StartedAt: rc.startedAt,
		}, nil
	}

	snap, err := e.store.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run not found: %w", err)
	}
	return &RunStatus{RunID: runID, Status: snap.Outcome}, nil
}

// Result returns the terminal snapshot of a finished run.
func (e *Engine) Result(ctx context.Context, runID string) (*ports.RunSnapshot, error) {
	if _, ok := e.runs.Load(runID); ok {
		return nil, fmt.Errorf("run still executing: %s", runID)
	}
	return e.store.Get(ctx, runID)
}

// Cancel aborts a running run. In-flight stages fail with the cancelled
// context and the run finalizes through the normal aggregation path.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	val, ok := e.runs.Load(runID)
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}

	rc := val.(*runContext)
	rc.cancel()

	e.logger.Info("run cancelled", zap.String("run_id", runID))
	return nil
}

// Shutdown cancels all active runs.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info("shutting down pipeline engine")

	e.runs.Range(func(key, value interface{}) bool {
		value.(*runContext).cancel()
		return true
	})

	return nil
}

// execute runs the full pipeline for one run: sequential prefix, branch
// fan-out, accumulator fold, barrier, aggregation, persistence.
func (e *Engine) execute(ctx context.Context, rc *runContext) {
	defer rc.cancel()

	st := NewState(rc.topic)
	st = e.runPrefix(ctx, rc, st)

	updates := make(chan Update, 64)
	folded := make(chan *State, 1)

	// Single accumulator goroutine: the only writer of shared state.
	go func() {
		cur := st
		for u := range updates {
			cur = Merge(cur, u)
			if u.Stage != "" {
				rc.setStage(u.Stage)
			}
		}
		folded <- cur
	}()

	var wg sync.WaitGroup
	for _, br := range Branches() {
		wg.Add(1)
		go func(br Branch) {
			defer wg.Done()
			e.runBranch(ctx, rc, st, br, updates)
		}(br)
	}

	// All three branches must reach terminal state before aggregation.
	wg.Wait()
	close(updates)
	final := <-folded

	e.finalize(rc, final)
}

// runPrefix executes the sequential setup stages. Each stage failure is
// recorded and the pipeline continues with fallbacks.
func (e *Engine) runPrefix(ctx context.Context, rc *runContext, st *State) *State {
	rc.setStage(StageStrategize)
	resp, err := e.invoke(ctx, StageStrategize, "strategist", map[string]string{
		"topic": st.Topic,
	})
	strategy := parse.TopicStrategy(resp, st.Topic)
	if err != nil {
		st = e.recordStageError(ctx, rc.runID, st, StageStrategize, err)
	}
	if strategy.Angle == "" {
		strategy.Angle = "围绕主题正面立论"
	}
	st = Merge(st, Update{Angle: strategy.Angle, Thesis: strategy.Thesis, Stage: StageStrategize})
	e.emit(ctx, rc.runID, ports.EventProgress, StageStrategize,
		fmt.Sprintf("确定立意：%s", strategy.Thesis), nil)

	rc.setStage(StageGather)
	resp, err = e.invoke(ctx, StageGather, "librarian", map[string]string{
		"topic":  st.Topic,
		"angle":  st.Angle,
		"thesis": st.Thesis,
	})
	if err != nil {
		st = e.recordStageError(ctx, rc.runID, st, StageGather, err)
	}
	materials := parse.Materials(resp)
	st = Merge(st, Update{Materials: materials, Stage: StageGather})
	e.emit(ctx, rc.runID, ports.EventProgress, StageGather,
		fmt.Sprintf("素材准备完成，共%d条", len(materials)), nil)

	rc.setStage(StageOutline)
	resp, err = e.invoke(ctx, StageOutline, "outliner", map[string]string{
		"topic":     st.Topic,
		"angle":     st.Angle,
		"thesis":    st.Thesis,
		"materials": strings.Join(st.Materials, "\n"),
	})
	outline := strings.TrimSpace(resp)
	if err != nil {
		st = e.recordStageError(ctx, rc.runID, st, StageOutline, err)
	}
	if outline == "" {
		outline = "开头提出中心论点；主体分层论证；结尾回扣主题。"
	}
	st = Merge(st, Update{Outline: outline, Stage: StageOutline})
	e.emit(ctx, rc.runID, ports.EventProgress, StageOutline, "大纲已生成", nil)

	return st
}

// finalize aggregates the folded state, persists the snapshot and emits
// the terminal event. It uses a fresh context so a timed-out run still
// gets its terminal record written.
func (e *Engine) finalize(rc *runContext, final *State) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.FinalizeGrace)
	defer cancel()

	rc.setStage(StageAggregate)
	summary := Aggregate(final)

	snap := &ports.RunSnapshot{
		RunID:       rc.runID,
		Outcome:     summary.Outcome,
		MeanScore:   summary.MeanScore,
		BestBranch:  string(summary.BestBranch),
		BestScore:   summary.BestScore,
		Errors:      final.Errors,
		CompletedAt: time.Now(),
	}
	for _, br := range summary.Succeeded {
		snap.Essays = append(snap.Essays, ports.EssaySnapshot{
			Branch:   string(br),
			Title:    final.Titles[br],
			Content:  final.Drafts[br],
			Score:    final.Scores[br],
			Critique: final.Critiques[br],
			Units:    final.Units[br],
		})
	}

	if err := e.store.Save(ctx, snap); err != nil {
		e.logger.Error("failed to save run snapshot",
			zap.String("run_id", rc.runID),
			zap.Error(err))
	}

	duration := time.Since(rc.startedAt)
	e.metrics.RecordRunCompleted(summary.Outcome, duration)

	switch summary.Outcome {
	case OutcomeFailure:
		e.emit(ctx, rc.runID, ports.EventError, StageAggregate,
			"所有写作分支均失败", map[string]interface{}{
				"outcome": summary.Outcome,
				"errors":  final.Errors,
			})
	case OutcomePartial:
		e.emit(ctx, rc.runID, ports.EventEnd, StageAggregate,
			fmt.Sprintf("部分完成：%d/%d个分支成功", len(summary.Succeeded), len(Branches())),
			map[string]interface{}{
				"outcome":   summary.Outcome,
				"succeeded": branchNames(summary.Succeeded),
				"failed":    branchNames(summary.Failed),
			})
	default:
		e.emit(ctx, rc.runID, ports.EventEnd, StageAggregate,
			fmt.Sprintf("全部完成，平均%.1f分，最佳：%s（%d分）",
				summary.MeanScore, summary.BestBranch.StyleLabel(), summary.BestScore),
			map[string]interface{}{
				"outcome":     summary.Outcome,
				"mean_score":  summary.MeanScore,
				"best_branch": string(summary.BestBranch),
				"best_score":  summary.BestScore,
			})
	}

	e.runs.Delete(rc.runID)

	e.logger.Info("run finished",
		zap.String("run_id", rc.runID),
		zap.String("outcome", summary.Outcome),
		zap.Duration("duration", duration))
}

// invoke resolves a directive template, formats it and calls the LLM.
func (e *Engine) invoke(ctx context.Context, stage, template string, vars map[string]string) (string, error) {
	tmpl, err := e.prompts.Get(template)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := e.invoker.Invoke(ctx, tmpl.System, prompts.Format(tmpl.User, vars))
	e.metrics.RecordLLMCall(stage, time.Since(start), err != nil)
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", stage, err)
	}
	return resp, nil
}

// emit publishes a run event. Publish failures are logged and swallowed;
// they never fail the owning stage.
func (e *Engine) emit(ctx context.Context, runID string, typ ports.EventType, source, message string, payload map[string]interface{}) {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Source:    source,
		Message:   message,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	if err := e.events.Publish(ctx, runID, event); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("run_id", runID),
			zap.String("source", source),
			zap.Error(err))
	}
}

// recordStageError records a prefix-stage failure in the state and emits
// an error event.
func (e *Engine) recordStageError(ctx context.Context, runID string, st *State, stage string, err error) *State {
	e.logger.Error("stage failed",
		zap.String("run_id", runID),
		zap.String("stage", stage),
		zap.Error(err))
	e.emit(ctx, runID, ports.EventError, stage, err.Error(), nil)
	return Merge(st, Update{Errors: []string{fmt.Sprintf("%s: %v", stage, err)}})
}

func branchNames(brs []Branch) []string {
	names := make([]string, len(brs))
	for i, br := range brs {
		names[i] = string(br)
	}
	return names
}
