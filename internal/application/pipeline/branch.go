package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bizhen/bizhen/internal/parse"
	"github.com/bizhen/bizhen/internal/textcheck"
	"github.com/bizhen/bizhen/pkg/ports"
)

// branchRun carries the working state of one writer branch. It is owned
// by a single goroutine; shared state is reached only through updates.
type branchRun struct {
	e      *Engine
	runID  string
	branch Branch

	topic     string
	thesis    string
	outline   string
	materials string

	updates chan<- Update

	draft         string
	title         string
	critique      string
	auditFeedback string
	revisions     int
}

// runBranch drives one branch from produce to accepted. Errors and panics
// never propagate to sibling branches: a panic is recorded and the branch
// keeps whatever draft it had, defaulting to accept.
func (e *Engine) runBranch(ctx context.Context, rc *runContext, st *State, br Branch, updates chan<- Update) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("branch panicked",
				zap.String("run_id", rc.runID),
				zap.String("branch", string(br)),
				zap.Any("panic", r))
			updates <- Update{
				Errors: []string{fmt.Sprintf("%s: panic: %v", br, r)},
			}
		}
	}()

	b := &branchRun{
		e:         e,
		runID:     rc.runID,
		branch:    br,
		topic:     st.Topic,
		thesis:    st.Thesis,
		outline:   st.Outline,
		materials: strings.Join(st.Materials, "\n"),
		updates:   updates,
	}
	b.run(ctx)
}

// run is the branch state machine: produce, evaluate, revise, audit, with
// the audit verdict routing back into revise or produce until accept.
func (b *branchRun) run(ctx context.Context) {
	next := StageProduce
	for {
		switch next {
		case StageProduce:
			b.produce(ctx)
			next = StageEvaluate

		case StageEvaluate:
			b.evaluate(ctx)
			next = StageRevise

		case StageRevise:
			b.revise(ctx)
			next = StageAudit

		case StageAudit:
			switch b.audit(ctx) {
			case RouteRevise:
				b.revisions++
				b.e.metrics.RecordRevisionLoop(string(b.branch))
				b.pushRevisionCount()
				next = StageRevise
			case RouteRewrite:
				b.revisions++
				b.e.metrics.RecordRevisionLoop(string(b.branch))
				b.pushRevisionCount()
				next = StageProduce
			default:
				b.emit(ctx, ports.EventProgress, StageAudit,
					fmt.Sprintf("%s稿件通过审核", b.branch.StyleLabel()), nil)
				return
			}
		}
	}
}

// produce generates a fresh draft. On failure the branch continues with
// empty content so the sibling branches are never disturbed.
func (b *branchRun) produce(ctx context.Context) {
	start := time.Now()
	resp, err := b.e.invoke(ctx, StageProduce, "writer_"+string(b.branch), map[string]string{
		"topic":     b.topic,
		"thesis":    b.thesis,
		"outline":   b.outline,
		"materials": b.materials,
	})
	b.e.metrics.RecordStageExecuted(string(b.branch), StageProduce, time.Since(start))

	if err != nil {
		b.fail(ctx, StageProduce, err)
		b.title, b.draft = "", ""
	} else {
		b.title, b.draft = parse.Essay(resp)
	}

	units := textcheck.CountUnits(b.draft)
	b.updates <- Update{
		Drafts: map[Branch]string{b.branch: b.draft},
		Titles: map[Branch]string{b.branch: b.title},
		Units:  map[Branch]int{b.branch: units},
		Stage:  StageProduce,
	}
	b.emit(ctx, ports.EventProgress, StageProduce,
		fmt.Sprintf("%s初稿完成，《%s》，%d字", b.branch.StyleLabel(), b.title, units), nil)
}

// evaluate scores the draft. A failed call falls back to the default
// score so the loop keeps moving.
func (b *branchRun) evaluate(ctx context.Context) {
	start := time.Now()
	resp, err := b.e.invoke(ctx, StageEvaluate, "grader", map[string]string{
		"topic": b.topic,
		"style": b.branch.StyleLabel(),
		"essay": b.draft,
	})
	b.e.metrics.RecordStageExecuted(string(b.branch), StageEvaluate, time.Since(start))

	var score int
	if err != nil {
		b.fail(ctx, StageEvaluate, err)
		score, b.critique = parse.DefaultScore, "评分不可用"
	} else {
		score, b.critique = parse.Score(resp)
	}

	b.updates <- Update{
		Scores:    map[Branch]int{b.branch: score},
		Critiques: map[Branch]string{b.branch: b.critique},
		Stage:     StageEvaluate,
	}
	b.emit(ctx, ports.EventProgress, StageEvaluate,
		fmt.Sprintf("%s评分%d分（%s）", b.branch.StyleLabel(), score, parse.GradeLevel(score)), nil)
}

// revise rewrites the draft against the combined evaluator and auditor
// feedback, then re-measures with the deterministic counter. Out-of-band
// results are retried with an escalated directive stating the exact
// delta; the last attempt is kept regardless.
func (b *branchRun) revise(ctx context.Context) {
	start := time.Now()

	feedback := b.critique
	if b.auditFeedback != "" {
		feedback += "\n审核意见：" + b.auditFeedback
	}

	current, title := b.draft, b.title
	for attempt := 0; attempt <= b.e.opts.LengthRetries; attempt++ {
		report := textcheck.AnalyzeLength(current, b.e.opts.Band)

		instruction := b.lengthInstruction(report)
		if attempt > 0 && report.Suggestion != "" {
			instruction = report.Suggestion
		}

		resp, err := b.e.invoke(ctx, StageRevise, "reviser", map[string]string{
			"topic":              b.topic,
			"units":              fmt.Sprintf("%d", report.Units),
			"length_status":      lengthStatusLabel(report.Status),
			"length_instruction": instruction,
			"feedback":           feedback,
			"essay":              current,
		})
		if err != nil {
			b.fail(ctx, StageRevise, err)
			break // keep the pre-call draft
		}

		revisedTitle, revised := parse.Essay(resp)
		if revised != "" {
			current = revised
		}
		if revisedTitle != "" {
			title = revisedTitle
		}

		if textcheck.AnalyzeLength(current, b.e.opts.Band).InRange() {
			break
		}
	}

	b.draft, b.title = current, title
	units := textcheck.CountUnits(b.draft)
	b.e.metrics.RecordStageExecuted(string(b.branch), StageRevise, time.Since(start))

	b.updates <- Update{
		Drafts: map[Branch]string{b.branch: b.draft},
		Titles: map[Branch]string{b.branch: b.title},
		Units:  map[Branch]int{b.branch: units},
		Stage:  StageRevise,
	}
	b.emit(ctx, ports.EventProgress, StageRevise,
		fmt.Sprintf("%s修订完成，%d字", b.branch.StyleLabel(), units), nil)
}

// audit asks the reviewer for a verdict, applies the deterministic
// overrides and returns the routing target.
func (b *branchRun) audit(ctx context.Context) RouteTarget {
	start := time.Now()
	structure := textcheck.CheckStructure(b.draft)

	resp, err := b.e.invoke(ctx, StageAudit, "reviewer", map[string]string{
		"topic":    b.topic,
		"style":    b.branch.StyleLabel(),
		"essay":    b.draft,
		"units":    fmt.Sprintf("%d", textcheck.CountUnits(b.draft)),
		"revision": fmt.Sprintf("%d", b.revisions+1),
	})
	b.e.metrics.RecordStageExecuted(string(b.branch), StageAudit, time.Since(start))

	var decision parse.Decision
	if err != nil {
		b.fail(ctx, StageAudit, err)
		decision = parse.Decision{Action: parse.ActionAccept, Confidence: 0.8, Comments: "审核不可用，默认接受"}
	} else {
		decision = parse.Audit(resp)
	}

	forced := b.revisions >= b.e.opts.MaxRevisions
	decision = adjustDecision(decision, structure, b.revisions, b.e.opts.MaxRevisions)
	if forced {
		b.e.metrics.RecordForcedAccept(string(b.branch))
		b.emit(ctx, ports.EventProgress, StageAudit,
			fmt.Sprintf("%s达到修订上限，强制接受", b.branch.StyleLabel()), nil)
	}

	b.auditFeedback = decision.Comments
	if len(decision.Issues) > 0 {
		b.auditFeedback = strings.Join(decision.Issues, "；") + "\n" + b.auditFeedback
	}

	b.updates <- Update{
		Decisions: map[Branch]parse.Decision{b.branch: decision},
		Comments:  map[Branch]string{b.branch: decision.Comments},
		Stage:     StageAudit,
	}

	return Route(decision)
}

// fail records a stage failure without stopping the branch.
func (b *branchRun) fail(ctx context.Context, stage string, err error) {
	b.e.logger.Error("branch stage failed",
		zap.String("run_id", b.runID),
		zap.String("branch", string(b.branch)),
		zap.String("stage", stage),
		zap.Error(err))
	b.emit(ctx, ports.EventError, stage,
		fmt.Sprintf("%s：%v", b.branch.StyleLabel(), err), nil)
	b.updates <- Update{
		Errors: []string{fmt.Sprintf("%s/%s: %v", b.branch, stage, err)},
	}
}

func (b *branchRun) pushRevisionCount() {
	b.updates <- Update{
		Revisions: map[Branch]int{b.branch: b.revisions},
	}
}

func (b *branchRun) emit(ctx context.Context, typ ports.EventType, source, message string, payload map[string]interface{}) {
	b.e.emit(ctx, b.runID, typ, source+"/"+string(b.branch), message, payload)
}

// lengthInstruction picks the reviser directive fragment for a length
// classification, with plain fallbacks when the template carries none.
func (b *branchRun) lengthInstruction(report textcheck.LengthReport) string {
	switch report.Status {
	case textcheck.LengthTooShort:
		return b.e.prompts.Fragment("reviser", "expand", report.Suggestion)
	case textcheck.LengthTooLong:
		return b.e.prompts.Fragment("reviser", "reduce", report.Suggestion)
	default:
		return b.e.prompts.Fragment("reviser", "maintain", "保持当前篇幅。")
	}
}

func lengthStatusLabel(status textcheck.LengthStatus) string {
	switch status {
	case textcheck.LengthPass:
		return "符合要求"
	case textcheck.LengthTolerate:
		return "略超上限，可接受"
	case textcheck.LengthTooLong:
		return "超出上限"
	case textcheck.LengthTooShort:
		return "低于下限"
	default:
		return string(status)
	}
}
