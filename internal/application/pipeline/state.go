package pipeline

import "github.com/bizhen/bizhen/internal/parse"

// Branch identifies one of the three fixed writer variants.
type Branch string

const (
	BranchProfound   Branch = "profound"
	BranchRhetorical Branch = "rhetorical"
	BranchSteady     Branch = "steady"
)

// Branches returns the fixed fan-out set in canonical order. The order
// also decides ties when the aggregator picks a best branch.
func Branches() []Branch {
	return []Branch{BranchProfound, BranchRhetorical, BranchSteady}
}

// StyleLabel returns the Chinese style name used in directives and events.
func (b Branch) StyleLabel() string {
	switch b {
	case BranchProfound:
		return "深刻型"
	case BranchRhetorical:
		return "文采型"
	case BranchSteady:
		return "稳健型"
	default:
		return string(b)
	}
}

// Stage names used in events, logs and metrics.
const (
	StageStrategize = "strategize"
	StageGather     = "gather"
	StageOutline    = "outline"
	StageProduce    = "produce"
	StageEvaluate   = "evaluate"
	StageRevise     = "revise"
	StageAudit      = "audit"
	StageAggregate  = "aggregate"
)

// State is the full pipeline state for one run. The prefix fields are
// written before fan-out; the per-branch maps are written only through
// Merge in the accumulator goroutine.
type State struct {
	Topic     string
	Angle     string
	Thesis    string
	Materials []string
	Outline   string

	Drafts    map[Branch]string
	Titles    map[Branch]string
	Scores    map[Branch]int
	Critiques map[Branch]string
	Decisions map[Branch]parse.Decision
	Comments  map[Branch]string
	Units     map[Branch]int
	Revisions map[Branch]int

	Errors []string

	// CurrentStage is telemetry only; no routing logic reads it.
	CurrentStage string
}

// NewState creates an empty run state for a topic.
func NewState(topic string) *State {
	return &State{
		Topic:     topic,
		Drafts:    make(map[Branch]string),
		Titles:    make(map[Branch]string),
		Scores:    make(map[Branch]int),
		Critiques: make(map[Branch]string),
		Decisions: make(map[Branch]parse.Decision),
		Comments:  make(map[Branch]string),
		Units:     make(map[Branch]int),
		Revisions: make(map[Branch]int),
	}
}

// Update is a partial state produced by one stage. Nil maps and empty
// fields leave the corresponding state untouched.
type Update struct {
	Angle     string
	Thesis    string
	Materials []string
	Outline   string

	Drafts    map[Branch]string
	Titles    map[Branch]string
	Scores    map[Branch]int
	Critiques map[Branch]string
	Decisions map[Branch]parse.Decision
	Comments  map[Branch]string
	Units     map[Branch]int
	Revisions map[Branch]int

	Errors []string

	Stage string
}

// Merge folds an update into existing and returns the merged state.
// It is pure: existing is never mutated.
//
// Map fields merge by key union with the update winning per key. Errors
// concatenate in order. The current-stage scalar is last-write-wins.
func Merge(existing *State, update Update) *State {
	merged := &State{
		Topic:        existing.Topic,
		Angle:        existing.Angle,
		Thesis:       existing.Thesis,
		Materials:    existing.Materials,
		Outline:      existing.Outline,
		Drafts:       mergeMap(existing.Drafts, update.Drafts),
		Titles:       mergeMap(existing.Titles, update.Titles),
		Scores:       mergeMap(existing.Scores, update.Scores),
		Critiques:    mergeMap(existing.Critiques, update.Critiques),
		Decisions:    mergeMap(existing.Decisions, update.Decisions),
		Comments:     mergeMap(existing.Comments, update.Comments),
		Units:        mergeMap(existing.Units, update.Units),
		Revisions:    mergeMap(existing.Revisions, update.Revisions),
		CurrentStage: existing.CurrentStage,
	}

	if update.Angle != "" {
		merged.Angle = update.Angle
	}
	if update.Thesis != "" {
		merged.Thesis = update.Thesis
	}
	if update.Materials != nil {
		merged.Materials = update.Materials
	}
	if update.Outline != "" {
		merged.Outline = update.Outline
	}
	if update.Stage != "" {
		merged.CurrentStage = update.Stage
	}

	merged.Errors = make([]string, 0, len(existing.Errors)+len(update.Errors))
	merged.Errors = append(merged.Errors, existing.Errors...)
	merged.Errors = append(merged.Errors, update.Errors...)

	return merged
}

func mergeMap[V any](existing, update map[Branch]V) map[Branch]V {
	merged := make(map[Branch]V, len(existing)+len(update))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}
