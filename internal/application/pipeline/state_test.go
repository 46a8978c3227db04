package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizhen/bizhen/internal/parse"
)

func TestMergeKeyUnion(t *testing.T) {
	st := NewState("坚持")
	st = Merge(st, Update{Drafts: map[Branch]string{BranchProfound: "甲"}})
	st = Merge(st, Update{Drafts: map[Branch]string{BranchSteady: "乙"}})

	require.Len(t, st.Drafts, 2)
	assert.Equal(t, "甲", st.Drafts[BranchProfound])
	assert.Equal(t, "乙", st.Drafts[BranchSteady])
}

func TestMergeUpdateWinsPerKey(t *testing.T) {
	st := NewState("坚持")
	st = Merge(st, Update{
		Scores: map[Branch]int{BranchProfound: 40, BranchSteady: 50},
	})
	st = Merge(st, Update{
		Scores: map[Branch]int{BranchProfound: 55},
	})

	assert.Equal(t, 55, st.Scores[BranchProfound])
	assert.Equal(t, 50, st.Scores[BranchSteady])
}

func TestMergeErrorsAppendInOrder(t *testing.T) {
	st := NewState("坚持")
	st = Merge(st, Update{Errors: []string{"first"}})
	st = Merge(st, Update{Errors: []string{"second", "third"}})
	st = Merge(st, Update{})

	assert.Equal(t, []string{"first", "second", "third"}, st.Errors)
}

func TestMergeCurrentStageLastWriteWins(t *testing.T) {
	st := NewState("坚持")
	st = Merge(st, Update{Stage: StageProduce})
	st = Merge(st, Update{Stage: StageEvaluate})
	st = Merge(st, Update{Errors: []string{"x"}}) // no stage, keeps previous

	assert.Equal(t, StageEvaluate, st.CurrentStage)
}

func TestMergeIsPure(t *testing.T) {
	before := NewState("坚持")
	before = Merge(before, Update{
		Drafts: map[Branch]string{BranchProfound: "原稿"},
		Errors: []string{"e1"},
		Stage:  StageProduce,
	})

	after := Merge(before, Update{
		Drafts: map[Branch]string{BranchProfound: "改稿"},
		Errors: []string{"e2"},
		Stage:  StageRevise,
	})

	// The input state is untouched.
	assert.Equal(t, "原稿", before.Drafts[BranchProfound])
	assert.Equal(t, []string{"e1"}, before.Errors)
	assert.Equal(t, StageProduce, before.CurrentStage)

	assert.Equal(t, "改稿", after.Drafts[BranchProfound])
	assert.Equal(t, []string{"e1", "e2"}, after.Errors)
}

func TestMergeEmptyUpdateIsNoOp(t *testing.T) {
	st := NewState("坚持")
	st = Merge(st, Update{
		Angle:     "以小见大",
		Thesis:    "贵在坚持",
		Drafts:    map[Branch]string{BranchRhetorical: "文"},
		Decisions: map[Branch]parse.Decision{BranchRhetorical: {Action: parse.ActionAccept}},
	})

	merged := Merge(st, Update{})

	assert.Equal(t, st.Angle, merged.Angle)
	assert.Equal(t, st.Thesis, merged.Thesis)
	assert.Equal(t, st.Drafts, merged.Drafts)
	assert.Equal(t, st.Decisions, merged.Decisions)
	assert.Empty(t, merged.Errors)
}

func TestMergePrefixScalars(t *testing.T) {
	st := NewState("坚持")
	st = Merge(st, Update{Angle: "正面立意", Thesis: "论点一", Outline: "三段式"})
	st = Merge(st, Update{Thesis: "论点二"})

	assert.Equal(t, "正面立意", st.Angle)
	assert.Equal(t, "论点二", st.Thesis)
	assert.Equal(t, "三段式", st.Outline)
}

func TestStyleLabels(t *testing.T) {
	assert.Equal(t, "深刻型", BranchProfound.StyleLabel())
	assert.Equal(t, "文采型", BranchRhetorical.StyleLabel())
	assert.Equal(t, "稳健型", BranchSteady.StyleLabel())
}
