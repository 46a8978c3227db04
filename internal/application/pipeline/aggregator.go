package pipeline

// Run outcomes reported by the aggregator.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// A branch counts as successful only when its final draft is non-empty
// and long enough to be a plausible essay.
const minViableUnits = 100

// Summary is the aggregator's read-only verdict over the final state.
type Summary struct {
	Outcome   string
	Succeeded []Branch
	Failed    []Branch

	// Populated only on full success.
	MeanScore  float64
	BestBranch Branch
	BestScore  int
}

// Aggregate classifies the run after all branches have reported terminal
// state. It never mutates st.
func Aggregate(st *State) Summary {
	var summary Summary

	for _, br := range Branches() {
		if st.Drafts[br] != "" && st.Units[br] >= minViableUnits {
			summary.Succeeded = append(summary.Succeeded, br)
		} else {
			summary.Failed = append(summary.Failed, br)
		}
	}

	switch len(summary.Succeeded) {
	case 0:
		summary.Outcome = OutcomeFailure
	case len(Branches()):
		summary.Outcome = OutcomeSuccess
	default:
		summary.Outcome = OutcomePartial
	}

	if summary.Outcome != OutcomeSuccess {
		return summary
	}

	total := 0
	for _, br := range Branches() {
		score := st.Scores[br]
		total += score
		// First seen wins ties, in canonical branch order.
		if summary.BestBranch == "" || score > summary.BestScore {
			summary.BestBranch = br
			summary.BestScore = score
		}
	}
	summary.MeanScore = float64(total) / float64(len(Branches()))

	return summary
}
