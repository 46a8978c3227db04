package pipeline

import (
	"fmt"

	"github.com/bizhen/bizhen/internal/parse"
	"github.com/bizhen/bizhen/internal/textcheck"
)

// RouteTarget is where a branch goes after an audit.
type RouteTarget string

const (
	RouteAccept  RouteTarget = "accept"
	RouteRevise  RouteTarget = "revise"
	RouteRewrite RouteTarget = "rewrite"
)

// Route maps an audit decision to the branch's next step. Unknown actions
// fail open to accept so a malformed auditor can never wedge a branch.
func Route(decision parse.Decision) RouteTarget {
	switch decision.Action {
	case parse.ActionRevise:
		return RouteRevise
	case parse.ActionRewrite:
		return RouteRewrite
	case parse.ActionAccept:
		return RouteAccept
	default:
		return RouteAccept
	}
}

// adjustDecision applies the deterministic overrides that bound the
// revision loop:
//
//   - an ACCEPT on a structurally incomplete draft is demoted to REVISE;
//   - from the second revision on, REWRITE is demoted to REVISE so a full
//     restart can no longer be requested late in the loop;
//   - at maxRevisions the decision is forced to ACCEPT regardless of the
//     auditor's verdict, with the rationale recorded in the comments.
func adjustDecision(decision parse.Decision, structure textcheck.StructureReport, revisions, maxRevisions int) parse.Decision {
	if revisions >= maxRevisions {
		decision.Action = parse.ActionAccept
		decision.Comments = fmt.Sprintf("已达到最大修订次数（%d次），强制接受当前稿件。%s",
			maxRevisions, decision.Comments)
		return decision
	}

	if decision.Action == parse.ActionRewrite && revisions >= maxRevisions-1 {
		decision.Action = parse.ActionRevise
	}

	if decision.Action == parse.ActionAccept && !structure.Complete {
		decision.Action = parse.ActionRevise
		if structure.Feedback != "" {
			decision.Issues = append(decision.Issues, structure.Feedback)
		}
	}

	return decision
}
