package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Audit actions. Anything unrecognized resolves to ActionAccept.
const (
	ActionAccept  = "ACCEPT"
	ActionRevise  = "REVISE"
	ActionRewrite = "REWRITE"
)

// Decision is the auditor's structured verdict on a draft.
type Decision struct {
	Action     string   `json:"action"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
	Comments   string   `json:"comments"`
}

var jsonBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?s)```\\s*(.*?)\\s*```"),
	regexp.MustCompile(`\{[^{}]*"action"[^{}]*\}`),
}

// Audit parses an auditor response into a Decision. It looks for a JSON
// block first (fenced or inline), then falls back to keyword scanning.
// The fail-open default is ACCEPT with 0.8 confidence.
func Audit(response string) Decision {
	decision := Decision{Action: ActionAccept, Confidence: 0.8}

	var jsonStr string
	for i, pattern := range jsonBlockPatterns {
		if m := pattern.FindStringSubmatch(response); m != nil {
			if i < 2 {
				jsonStr = m[1]
			} else {
				jsonStr = m[0]
			}
			break
		}
	}

	if jsonStr != "" {
		var parsed Decision
		if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &parsed); err == nil {
			parsed.Action = strings.ToUpper(parsed.Action)
			if parsed.Action != ActionAccept && parsed.Action != ActionRevise && parsed.Action != ActionRewrite {
				parsed.Action = ActionAccept
			}
			if parsed.Confidence == 0 {
				parsed.Confidence = 0.8
			}
			return parsed
		}
	}

	// No usable JSON: scan for action keywords.
	upper := strings.ToUpper(response)
	switch {
	case strings.Contains(upper, ActionRewrite) || strings.Contains(response, "重写"):
		decision.Action = ActionRewrite
	case strings.Contains(upper, ActionRevise) || strings.Contains(response, "修改") || strings.Contains(response, "修订"):
		decision.Action = ActionRevise
	}

	comments := response
	if runes := []rune(comments); len(runes) > 500 {
		comments = string(runes[:500])
	}
	decision.Comments = comments

	return decision
}
