package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Grading bounds and the conservative fallback when no score can be read.
const (
	MaxScore     = 60
	DefaultScore = 45
)

var (
	totalScorePattern  = regexp.MustCompile(`总分[：:]\s*(\d+)`)
	nearbyScorePattern = regexp.MustCompile(`(\d+)\s*[分/]`)
)

var critiqueMarkers = []string{"评语", "总体评价", "评分理由", "总评"}

var critiqueWordPattern = regexp.MustCompile(`(?i)critique`)

// Score extracts a 0-60 score and the critique text from an evaluator
// response. An explicit "总分: N" wins; otherwise the first bounded number
// next to a 分 or / marker is used. Unparseable or out-of-range responses
// resolve to DefaultScore with the full response as critique.
func Score(response string) (int, string) {
	score := -1

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)

		if m := totalScorePattern.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				score = n
				continue
			}
		}

		if score < 0 {
			if m := nearbyScorePattern.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= MaxScore {
					score = n
				}
			}
		}
	}

	if score < 0 || score > MaxScore {
		score = DefaultScore
	}

	return score, extractCritique(response)
}

// extractCritique returns the text following a critique marker, or the
// full response when no marker is present. Marker offsets always come
// from the response itself; lowercased copies are never indexed into.
func extractCritique(response string) string {
	for _, marker := range critiqueMarkers {
		if idx := strings.Index(response, marker); idx >= 0 {
			if c := critiqueAfter(response[idx:]); c != "" {
				return c
			}
		}
	}
	if loc := critiqueWordPattern.FindStringIndex(response); loc != nil {
		if c := critiqueAfter(response[loc[0]:]); c != "" {
			return c
		}
	}
	return response
}

// critiqueAfter collects the non-blank lines following the marker line.
func critiqueAfter(text string) string {
	var lines []string
	for i, l := range strings.Split(text, "\n") {
		if i == 0 {
			continue // skip the marker line itself
		}
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			lines = append(lines, trimmed)
		}
		if len(lines) > 10 {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// GradeLevel maps a score to the Gaokao grade band description.
func GradeLevel(score int) string {
	switch {
	case score >= 50:
		return "一等文"
	case score >= 40:
		return "二等文"
	case score >= 30:
		return "三等文"
	default:
		return "四等文"
	}
}
