package parse

import "strings"

// Essay splits a writer response into title and body. Title detection
// tries, in the first five lines: an explicit 标题/题目 label, a markdown
// heading, then a short punctuation-free line. When nothing matches, a
// title is synthesized from the opening clause.
func Essay(response string) (title, content string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	contentStart := 0

	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "标题") || strings.HasPrefix(line, "题目"):
			title = afterLabel(line)
			contentStart = i + 1
		case strings.HasPrefix(line, "#"):
			title = strings.TrimSpace(strings.TrimLeft(line, "#"))
			contentStart = i + 1
		default:
			if n := len([]rune(line)); n > 5 && n < 30 && !strings.ContainsAny(line, "，。、") {
				title = line
				contentStart = i + 1
			} else {
				continue
			}
		}
		break
	}

	content = strings.TrimSpace(strings.Join(lines[contentStart:], "\n"))
	if content == "" {
		content = strings.TrimSpace(response)
	}

	if title == "" {
		title = synthesizeTitle(content)
	}

	return title, content
}

// afterLabel returns the text after the last ：or : separator.
func afterLabel(line string) string {
	if idx := strings.LastIndex(line, "："); idx >= 0 {
		return strings.TrimSpace(line[idx+len("："):])
	}
	if idx := strings.LastIndex(line, ":"); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	return strings.TrimSpace(line)
}

func synthesizeTitle(content string) string {
	if content == "" {
		return "议论文"
	}

	firstPara := strings.SplitN(content, "\n", 2)[0]
	if runes := []rune(firstPara); len(runes) > 50 {
		firstPara = string(runes[:50])
	}
	clause := strings.SplitN(firstPara, "，", 2)[0]
	if clause == "" {
		return "议论文"
	}
	return "论" + clause
}

// Strategy is the parsed output of the topic-analysis stage.
type Strategy struct {
	Angle  string
	Thesis string
}

// TopicStrategy extracts the writing angle and central thesis from a
// strategist response. Both fields fall back to something usable: the
// first substantial line for the angle, a synthesized statement for the
// thesis.
func TopicStrategy(response, topic string) Strategy {
	var s Strategy

	lines := strings.Split(response, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)

		if strings.Contains(line, "中心论点") || strings.Contains(lower, "thesis") {
			if v := afterLabel(line); v != "" {
				s.Thesis = v
			} else if i+1 < len(lines) {
				s.Thesis = strings.TrimSpace(lines[i+1])
			}
		}

		if strings.Contains(line, "立意") || strings.Contains(lower, "angle") {
			if v := afterLabel(line); v != "" {
				s.Angle = v
			} else if i+1 < len(lines) {
				s.Angle = strings.TrimSpace(lines[i+1])
			}
		}
	}

	if s.Angle == "" {
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if len([]rune(trimmed)) > 20 {
				if runes := []rune(trimmed); len(runes) > 100 {
					trimmed = string(runes[:100])
				}
				s.Angle = trimmed
				break
			}
		}
	}

	if s.Thesis == "" {
		s.Thesis = "关于'" + topic + "'的深入思考"
	}

	return s
}

// Materials extracts bullet-style material items from a librarian
// response. Lines that carry no bullet or label prefix are kept verbatim
// when they look substantial.
func Materials(response string) []string {
	var items []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "・")
		for _, bullet := range []string{"-", "*", "•"} {
			line = strings.TrimSpace(strings.TrimPrefix(line, bullet))
		}
		if len([]rune(line)) >= 6 && !strings.HasPrefix(line, "#") {
			items = append(items, line)
		}
	}
	return items
}
