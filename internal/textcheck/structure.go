package textcheck

import (
	"fmt"
	"strings"
)

// Segment names used in structure feedback.
const (
	SegmentOpening = "开头"
	SegmentBody    = "主体"
	SegmentClosing = "结尾"
)

var (
	openingMarkers = []string{"引言", "开篇", "首先", "众所周知", "当今", "随着", "在这个"}
	bodyMarkers    = []string{"首先", "其次", "再次", "此外", "另外", "同时", "一方面", "另一方面", "不仅", "而且"}
	closingMarkers = []string{"综上所述", "总之", "因此", "由此可见", "总而言之", "归根结底", "最后"}
)

const (
	minParagraphs    = 3
	minOpeningUnits  = 50
	minBodyUnits     = 300
	minClosingUnits  = 50
)

// StructureReport is the result of CheckStructure.
type StructureReport struct {
	HasOpening bool
	HasBody    bool
	HasClosing bool
	Complete   bool
	Missing    []string
	Feedback   string
}

// CheckStructure verifies the essay has an opening, a body, and a closing.
//
// A segment is present when its keyword markers appear or the segment is
// long enough on its own. Fewer than three non-blank paragraphs fails all
// three segments.
func CheckStructure(text string) StructureReport {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	var report StructureReport

	if len(paragraphs) < minParagraphs {
		report.Missing = []string{SegmentOpening, SegmentBody, SegmentClosing}
		report.Feedback = "文章段落不足，缺少完整的开头、主体、结尾结构。"
		return report
	}

	first := paragraphs[0]
	report.HasOpening = containsAny(first, openingMarkers) || CountUnits(first) >= minOpeningUnits

	body := strings.Join(paragraphs[1:len(paragraphs)-1], "\n")
	report.HasBody = containsAny(body, bodyMarkers) || CountUnits(body) >= minBodyUnits

	last := paragraphs[len(paragraphs)-1]
	report.HasClosing = containsAny(last, closingMarkers) || CountUnits(last) >= minClosingUnits

	report.Complete = report.HasOpening && report.HasBody && report.HasClosing
	if !report.Complete {
		if !report.HasOpening {
			report.Missing = append(report.Missing, SegmentOpening)
		}
		if !report.HasBody {
			report.Missing = append(report.Missing, SegmentBody)
		}
		if !report.HasClosing {
			report.Missing = append(report.Missing, SegmentClosing)
		}
		report.Feedback = fmt.Sprintf("文章结构不完整，缺少：%s。", strings.Join(report.Missing, "、"))
	}

	return report
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
