package textcheck

import "fmt"

// LengthStatus classifies a unit count against a target band.
type LengthStatus string

const (
	LengthPass     LengthStatus = "pass"
	LengthTolerate LengthStatus = "tolerate"
	LengthTooLong  LengthStatus = "too_long"
	LengthTooShort LengthStatus = "too_short"
)

// Band is the acceptable unit-count range. Counts up to Tolerance above
// Max are tolerated without triggering a revision retry.
type Band struct {
	Min       int
	Max       int
	Tolerance int
}

// DefaultBand returns the standard 850-1050 band with a 1100 ceiling.
func DefaultBand() Band {
	return Band{Min: 850, Max: 1050, Tolerance: 1100}
}

// LengthReport is the result of AnalyzeLength.
//
// For out-of-band counts, DeltaMin..DeltaMax is the range of trims (or
// expansions) that would land the count inside the band.
type LengthReport struct {
	Units      int
	Status     LengthStatus
	DeltaMin   int
	DeltaMax   int
	Suggestion string
}

// InRange reports whether the count needs no correction (pass or tolerate).
func (r LengthReport) InRange() bool {
	return r.Status == LengthPass || r.Status == LengthTolerate
}

// AnalyzeLength counts text and classifies the count against band.
func AnalyzeLength(text string, band Band) LengthReport {
	count := CountUnits(text)
	return ClassifyLength(count, band)
}

// ClassifyLength classifies a precomputed unit count against band.
func ClassifyLength(count int, band Band) LengthReport {
	report := LengthReport{Units: count}

	switch {
	case count >= band.Min && count <= band.Max:
		report.Status = LengthPass
	case count > band.Max && count <= band.Tolerance:
		report.Status = LengthTolerate
	case count > band.Tolerance:
		report.Status = LengthTooLong
		report.DeltaMin = count - band.Max
		report.DeltaMax = count - band.Min
		report.Suggestion = fmt.Sprintf(
			"当前字数%d字，需要删减至%d-%d字范围内。建议删减约%d-%d字。",
			count, band.Min, band.Max, report.DeltaMin, report.DeltaMax)
	default:
		report.Status = LengthTooShort
		report.DeltaMin = band.Min - count
		report.DeltaMax = band.Max - count
		report.Suggestion = fmt.Sprintf(
			"当前字数%d字，需要扩展至%d-%d字范围内。建议增加约%d-%d字。",
			count, band.Min, band.Max, report.DeltaMin, report.DeltaMax)
	}

	return report
}
