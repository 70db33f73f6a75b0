package report

import "strings"

// Normalize turns free-form report text into a QualityReport. It never
// fails: text without recognizable structure yields empty metrics and
// sections, a nil summary, and the raw text for fallback display.
func Normalize(raw string) *QualityReport {
	metrics := collectMetrics(FindMetrics(raw), strings.Contains(raw, "%"))
	synthesizeOverall(metrics)

	sections := extractSections(raw)
	out := &QualityReport{
		RawText: raw,
		Metrics: metrics,
		Sections: Sections{
			Detailed:        sections[keyDetailed],
			Strengths:       sections[keyStrengths],
			Areas:           sections[keyAreas],
			Recommendations: sections[keyRecommendations],
		},
	}
	if summary, ok := sections[keySummary]; ok {
		text := summary.Text
		out.Summary = &text
	}
	return out
}

// OverallScore returns the report's overall score, or 0 when the report
// carried no metrics at all.
func (r *QualityReport) OverallScore() (float64, bool) {
	if r == nil {
		return 0, false
	}
	m, ok := r.Metrics.Overall()
	if !ok {
		return 0, false
	}
	return m.Score, true
}
