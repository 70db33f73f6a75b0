package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// metricPattern matches "Label: N", "Label: N/D" and "Label: N out of D".
// Labels are 3-40 characters of letters, spaces and ampersands.
var metricPattern = regexp.MustCompile(
	`([A-Za-z][A-Za-z &]{2,39}):[ \t]*(\d{1,3}(?:\.\d+)?)(?:\b|%)(?:[ \t]*(?:/|(?i:out of))[ \t]*(\d+))?`,
)

// Match is one metric occurrence found in report text.
type Match struct {
	Label       string
	Value       float64
	Denominator *float64
	Offset      int
}

// Rule names the scaling rule applied to a raw value.
type Rule int

const (
	RuleAsIs Rule = iota
	RuleDenominator
	RulePercent
	RuleRawOverTen
)

func (r Rule) String() string {
	switch r {
	case RuleDenominator:
		return "denominator"
	case RulePercent:
		return "percent"
	case RuleRawOverTen:
		return "raw_over_ten"
	default:
		return "as_is"
	}
}

// FindMetrics returns every metric occurrence in text, in text order.
func FindMetrics(text string) []Match {
	locs := metricPattern.FindAllStringSubmatchIndex(text, -1)
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		label := strings.TrimSpace(text[loc[2]:loc[3]])
		if len(label) < 3 {
			continue
		}
		value, err := strconv.ParseFloat(text[loc[4]:loc[5]], 64)
		if err != nil {
			continue
		}

		m := Match{Label: label, Value: value, Offset: loc[0]}
		if loc[6] >= 0 {
			if denom, err := strconv.ParseFloat(text[loc[6]:loc[7]], 64); err == nil {
				m.Denominator = &denom
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// ClassifyScale picks the scaling rule. A denominator above 10 wins, then
// the percent heuristic, then the bare "greater than 10" heuristic.
func ClassifyScale(value float64, denominator *float64, percentContext bool) Rule {
	switch {
	case denominator != nil && *denominator > 10:
		return RuleDenominator
	case percentContext && value > 10:
		return RulePercent
	case value > 10:
		return RuleRawOverTen
	default:
		return RuleAsIs
	}
}

// Scale converts a raw value to the 0-10 scale, clamped and rounded to one decimal.
func Scale(value float64, denominator *float64, percentContext bool) float64 {
	var score float64
	switch ClassifyScale(value, denominator, percentContext) {
	case RuleDenominator:
		score = value * 10 / *denominator
	case RulePercent, RuleRawOverTen:
		score = value / 10
	default:
		score = value
	}
	return round1(clamp(score, 0, 10))
}

// BucketFor maps a normalized score to its qualitative tier.
func BucketFor(score float64) Bucket {
	switch {
	case score >= 9:
		return BucketExcellent
	case score >= 7:
		return BucketGood
	default:
		return BucketNeedsImprovement
	}
}

// Remark is the headline wording shown next to an overall score.
func Remark(score float64) string {
	switch {
	case score >= 9:
		return "Outstanding"
	case score >= 8:
		return "Excellent"
	case score >= 7:
		return "Good"
	case score >= 6:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// collectMetrics scales every match and deduplicates by label. The last
// occurrence of a label wins but keeps the position of the first.
func collectMetrics(matches []Match, percentContext bool) *Metrics {
	metrics := newMetrics()
	for _, m := range matches {
		score := Scale(m.Value, m.Denominator, percentContext)
		metrics.set(Metric{
			Label:          m.Label,
			RawValue:       m.Value,
			RawDenominator: m.Denominator,
			Score:          score,
			Bucket:         BucketFor(score),
		})
	}
	return metrics
}

// synthesizeOverall appends an "Overall Score" equal to the mean of the
// other metrics when the report did not state one.
func synthesizeOverall(metrics *Metrics) {
	if metrics.Len() == 0 {
		return
	}
	if _, ok := metrics.Overall(); ok {
		return
	}

	var sum float64
	for _, m := range metrics.All() {
		sum += m.Score
	}
	score := round1(sum / float64(metrics.Len()))
	metrics.set(Metric{
		Label:       OverallScoreLabel,
		RawValue:    score,
		Score:       score,
		Bucket:      BucketFor(score),
		Synthesized: true,
	})
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
