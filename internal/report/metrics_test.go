package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestFindMetrics(t *testing.T) {
	text := "Clarity: 8\nScore: 85/100\nEmpathy: 4 out of 5\nPacing: 8.5\nYear: 2024"
	matches := FindMetrics(text)
	require.Len(t, matches, 4)

	assert.Equal(t, "Clarity", matches[0].Label)
	assert.Equal(t, 8.0, matches[0].Value)
	assert.Nil(t, matches[0].Denominator)

	assert.Equal(t, "Score", matches[1].Label)
	require.NotNil(t, matches[1].Denominator)
	assert.Equal(t, 100.0, *matches[1].Denominator)

	assert.Equal(t, "Empathy", matches[2].Label)
	require.NotNil(t, matches[2].Denominator)
	assert.Equal(t, 5.0, *matches[2].Denominator)

	assert.Equal(t, "Pacing", matches[3].Label)
	assert.Equal(t, 8.5, matches[3].Value)
}

func TestFindMetricsLabelShape(t *testing.T) {
	matches := FindMetrics("Tone & Empathy: 7\nAb: 9\n- Listening :6")
	require.Len(t, matches, 2)
	assert.Equal(t, "Tone & Empathy", matches[0].Label)
	assert.Equal(t, "Listening", matches[1].Label)
}

func TestClassifyScale(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		denom   *float64
		percent bool
		want    Rule
	}{
		{name: "denominator over ten", value: 85, denom: ptr(100), want: RuleDenominator},
		{name: "denominator wins over percent", value: 45, denom: ptr(50), percent: true, want: RuleDenominator},
		{name: "out of ten", value: 7, denom: ptr(10), want: RuleAsIs},
		{name: "percent context", value: 92, percent: true, want: RulePercent},
		{name: "small value in percent context", value: 8, percent: true, want: RuleAsIs},
		{name: "raw over ten", value: 92, want: RuleRawOverTen},
		{name: "already on scale", value: 6, want: RuleAsIs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyScale(tt.value, tt.denom, tt.percent))
		})
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{text: "Score: 85/100", want: 8.5},
		{text: "Score: 45/50", want: 9.0},
		{text: "Rating: 7/10", want: 7.0},
		{text: "Overall Score: 92%", want: 9.2},
		{text: "Overall Score: 92", want: 9.2},
		{text: "Empathy: 40 out of 50", want: 8.0},
		{text: "Empathy: 4 out of 5", want: 4.0},
		{text: "Clarity: 2/3", want: 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			report := Normalize(tt.text)
			labels := report.Metrics.Labels()
			require.NotEmpty(t, labels)
			m, ok := report.Metrics.Get(labels[0])
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Score)
		})
	}
}

func TestScaleClamps(t *testing.T) {
	inputs := []struct {
		value float64
		denom *float64
	}{
		{value: 999, denom: ptr(100)},
		{value: 150},
		{value: 999},
		{value: 0},
		{value: 11, denom: ptr(11)},
		{value: 5, denom: ptr(0)},
		{value: 999, denom: ptr(1)},
	}

	for _, in := range inputs {
		for _, percent := range []bool{false, true} {
			got := Scale(in.value, in.denom, percent)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 10.0)
		}
	}
	assert.Equal(t, 10.0, Scale(999, ptr(100), false))
	assert.Equal(t, 10.0, Scale(150, nil, false))
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, BucketExcellent, BucketFor(10))
	assert.Equal(t, BucketExcellent, BucketFor(9))
	assert.Equal(t, BucketGood, BucketFor(8.9))
	assert.Equal(t, BucketGood, BucketFor(7))
	assert.Equal(t, BucketNeedsImprovement, BucketFor(6.9))
	assert.Equal(t, BucketNeedsImprovement, BucketFor(0))
}

func TestRemark(t *testing.T) {
	assert.Equal(t, "Outstanding", Remark(9.4))
	assert.Equal(t, "Excellent", Remark(8))
	assert.Equal(t, "Good", Remark(7.5))
	assert.Equal(t, "Fair", Remark(6))
	assert.Equal(t, "Needs Improvement", Remark(3.2))
}

func TestSynthesizeOverall(t *testing.T) {
	report := Normalize("Clarity: 8\nTone: 6")

	assert.Equal(t, []string{"Clarity", "Tone", OverallScoreLabel}, report.Metrics.Labels())
	overall, ok := report.Metrics.Get(OverallScoreLabel)
	require.True(t, ok)
	assert.Equal(t, 7.0, overall.Score)
	assert.Equal(t, BucketGood, overall.Bucket)
	assert.True(t, overall.Synthesized)
}

func TestSynthesizeOverallRounds(t *testing.T) {
	report := Normalize("Clarity: 8\nTone: 6\nPacing: 6")

	overall, ok := report.Metrics.Get(OverallScoreLabel)
	require.True(t, ok)
	assert.Equal(t, 6.7, overall.Score)
}

func TestExplicitOverallKeepsPosition(t *testing.T) {
	report := Normalize("Overall Score: 8/10\nClarity: 7")

	assert.Equal(t, []string{OverallScoreLabel, "Clarity"}, report.Metrics.Labels())
	overall, _ := report.Metrics.Get(OverallScoreLabel)
	assert.False(t, overall.Synthesized)
	assert.Equal(t, 8.0, overall.Score)
}

func TestOverallMatchedCaseInsensitively(t *testing.T) {
	report := Normalize("overall score: 6\nClarity: 8")

	assert.Equal(t, []string{"overall score", "Clarity"}, report.Metrics.Labels())
	score, ok := report.OverallScore()
	require.True(t, ok)
	assert.Equal(t, 6.0, score)
}

func TestDuplicateLabelLastWins(t *testing.T) {
	report := Normalize("Clarity: 5\nTone: 6\nClarity: 9")

	assert.Equal(t, []string{"Clarity", "Tone", OverallScoreLabel}, report.Metrics.Labels())
	clarity, _ := report.Metrics.Get("Clarity")
	assert.Equal(t, 9.0, clarity.Score)
	overall, _ := report.Metrics.Get(OverallScoreLabel)
	assert.Equal(t, 7.5, overall.Score)
}

func TestEveryMetricHasBucket(t *testing.T) {
	report := Normalize("Clarity: 95%\nTone: 3\nListening: 7 out of 10")
	require.Equal(t, 4, report.Metrics.Len())
	for label, m := range report.Metrics.All() {
		assert.NotEmpty(t, m.Bucket, label)
		assert.Equal(t, BucketFor(m.Score), m.Bucket, label)
	}
}
