package report

import (
	"encoding/json"
	"iter"
	"strings"
)

// OverallScoreLabel is the key under which the headline score is exposed.
const OverallScoreLabel = "Overall Score"

type Bucket string

const (
	BucketExcellent        Bucket = "excellent"
	BucketGood             Bucket = "good"
	BucketNeedsImprovement Bucket = "needsImprovement"
)

type Metric struct {
	Label          string   `json:"label"`
	RawValue       float64  `json:"raw_value"`
	RawDenominator *float64 `json:"raw_denominator"`
	Score          float64  `json:"score"`
	Bucket         Bucket   `json:"bucket"`
	Synthesized    bool     `json:"synthesized,omitempty"`
}

// Metrics is an insertion-ordered, read-only mapping from label to Metric.
// The zero value and a nil pointer are both empty.
type Metrics struct {
	labels  []string
	byLabel map[string]Metric
}

func newMetrics() *Metrics {
	return &Metrics{byLabel: make(map[string]Metric)}
}

// set stores m under its label. A label seen before keeps its original position.
func (m *Metrics) set(metric Metric) {
	if _, ok := m.byLabel[metric.Label]; !ok {
		m.labels = append(m.labels, metric.Label)
	}
	m.byLabel[metric.Label] = metric
}

func (m *Metrics) Len() int {
	if m == nil {
		return 0
	}
	return len(m.labels)
}

func (m *Metrics) Get(label string) (Metric, bool) {
	if m == nil {
		return Metric{}, false
	}
	metric, ok := m.byLabel[label]
	return metric, ok
}

// Labels returns the labels in insertion order.
func (m *Metrics) Labels() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.labels...)
}

func (m *Metrics) All() iter.Seq2[string, Metric] {
	return func(yield func(string, Metric) bool) {
		if m == nil {
			return
		}
		for _, label := range m.labels {
			if !yield(label, m.byLabel[label]) {
				return
			}
		}
	}
}

// Overall returns the overall score metric, matching the label case-insensitively.
func (m *Metrics) Overall() (Metric, bool) {
	if m == nil {
		return Metric{}, false
	}
	for _, label := range m.labels {
		if isOverallLabel(label) {
			return m.byLabel[label], true
		}
	}
	return Metric{}, false
}

func (m *Metrics) MarshalJSON() ([]byte, error) {
	out := make([]Metric, 0, m.Len())
	for _, metric := range m.All() {
		out = append(out, metric)
	}
	return json.Marshal(out)
}

func (m *Metrics) UnmarshalJSON(data []byte) error {
	var list []Metric
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	m.labels = nil
	m.byLabel = make(map[string]Metric, len(list))
	for _, metric := range list {
		m.set(metric)
	}
	return nil
}

func isOverallLabel(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), OverallScoreLabel)
}

// Section is one narrative block of a report. Items holds the bullet
// segments when the block reads as a list.
type Section struct {
	Text  string   `json:"text"`
	Items []string `json:"items,omitempty"`
}

func (s *Section) IsList() bool {
	return s != nil && len(s.Items) > 1
}

// Format renders the section as a bulleted list or a single paragraph.
func (s *Section) Format() string {
	if s == nil {
		return ""
	}
	if !s.IsList() {
		return s.Text
	}
	var b strings.Builder
	for i, item := range s.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

type Sections struct {
	Detailed        *Section `json:"detailed,omitempty"`
	Strengths       *Section `json:"strengths,omitempty"`
	Areas           *Section `json:"areas,omitempty"`
	Recommendations *Section `json:"recommendations,omitempty"`
}

// Empty reports whether no narrative section was found, in which case the
// raw report text is the only thing worth showing.
func (s Sections) Empty() bool {
	return s.Detailed == nil && s.Strengths == nil && s.Areas == nil && s.Recommendations == nil
}

type QualityReport struct {
	RawText  string   `json:"raw_text"`
	Summary  *string  `json:"summary"`
	Metrics  *Metrics `json:"metrics"`
	Sections Sections `json:"sections"`
}
