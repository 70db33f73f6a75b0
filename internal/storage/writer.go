package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// Writer appends transcript lines and reports to one markdown journal per day.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) AppendLine(line transcript.Line) error {
	return w.append(line.Timestamp, line.FormatMarkdown()+"\n")
}

func (w *Writer) AppendReport(callID string, r *report.QualityReport, at time.Time) error {
	return w.append(at, FormatReport(callID, r, at))
}

func (w *Writer) append(at time.Time, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := w.PathFor(at)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (w *Writer) PathFor(at time.Time) string {
	return filepath.Join(w.dir, at.Format("2006-01-02")+".md")
}

func (w *Writer) CurrentPath() string {
	return w.PathFor(time.Now())
}

// FormatReport renders a report block for the journal. Reports without
// recognizable sections fall back to their raw text.
func FormatReport(callID string, r *report.QualityReport, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Report %s [%s]\n\n", callID, at.Format("15:04:05"))

	if score, ok := r.OverallScore(); ok {
		fmt.Fprintf(&b, "**%s:** %.1f/10 (%s)\n\n", report.OverallScoreLabel, score, report.Remark(score))
	}
	for label, m := range r.Metrics.All() {
		if strings.EqualFold(label, report.OverallScoreLabel) {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.1f\n", label, m.Score)
	}
	if r.Metrics.Len() > 1 {
		b.WriteString("\n")
	}

	if r.Summary != nil {
		fmt.Fprintf(&b, "### Summary\n\n%s\n\n", *r.Summary)
	}

	sections := []struct {
		title string
		sec   *report.Section
	}{
		{"Detailed Analysis", r.Sections.Detailed},
		{"Strengths", r.Sections.Strengths},
		{"Areas for Improvement", r.Sections.Areas},
		{"AI Recommendations", r.Sections.Recommendations},
	}
	for _, s := range sections {
		if s.sec == nil {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", s.title, s.sec.Format())
	}

	if r.Sections.Empty() && r.Summary == nil {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(r.RawText))
	}
	return b.String()
}
