package server

import (
	"time"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/transcript"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type CallStartedEvent struct {
	Event
	Call session.CallSession `json:"call"`
}

type CallStateEvent struct {
	Event
	State        session.State        `json:"state"`
	Capabilities session.Capabilities `json:"capabilities"`
}

type TranscriptLineEvent struct {
	Event
	CallID  string          `json:"call_id"`
	Role    transcript.Role `json:"role"`
	Speaker string          `json:"speaker"`
	Text    string          `json:"text"`
}

// ReportReadyEvent carries the normalized report. Clients fall back to
// RawText when the report has no sections.
type ReportReadyEvent struct {
	Event
	CallID string     `json:"call_id,omitempty"`
	Report reportView `json:"report"`
}

type CallEndedEvent struct {
	Event
	CallID   string  `json:"call_id"`
	Reason   string  `json:"reason"`
	Duration float64 `json:"duration"`
}

type DeviceStatusEvent struct {
	Event
	Ready bool `json:"ready"`
}

type ChannelStatusEvent struct {
	Event
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

type ConnectionEvent struct {
	Event
	Connected bool              `json:"connected"`
	Snapshot  *session.Snapshot `json:"snapshot,omitempty"`
}

// reportView adds the headline remark and the fallback flag to a report.
type reportView struct {
	*report.QualityReport
	OverallScore *float64 `json:"overall_score,omitempty"`
	Remark       string   `json:"remark,omitempty"`
	Fallback     bool     `json:"fallback"`
}

func newReportView(r *report.QualityReport) reportView {
	view := reportView{QualityReport: r}
	if r == nil {
		return view
	}
	if score, ok := r.OverallScore(); ok {
		view.OverallScore = &score
		view.Remark = report.Remark(score)
	}
	view.Fallback = r.Sections.Empty() && r.Summary == nil
	return view
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
