package session

import (
	"time"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// MultiPresenter fans every broadcast out to each non-nil presenter in order.
type MultiPresenter []Presenter

func (m MultiPresenter) each(fn func(Presenter)) {
	for _, p := range m {
		if p != nil {
			fn(p)
		}
	}
}

func (m MultiPresenter) BroadcastCallStarted(call CallSession) {
	m.each(func(p Presenter) { p.BroadcastCallStarted(call) })
}

func (m MultiPresenter) BroadcastCallState(state State, caps Capabilities) {
	m.each(func(p Presenter) { p.BroadcastCallState(state, caps) })
}

func (m MultiPresenter) BroadcastTranscriptLine(callID string, line transcript.Line) {
	m.each(func(p Presenter) { p.BroadcastTranscriptLine(callID, line) })
}

func (m MultiPresenter) BroadcastReportReady(callID string, r *report.QualityReport) {
	m.each(func(p Presenter) { p.BroadcastReportReady(callID, r) })
}

func (m MultiPresenter) BroadcastCallEnded(callID, reason string, duration time.Duration) {
	m.each(func(p Presenter) { p.BroadcastCallEnded(callID, reason, duration) })
}

func (m MultiPresenter) BroadcastDeviceStatus(ready bool) {
	m.each(func(p Presenter) { p.BroadcastDeviceStatus(ready) })
}

func (m MultiPresenter) BroadcastChannelStatus(connected bool, reason string) {
	m.each(func(p Presenter) { p.BroadcastChannelStatus(connected, reason) })
}
