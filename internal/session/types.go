package session

import (
	"context"
	"time"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// Presenter receives every observable change of the controller.
type Presenter interface {
	BroadcastCallStarted(call CallSession)
	BroadcastCallState(state State, caps Capabilities)
	BroadcastTranscriptLine(callID string, line transcript.Line)
	BroadcastReportReady(callID string, r *report.QualityReport)
	BroadcastCallEnded(callID, reason string, duration time.Duration)
	BroadcastDeviceStatus(ready bool)
	BroadcastChannelStatus(connected bool, reason string)
}

type Archive interface {
	CreateCall(id, callerID, source string, startedAt time.Time) error
	EndCall(id string, endedAt time.Time, reason string) error
	AppendLine(callID string, line transcript.Line) error
	SaveReport(callID string, r *report.QualityReport, receivedAt time.Time) error
}

// Device performs outbound actions on the telephony device, addressed by
// the call handle the device announced.
type Device interface {
	Accept(ctx context.Context, handle string) error
	Reject(ctx context.Context, handle string) error
	Disconnect(ctx context.Context, handle string) error
}
