package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// Hub fans dashboard events out to every connected browser. Slow clients
// miss events rather than block the controller.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	log     *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		log:     logrus.WithField("component", "hub"),
	}
}

func (h *Hub) SetLogger(log *logrus.Entry) {
	h.log = log.WithField("component", "hub")
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastCallStarted(call session.CallSession) {
	h.broadcastEvent(CallStartedEvent{
		Event: newEvent("call_started", call.StartedAt),
		Call:  call,
	})
}

func (h *Hub) BroadcastCallState(state session.State, caps session.Capabilities) {
	h.broadcastEvent(CallStateEvent{
		Event:        newEvent("call_state", time.Now().UTC()),
		State:        state,
		Capabilities: caps,
	})
}

func (h *Hub) BroadcastTranscriptLine(callID string, line transcript.Line) {
	h.broadcastEvent(TranscriptLineEvent{
		Event:   newEvent("transcript_line", line.Timestamp),
		CallID:  callID,
		Role:    line.Role,
		Speaker: line.Role.Label(),
		Text:    line.Text,
	})
}

func (h *Hub) BroadcastReportReady(callID string, r *report.QualityReport) {
	h.broadcastEvent(ReportReadyEvent{
		Event:  newEvent("report_ready", time.Now().UTC()),
		CallID: callID,
		Report: newReportView(r),
	})
}

func (h *Hub) BroadcastCallEnded(callID, reason string, duration time.Duration) {
	h.broadcastEvent(CallEndedEvent{
		Event:    newEvent("call_ended", time.Now().UTC()),
		CallID:   callID,
		Reason:   reason,
		Duration: duration.Seconds(),
	})
}

func (h *Hub) BroadcastDeviceStatus(ready bool) {
	h.broadcastEvent(DeviceStatusEvent{
		Event: newEvent("device_status", time.Now().UTC()),
		Ready: ready,
	})
}

func (h *Hub) BroadcastChannelStatus(connected bool, reason string) {
	h.broadcastEvent(ChannelStatusEvent{
		Event:     newEvent("channel_status", time.Now().UTC()),
		Connected: connected,
		Reason:    reason,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("event marshal error")
		return
	}
	h.Broadcast(payload)
}
