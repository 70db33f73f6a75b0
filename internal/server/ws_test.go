package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/transcript"
)

func TestWSBroadcastEventShape(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastTranscriptLine("call-1", transcript.Line{
		Role:      transcript.RoleAssistant,
		Text:      "Offer a refund",
		Timestamp: time.Now().UTC(),
	})

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "transcript_line" {
			t.Fatalf("expected event type transcript_line, got %#v", payload["type"])
		}
		if payload["speaker"] != "AI" {
			t.Fatalf("expected AI speaker label, got %#v", payload["speaker"])
		}
		if payload["version"] == nil {
			t.Fatalf("expected version field in payload: %s", string(msg))
		}
		if payload["timestamp"] == nil {
			t.Fatalf("expected timestamp field in payload: %s", string(msg))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for websocket broadcast")
	}
}

func TestHubDropsForSlowClients(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	for range 100 {
		hub.BroadcastDeviceStatus(true)
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected buffer full, got %d/%d", len(ch), cap(ch))
	}
}

func TestWSConnectionSendsSnapshotThenEvents(t *testing.T) {
	hub := NewHub()
	snap := session.Snapshot{State: session.StateInCall, ChannelConnected: true}
	h, err := Handler(testStaticFS(t), hub, &callStoreStub{}, ControlHooks{
		Snapshot: func() session.Snapshot { return snap },
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var hello ConnectionEvent
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read connection event failed: %v", err)
	}
	if hello.Type != "connection" || hello.Snapshot == nil || hello.Snapshot.State != session.StateInCall {
		t.Fatalf("unexpected connection event: %+v", hello)
	}

	hub.BroadcastReportReady("call-1", report.Normalize("Overall Score: 92%"))

	var ready struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
		Report struct {
			OverallScore float64 `json:"overall_score"`
			Remark       string  `json:"remark"`
		} `json:"report"`
	}
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatalf("read report event failed: %v", err)
	}
	if ready.Type != "report_ready" || ready.CallID != "call-1" {
		t.Fatalf("unexpected event: %+v", ready)
	}
	if ready.Report.OverallScore != 9.2 || ready.Report.Remark != "Outstanding" {
		t.Fatalf("unexpected report headline: %+v", ready.Report)
	}
}
