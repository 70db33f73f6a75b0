package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain blocks until the client goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func collect(ch chan Message) Handler {
	return func(m Message) { ch <- m }
}

func next(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestClientDeliversFramesInOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		frames := []string{
			`{"event":"call_incoming","data":{"from":"+15550100","callSid":"CA1"}}`,
			`not json`,
			`{"data":{}}`,
			`{"event":"update","data":{"caller":"hi","suggestion":"greet"}}`,
			`{"event":"call_report","data":{"report":"Clarity: 8"}}`,
			`{"event":"call_ended"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		drain(conn)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan Message, 16)
	client := NewClient(wsURL(srv), time.Second, quietLog())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, collect(msgs)) }()

	assert.Equal(t, EventConnect, next(t, msgs).Event)

	incoming := next(t, msgs)
	require.Equal(t, EventCallIncoming, incoming.Event)
	var in IncomingPayload
	require.NoError(t, incoming.Decode(&in))
	assert.Equal(t, "+15550100", in.From)
	assert.Equal(t, "CA1", in.CallSID)

	update := next(t, msgs)
	require.Equal(t, EventUpdate, update.Event)
	var up UpdatePayload
	require.NoError(t, update.Decode(&up))
	assert.Equal(t, "hi", up.Caller)
	assert.Equal(t, "greet", up.Suggestion)

	assert.Equal(t, EventCallReport, next(t, msgs).Event)

	ended := next(t, msgs)
	require.Equal(t, EventCallEnded, ended.Event)
	var end EndedPayload
	require.NoError(t, ended.Decode(&end))
	assert.Empty(t, end.Status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if connections.Add(1) == 1 {
			_ = conn.Close()
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"call_ended","data":{"status":"completed"}}`))
		drain(conn)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan Message, 16)
	client := NewClient(wsURL(srv), 200*time.Millisecond, quietLog())
	go func() { _ = client.Run(ctx, collect(msgs)) }()

	assert.Equal(t, EventConnect, next(t, msgs).Event)
	disconnect := next(t, msgs)
	require.Equal(t, EventDisconnect, disconnect.Event)
	var payload DisconnectPayload
	require.NoError(t, disconnect.Decode(&payload))
	assert.NotEmpty(t, payload.Reason)

	assert.Equal(t, EventConnect, next(t, msgs).Event)
	assert.Equal(t, EventCallEnded, next(t, msgs).Event)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestClientRequiresURL(t *testing.T) {
	err := NewClient("", 0, quietLog()).Run(context.Background(), func(Message) {})
	assert.Error(t, err)
}

func TestDecodeEmptyData(t *testing.T) {
	var payload ReportPayload
	require.NoError(t, Message{Event: EventCallReport}.Decode(&payload))
	require.NoError(t, Message{Event: EventCallReport, Data: []byte("null")}.Decode(&payload))
	assert.Empty(t, payload.Report)

	err := Message{Event: EventCallReport, Data: []byte(`{"report": 5}`)}.Decode(&payload)
	assert.ErrorContains(t, err, "call_report")
}
