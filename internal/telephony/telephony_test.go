package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
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

func tokenServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Token{Token: token, Identity: r.URL.Query().Get("identity")})
	}))
}

// gatewayServer records commands and pushes the given events after registration.
func gatewayServer(t *testing.T, events []DeviceEvent, commands chan<- command) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		registered := false
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			commands <- cmd
			if cmd.Action == ActionRegister && !registered {
				registered = true
				for _, ev := range events {
					_ = conn.WriteJSON(ev)
				}
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTokenFetch(t *testing.T) {
	srv := tokenServer(t, "tok-123")
	defer srv.Close()

	tok, err := NewTokenClient(srv.URL+"/token").Fetch(context.Background(), "agent")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok.Token)
	assert.Equal(t, "agent", tok.Identity)
}

func TestTokenFetchErrors(t *testing.T) {
	empty := tokenServer(t, "")
	defer empty.Close()
	_, err := NewTokenClient(empty.URL).Fetch(context.Background(), "agent")
	assert.True(t, errors.Is(err, ErrEmptyToken))

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()
	_, err = NewTokenClient(failing.URL).Fetch(context.Background(), "agent")
	assert.ErrorContains(t, err, "500")
}

func TestPhoneRegistersAndRelaysEvents(t *testing.T) {
	tokens := tokenServer(t, "tok-abc")
	defer tokens.Close()

	commands := make(chan command, 8)
	gateway := gatewayServer(t, []DeviceEvent{
		{Type: EventReady},
		{Type: EventIncoming, CallSID: "CA1", From: "+15550100"},
	}, commands)
	defer gateway.Close()

	phone := NewPhone(Config{
		TokenURL:   tokens.URL,
		GatewayURL: wsURL(gateway),
		APIKey:     "secret",
		Identity:   "agent",
	}, quietLog())

	assert.ErrorIs(t, phone.Accept(context.Background(), "CA1"), ErrNotRegistered)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan DeviceEvent, 8)
	done := make(chan error, 1)
	go func() { done <- phone.Run(ctx, func(ev DeviceEvent) { events <- ev }) }()

	register := <-commands
	assert.Equal(t, ActionRegister, register.Action)
	assert.Equal(t, "tok-abc", register.Token)

	ready := <-events
	assert.Equal(t, EventReady, ready.Type)
	incoming := <-events
	assert.Equal(t, "CA1", incoming.CallSID)
	assert.Equal(t, "+15550100", incoming.From)

	require.Eventually(t, phone.Registered, time.Second, 10*time.Millisecond)
	require.NoError(t, phone.Accept(ctx, "CA1"))
	accept := <-commands
	assert.Equal(t, command{Action: ActionAccept, CallSID: "CA1"}, accept)

	require.NoError(t, phone.Disconnect(ctx, "CA1"))
	assert.Equal(t, ActionDisconnect, (<-commands).Action)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("phone did not stop")
	}
	assert.False(t, phone.Registered())
}

func TestPhoneDoesNotRegisterWithoutToken(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer failing.Close()

	commands := make(chan command, 1)
	gateway := gatewayServer(t, nil, commands)
	defer gateway.Close()

	phone := NewPhone(Config{TokenURL: failing.URL, GatewayURL: wsURL(gateway), APIKey: "secret"}, quietLog())
	err := phone.Run(context.Background(), func(DeviceEvent) {})

	assert.ErrorContains(t, err, "fetch token")
	assert.Empty(t, commands)
	assert.False(t, phone.Registered())
}
