package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Inbound device event types.
const (
	EventReady      = "ready"
	EventIncoming   = "incoming"
	EventDisconnect = "disconnect"
)

// Outbound actions.
const (
	ActionRegister   = "register"
	ActionAccept     = "accept"
	ActionReject     = "reject"
	ActionDisconnect = "disconnect"
)

// DeviceEvent is a frame from the device gateway.
type DeviceEvent struct {
	Type    string `json:"type"`
	CallSID string `json:"call_sid,omitempty"`
	From    string `json:"from,omitempty"`
}

type command struct {
	Action  string `json:"action"`
	CallSID string `json:"call_sid,omitempty"`
	Token   string `json:"token,omitempty"`
}

const writeTimeout = 5 * time.Second

// Gateway is a websocket connection to the softphone gateway that owns the
// provider's signaling.
type Gateway struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialGateway opens the gateway connection. apiKey, when set, is sent as a
// bearer token.
func DialGateway(ctx context.Context, gatewayURL, apiKey string) (*Gateway, error) {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gatewayURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial device gateway: %w", err)
	}
	return &Gateway{conn: conn}, nil
}

func (g *Gateway) send(ctx context.Context, cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Action, err)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_ = g.conn.SetWriteDeadline(deadline)
	if err := g.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Action, err)
	}
	return nil
}

func (g *Gateway) Register(ctx context.Context, token string) error {
	return g.send(ctx, command{Action: ActionRegister, Token: token})
}

func (g *Gateway) Accept(ctx context.Context, callSID string) error {
	return g.send(ctx, command{Action: ActionAccept, CallSID: callSID})
}

func (g *Gateway) Reject(ctx context.Context, callSID string) error {
	return g.send(ctx, command{Action: ActionReject, CallSID: callSID})
}

func (g *Gateway) Disconnect(ctx context.Context, callSID string) error {
	return g.send(ctx, command{Action: ActionDisconnect, CallSID: callSID})
}

// Listen reads device events until the connection fails. Frames that are
// not valid events are skipped.
func (g *Gateway) Listen(handle func(DeviceEvent)) error {
	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read device event: %w", err)
		}
		var ev DeviceEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			continue
		}
		handle(ev)
	}
}

func (g *Gateway) Close() error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return g.conn.Close()
}
