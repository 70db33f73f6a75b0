package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Events pushed by the notification server. EventConnect and EventDisconnect
// are synthesized by the client when the transport comes and goes.
const (
	EventCallIncoming = "call_incoming"
	EventUpdate       = "update"
	EventCallReport   = "call_report"
	EventCallEnded    = "call_ended"

	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Message is one frame on the notification channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type IncomingPayload struct {
	From    string `json:"from"`
	CallSID string `json:"callSid"`
}

type UpdatePayload struct {
	Caller     string `json:"caller"`
	Suggestion string `json:"suggestion"`
}

type ReportPayload struct {
	Report string `json:"report"`
}

type EndedPayload struct {
	Status string `json:"status"`
}

type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// Decode unmarshals the frame data into v. Missing or null data leaves v
// at its zero value.
func (m Message) Decode(v any) error {
	data := bytes.TrimSpace(m.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Event, err)
	}
	return nil
}

func newMessage(event string, payload any) Message {
	msg := Message{Event: event}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			msg.Data = data
		}
	}
	return msg
}
