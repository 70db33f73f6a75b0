package session

// State is the lifecycle position of the dashboard's call session.
type State string

const (
	StateIdle    State = "idle"
	StateRinging State = "ringing"
	StateInCall  State = "in_call"
)

// States lists every controller state.
func States() []State {
	return []State{StateIdle, StateRinging, StateInCall}
}

// Kind identifies an abstract controller event.
type Kind string

const (
	KindIncomingAnnounced   Kind = "incoming_announced"
	KindAccepted            Kind = "accepted"
	KindDeclined            Kind = "declined"
	KindHungUp              Kind = "hung_up"
	KindRemoteEnded         Kind = "remote_ended"
	KindDeviceReady         Kind = "device_ready"
	KindTranscriptUpdate    Kind = "transcript_update"
	KindReportReceived      Kind = "report_received"
	KindChannelConnected    Kind = "channel_connected"
	KindChannelDisconnected Kind = "channel_disconnected"
)

// Kinds lists every event kind.
func Kinds() []Kind {
	return []Kind{
		KindIncomingAnnounced,
		KindAccepted,
		KindDeclined,
		KindHungUp,
		KindRemoteEnded,
		KindDeviceReady,
		KindTranscriptUpdate,
		KindReportReceived,
		KindChannelConnected,
		KindChannelDisconnected,
	}
}

// Source is where an event came from.
type Source string

const (
	SourceNotification Source = "notification"
	SourceDevice       Source = "device"
	SourceOperator     Source = "operator"
)

// Event is a source-independent input to the controller. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind   Kind
	Source Source

	CallerID string
	// Handle is the device's call identifier. Empty for notification events.
	Handle string

	CallerText    string
	AssistantText string
	ReportText    string
	Reason        string
}

func Incoming(source Source, callerID, handle string) Event {
	return Event{Kind: KindIncomingAnnounced, Source: source, CallerID: callerID, Handle: handle}
}

func Accepted() Event { return Event{Kind: KindAccepted, Source: SourceOperator} }

func Declined() Event { return Event{Kind: KindDeclined, Source: SourceOperator} }

func HungUp() Event { return Event{Kind: KindHungUp, Source: SourceOperator} }

func RemoteEnded(source Source, handle, reason string) Event {
	return Event{Kind: KindRemoteEnded, Source: source, Handle: handle, Reason: reason}
}

func DeviceReady() Event { return Event{Kind: KindDeviceReady, Source: SourceDevice} }

func TranscriptUpdate(caller, suggestion string) Event {
	return Event{
		Kind:          KindTranscriptUpdate,
		Source:        SourceNotification,
		CallerText:    caller,
		AssistantText: suggestion,
	}
}

func ReportReceived(text string) Event {
	return Event{Kind: KindReportReceived, Source: SourceNotification, ReportText: text}
}

func ChannelConnected() Event {
	return Event{Kind: KindChannelConnected, Source: SourceNotification}
}

func ChannelDisconnected(reason string) Event {
	return Event{Kind: KindChannelDisconnected, Source: SourceNotification, Reason: reason}
}

// IsOperator reports whether the event is an operator action that must be
// valid in the current state.
func (e Event) IsOperator() bool {
	switch e.Kind {
	case KindAccepted, KindDeclined, KindHungUp:
		return true
	default:
		return false
	}
}

// End reasons recorded on a finished session.
const (
	EndRemote     = "remote"
	EndDeclined   = "declined"
	EndHungUp     = "hung_up"
	EndSuperseded = "superseded"
)

// Capabilities are the operator actions currently available.
type Capabilities struct {
	CanAccept   bool `json:"can_accept"`
	CanDecline  bool `json:"can_decline"`
	CanHangUp   bool `json:"can_hang_up"`
	DeviceReady bool `json:"device_ready"`
}
