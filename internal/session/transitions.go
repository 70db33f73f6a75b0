package session

type action int

const (
	actIgnore action = iota
	actRefuse
	actStart
	actAccept
	actDecline
	actHangUp
	actEnd
	actDeviceReady
	actTranscript
	actReport
	actChannel
)

func (a action) String() string {
	switch a {
	case actRefuse:
		return "refuse"
	case actStart:
		return "start"
	case actAccept:
		return "accept"
	case actDecline:
		return "decline"
	case actHangUp:
		return "hang_up"
	case actEnd:
		return "end"
	case actDeviceReady:
		return "device_ready"
	case actTranscript:
		return "transcript"
	case actReport:
		return "report"
	case actChannel:
		return "channel"
	default:
		return "ignore"
	}
}

// transitions is total over States() x Kinds(). Events that never change
// state (device readiness, transcript, report, channel status) share one
// row across every state.
var transitions = buildTransitions()

func buildTransitions() map[State]map[Kind]action {
	table := make(map[State]map[Kind]action, len(States()))
	for _, st := range States() {
		row := map[Kind]action{
			KindIncomingAnnounced:   actStart,
			KindAccepted:            actRefuse,
			KindDeclined:            actRefuse,
			KindHungUp:              actRefuse,
			KindRemoteEnded:         actIgnore,
			KindDeviceReady:         actDeviceReady,
			KindTranscriptUpdate:    actTranscript,
			KindReportReceived:      actReport,
			KindChannelConnected:    actChannel,
			KindChannelDisconnected: actChannel,
		}
		switch st {
		case StateRinging:
			row[KindAccepted] = actAccept
			row[KindDeclined] = actDecline
			row[KindRemoteEnded] = actEnd
		case StateInCall:
			row[KindHungUp] = actHangUp
			row[KindRemoteEnded] = actEnd
		}
		table[st] = row
	}
	return table
}

func lookup(st State, kind Kind) action {
	if row, ok := transitions[st]; ok {
		if act, ok := row[kind]; ok {
			return act
		}
	}
	return actIgnore
}

// startState is where an announced call lands. Notification calls are
// already connected on the server side; device calls ring first.
func startState(source Source) State {
	if source == SourceDevice {
		return StateRinging
	}
	return StateInCall
}
