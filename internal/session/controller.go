package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// CallSession is one call as seen by the dashboard.
type CallSession struct {
	ID       string `json:"id"`
	State    State  `json:"state"`
	CallerID string `json:"caller_id,omitempty"`
	Source   Source `json:"source"`
	Handle   string `json:"call_sid,omitempty"`

	// DeviceAccepted is set once the operator accepted the call on the device.
	DeviceAccepted bool `json:"device_accepted"`

	Transcript []transcript.Line `json:"transcript"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
	EndReason  string            `json:"end_reason,omitempty"`
}

func (s *CallSession) clone() *CallSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Transcript = slices.Clone(s.Transcript)
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return &out
}

// Snapshot is a consistent copy of the controller for readers.
type Snapshot struct {
	State            State                 `json:"state"`
	Session          *CallSession          `json:"session,omitempty"`
	Report           *report.QualityReport `json:"report,omitempty"`
	Capabilities     Capabilities          `json:"capabilities"`
	ChannelConnected bool                  `json:"channel_connected"`
}

// Controller owns the single call session. Apply is meant to be called
// from one goroutine; Snapshot may be called from anywhere.
type Controller struct {
	presenter Presenter
	archive   Archive
	device    Device
	log       *logrus.Entry
	now       func() time.Time

	mu               sync.RWMutex
	state            State
	current          *CallSession
	report           *report.QualityReport
	deviceReady      bool
	channelConnected bool
}

// NewController builds a controller in the Idle state. Any collaborator may
// be nil.
func NewController(presenter Presenter, archive Archive, device Device, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{
		presenter: presenter,
		archive:   archive,
		device:    device,
		log:       log.WithField("component", "session"),
		now:       func() time.Time { return time.Now().UTC() },
		state:     StateIdle,
	}
}

type effect func(ctx context.Context)

// Apply feeds one event through the transition table. State changes happen
// under the lock; collaborator calls run afterwards, in order. Only operator
// actions return errors.
func (c *Controller) Apply(ctx context.Context, ev Event) error {
	var normalized *report.QualityReport
	if ev.Kind == KindReportReceived {
		normalized = report.Normalize(ev.ReportText)
	}

	c.mu.Lock()
	act := lookup(c.state, ev.Kind)
	effects, err := c.transition(act, ev, normalized)
	c.mu.Unlock()

	if err != nil {
		c.log.WithFields(logrus.Fields{"kind": ev.Kind, "error": err}).Warn("operator action refused")
		return err
	}

	for _, fx := range effects {
		fx(ctx)
	}
	return nil
}

func (c *Controller) transition(act action, ev Event, normalized *report.QualityReport) ([]effect, error) {
	entry := c.log.WithFields(logrus.Fields{
		"kind":   ev.Kind,
		"source": ev.Source,
		"state":  c.state,
		"action": act.String(),
	})

	switch act {
	case actRefuse:
		if c.state == StateIdle {
			return nil, ErrNoActiveCall
		}
		return nil, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Kind, c.state)

	case actStart:
		return c.start(ev, entry), nil

	case actAccept:
		if c.device == nil {
			return nil, ErrDeviceUnavailable
		}
		handle := c.current.Handle
		c.current.DeviceAccepted = true
		c.setState(StateInCall)
		entry.WithField("call_id", c.current.ID).Info("call accepted")
		return []effect{
			c.deviceCall("accept", handle, c.device.Accept),
			c.broadcastState(),
		}, nil

	case actDecline:
		if c.device == nil {
			return nil, ErrDeviceUnavailable
		}
		handle := c.current.Handle
		fx := []effect{c.deviceCall("reject", handle, c.device.Reject)}
		return append(fx, c.end(EndDeclined, entry)...), nil

	case actHangUp:
		if !c.current.DeviceAccepted || c.current.Handle == "" {
			return nil, fmt.Errorf("%w: call was not accepted on the device", ErrInvalidTransition)
		}
		if c.device == nil {
			return nil, ErrDeviceUnavailable
		}
		handle := c.current.Handle
		fx := []effect{c.deviceCall("disconnect", handle, c.device.Disconnect)}
		return append(fx, c.end(EndHungUp, entry)...), nil

	case actEnd:
		if ev.Handle != "" && c.current.Handle != "" && ev.Handle != c.current.Handle {
			entry.WithField("call_sid", ev.Handle).Debug("ignoring end of a superseded call")
			return nil, nil
		}
		reason := EndRemote
		if ev.Reason != "" {
			reason = ev.Reason
		}
		return c.end(reason, entry), nil

	case actDeviceReady:
		c.deviceReady = true
		entry.Info("telephony device ready")
		return []effect{
			func(context.Context) {
				if c.presenter != nil {
					c.presenter.BroadcastDeviceStatus(true)
				}
			},
			c.broadcastState(),
		}, nil

	case actTranscript:
		return c.appendTranscript(ev, entry), nil

	case actReport:
		return c.storeReport(normalized, entry), nil

	case actChannel:
		connected := ev.Kind == KindChannelConnected
		c.channelConnected = connected
		if connected {
			entry.Info("notification channel connected")
		} else {
			entry.WithField("reason", ev.Reason).Warn("notification channel disconnected")
		}
		reason := ev.Reason
		return []effect{func(context.Context) {
			if c.presenter != nil {
				c.presenter.BroadcastChannelStatus(connected, reason)
			}
		}}, nil

	default:
		entry.Debug("event ignored")
		return nil, nil
	}
}

func (c *Controller) start(ev Event, entry *logrus.Entry) []effect {
	var fx []effect
	if c.current != nil && c.current.EndedAt == nil {
		fx = append(fx, c.end(EndSuperseded, entry)...)
	}

	startedAt := c.now()
	call := &CallSession{
		ID:         uuid.NewString(),
		CallerID:   strings.TrimSpace(ev.CallerID),
		Source:     ev.Source,
		Handle:     ev.Handle,
		Transcript: []transcript.Line{},
		StartedAt:  startedAt,
	}
	if call.Source != SourceDevice {
		call.Handle = ""
	}
	c.current = call
	c.report = nil
	c.setState(startState(ev.Source))

	entry.WithFields(logrus.Fields{
		"call_id": call.ID,
		"caller":  call.CallerID,
		"to":      c.state,
	}).Info("call started")

	started := *call.clone()
	return append(fx,
		func(context.Context) {
			if c.archive != nil {
				if err := c.archive.CreateCall(started.ID, started.CallerID, string(started.Source), startedAt); err != nil {
					c.log.WithError(err).WithField("call_id", started.ID).Error("archive call start")
				}
			}
			if c.presenter != nil {
				c.presenter.BroadcastCallStarted(started)
			}
		},
		c.broadcastState(),
	)
}

// end finishes the current session and returns to Idle. The ended session,
// its transcript and the latest report stay visible until the next call.
func (c *Controller) end(reason string, entry *logrus.Entry) []effect {
	call := c.current
	endedAt := c.now()
	call.EndedAt = &endedAt
	call.EndReason = reason
	c.setState(StateIdle)

	id := call.ID
	duration := endedAt.Sub(call.StartedAt)
	entry.WithFields(logrus.Fields{
		"call_id":  id,
		"reason":   reason,
		"duration": duration,
	}).Info("call ended")

	return []effect{
		func(context.Context) {
			if c.archive != nil {
				if err := c.archive.EndCall(id, endedAt, reason); err != nil {
					c.log.WithError(err).WithField("call_id", id).Error("archive call end")
				}
			}
			if c.presenter != nil {
				c.presenter.BroadcastCallEnded(id, reason, duration)
			}
		},
		c.broadcastState(),
	}
}

func (c *Controller) appendTranscript(ev Event, entry *logrus.Entry) []effect {
	if c.current == nil {
		entry.Debug("transcript update without a call")
		return nil
	}

	lines := transcript.FromUpdate(ev.CallerText, ev.AssistantText, c.now())
	if len(lines) == 0 {
		return nil
	}
	c.current.Transcript = append(c.current.Transcript, lines...)

	id := c.current.ID
	return []effect{func(context.Context) {
		for _, line := range lines {
			if c.archive != nil {
				if err := c.archive.AppendLine(id, line); err != nil {
					c.log.WithError(err).WithField("call_id", id).Error("archive transcript line")
				}
			}
			if c.presenter != nil {
				c.presenter.BroadcastTranscriptLine(id, line)
			}
		}
	}}
}

func (c *Controller) storeReport(r *report.QualityReport, entry *logrus.Entry) []effect {
	if c.report != nil {
		entry.Debug("replacing earlier report")
	}
	c.report = r

	id := ""
	if c.current != nil {
		id = c.current.ID
	}
	score, hasScore := r.OverallScore()
	entry.WithFields(logrus.Fields{
		"call_id": id,
		"metrics": r.Metrics.Len(),
		"scored":  hasScore,
		"score":   score,
	}).Info("report received")

	receivedAt := c.now()
	return []effect{func(context.Context) {
		if c.archive != nil && id != "" {
			if err := c.archive.SaveReport(id, r, receivedAt); err != nil {
				c.log.WithError(err).WithField("call_id", id).Error("archive report")
			}
		}
		if c.presenter != nil {
			c.presenter.BroadcastReportReady(id, r)
		}
	}}
}

func (c *Controller) deviceCall(name, handle string, call func(context.Context, string) error) effect {
	return func(ctx context.Context) {
		if err := call(ctx, handle); err != nil {
			c.log.WithError(err).WithField("call_sid", handle).Errorf("device %s failed", name)
		}
	}
}

func (c *Controller) broadcastState() effect {
	state, caps := c.state, c.capabilities()
	return func(context.Context) {
		if c.presenter != nil {
			c.presenter.BroadcastCallState(state, caps)
		}
	}
}

func (c *Controller) setState(st State) {
	c.state = st
	if c.current != nil {
		c.current.State = st
	}
}

func (c *Controller) capabilities() Capabilities {
	caps := Capabilities{DeviceReady: c.deviceReady}
	if c.current == nil || c.device == nil {
		return caps
	}
	switch c.state {
	case StateRinging:
		caps.CanAccept = c.current.Handle != ""
		caps.CanDecline = c.current.Handle != ""
	case StateInCall:
		caps.CanHangUp = c.current.DeviceAccepted && c.current.Handle != ""
	}
	return caps
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		State:            c.state,
		Session:          c.current.clone(),
		Report:           c.report,
		Capabilities:     c.capabilities(),
		ChannelConnected: c.channelConnected,
	}
}
