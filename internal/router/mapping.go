package router

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/callwatch/internal/notify"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/telephony"
)

// FromNotification maps a notification frame to a controller event.
// Unknown events map to ok=false.
func FromNotification(msg notify.Message) (session.Event, bool, error) {
	switch msg.Event {
	case notify.EventCallIncoming:
		var p notify.IncomingPayload
		if err := msg.Decode(&p); err != nil {
			return session.Event{}, false, err
		}
		return session.Incoming(session.SourceNotification, p.From, ""), true, nil

	case notify.EventUpdate:
		var p notify.UpdatePayload
		if err := msg.Decode(&p); err != nil {
			return session.Event{}, false, err
		}
		return session.TranscriptUpdate(p.Caller, p.Suggestion), true, nil

	case notify.EventCallReport:
		var p notify.ReportPayload
		if err := msg.Decode(&p); err != nil {
			return session.Event{}, false, err
		}
		return session.ReportReceived(p.Report), true, nil

	case notify.EventCallEnded:
		var p notify.EndedPayload
		if err := msg.Decode(&p); err != nil {
			return session.Event{}, false, err
		}
		return session.RemoteEnded(session.SourceNotification, "", p.Status), true, nil

	case notify.EventConnect:
		return session.ChannelConnected(), true, nil

	case notify.EventDisconnect:
		var p notify.DisconnectPayload
		if err := msg.Decode(&p); err != nil {
			return session.Event{}, false, err
		}
		return session.ChannelDisconnected(p.Reason), true, nil
	}
	return session.Event{}, false, nil
}

// FromDevice maps a device gateway event to a controller event.
func FromDevice(ev telephony.DeviceEvent) (session.Event, bool) {
	switch ev.Type {
	case telephony.EventReady:
		return session.DeviceReady(), true
	case telephony.EventIncoming:
		return session.Incoming(session.SourceDevice, ev.From, ev.CallSID), true
	case telephony.EventDisconnect:
		return session.RemoteEnded(session.SourceDevice, ev.CallSID, ""), true
	}
	return session.Event{}, false
}

// NotificationHandler returns a notify.Handler feeding the router.
func (r *Router) NotificationHandler(ctx context.Context) notify.Handler {
	return func(msg notify.Message) {
		ev, ok, err := FromNotification(msg)
		if err != nil {
			r.log.WithError(err).WithField("event", msg.Event).Warn("dropping notification")
			return
		}
		if !ok {
			r.log.WithField("event", msg.Event).Debug("ignoring unknown notification")
			return
		}
		r.enqueue(ctx, ev)
	}
}

// DeviceHandler returns a callback for telephony.Phone.Run feeding the router.
func (r *Router) DeviceHandler(ctx context.Context) func(telephony.DeviceEvent) {
	return func(dev telephony.DeviceEvent) {
		ev, ok := FromDevice(dev)
		if !ok {
			r.log.WithField("type", dev.Type).Debug("ignoring unknown device event")
			return
		}
		r.enqueue(ctx, ev)
	}
}

func (r *Router) enqueue(ctx context.Context, ev session.Event) {
	if err := r.Dispatch(ctx, ev); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"kind":   ev.Kind,
			"source": ev.Source,
		}).Warn("event dropped")
	}
}
