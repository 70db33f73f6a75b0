package router

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/callwatch/internal/session"
)

var ErrStopped = errors.New("event router stopped")

// Applier is the controller the router serializes events into.
type Applier interface {
	Apply(ctx context.Context, ev session.Event) error
}

// Observer is told about every applied event.
type Observer interface {
	ObserveEvent(kind session.Kind, source session.Source, err error, took time.Duration)
}

type request struct {
	ev     session.Event
	result chan error
}

// Router applies events to the controller from a single goroutine, in the
// order they were queued. Sources enqueue concurrently; events from one
// source keep their relative order.
type Router struct {
	ctrl     Applier
	observer Observer
	log      *logrus.Entry

	queue chan request
	done  chan struct{}
}

func New(ctrl Applier, observer Observer, log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{
		ctrl:     ctrl,
		observer: observer,
		log:      log.WithField("component", "router"),
		queue:    make(chan request, 64),
		done:     make(chan struct{}),
	}
}

// Run processes queued events until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.queue:
			err := r.apply(ctx, req.ev)
			if req.result != nil {
				req.result <- err
			}
		}
	}
}

func (r *Router) apply(ctx context.Context, ev session.Event) error {
	start := time.Now()
	err := r.ctrl.Apply(ctx, ev)
	if r.observer != nil {
		r.observer.ObserveEvent(ev.Kind, ev.Source, err, time.Since(start))
	}
	return err
}

// Dispatch queues ev without waiting for it to be applied.
func (r *Router) Dispatch(ctx context.Context, ev session.Event) error {
	select {
	case r.queue <- request{ev: ev}:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do queues ev and waits for the controller's answer. Operator actions use
// it so refusals reach the HTTP caller.
func (r *Router) Do(ctx context.Context, ev session.Event) error {
	req := request{ev: ev, result: make(chan error, 1)}
	select {
	case r.queue <- req:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, ev session.Event) error

func (f ApplierFunc) Apply(ctx context.Context, ev session.Event) error { return f(ctx, ev) }
