package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler receives frames in arrival order, one at a time.
type Handler func(Message)

// Client keeps a websocket connection to the notification server open,
// reconnecting with exponential backoff until its context is cancelled.
type Client struct {
	url         string
	header      http.Header
	dialer      *websocket.Dialer
	maxInterval time.Duration
	log         *logrus.Entry
}

func NewClient(url string, maxInterval time.Duration, log *logrus.Entry) *Client {
	if maxInterval <= 0 {
		maxInterval = 30 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		url:         url,
		header:      http.Header{},
		dialer:      websocket.DefaultDialer,
		maxInterval: maxInterval,
		log:         log.WithField("component", "notify"),
	}
}

// SetHeader adds a header sent with every dial.
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// Run connects and delivers frames to handle until ctx is cancelled. It
// returns nil on cancellation.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	if c.url == "" {
		return errors.New("notification url is empty")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0

	op := func() error {
		err := c.connectOnce(ctx, handle, bo.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("retry_in", wait).Warn("notification channel unavailable")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), onRetry)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// connectOnce runs one connection to completion. connected is called once
// the dial succeeds so a healthy session restarts the backoff schedule.
func (c *Client) connectOnce(ctx context.Context, handle Handler, connected func()) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial notification channel: %w", err)
	}
	defer conn.Close()

	connected()
	c.log.WithField("url", c.url).Info("notification channel connected")
	handle(Message{Event: EventConnect})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			reason := err.Error()
			if ctx.Err() != nil {
				reason = "shutdown"
			}
			handle(newMessage(EventDisconnect, DisconnectPayload{Reason: reason}))
			return fmt.Errorf("read notification frame: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithError(err).Warn("dropping malformed notification frame")
			continue
		}
		if msg.Event == "" {
			c.log.Debug("dropping notification frame without event")
			continue
		}
		handle(msg)
	}
}
