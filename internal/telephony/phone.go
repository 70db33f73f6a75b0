package telephony

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrNotRegistered = errors.New("device is not registered")

type Config struct {
	TokenURL   string
	GatewayURL string
	APIKey     string
	Identity   string
}

// Phone is the dashboard's telephony device. It registers once with a
// freshly fetched token and then relays device events. Outbound actions
// fail with ErrNotRegistered until registration completes.
type Phone struct {
	cfg    Config
	tokens *TokenClient
	log    *logrus.Entry

	mu sync.RWMutex
	gw *Gateway
}

func NewPhone(cfg Config, log *logrus.Entry) *Phone {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Phone{
		cfg:    cfg,
		tokens: NewTokenClient(cfg.TokenURL),
		log:    log.WithField("component", "telephony"),
	}
}

// Initialize fetches a token and registers the device with it. The token
// must be obtained before registration; neither step is retried.
func (p *Phone) Initialize(ctx context.Context) (*Gateway, error) {
	tok, err := p.tokens.Fetch(ctx, p.cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("fetch token: %w", err)
	}
	p.log.WithField("identity", tok.Identity).Info("token acquired")

	gw, err := DialGateway(ctx, p.cfg.GatewayURL, p.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if err := gw.Register(ctx, tok.Token); err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("register device: %w", err)
	}
	return gw, nil
}

// Run initializes the device and relays its events to handle until ctx is
// cancelled or the gateway connection drops.
func (p *Phone) Run(ctx context.Context, handle func(DeviceEvent)) error {
	gw, err := p.Initialize(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.gw = gw
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.gw = nil
		p.mu.Unlock()
	}()

	defer gw.Close()
	stop := context.AfterFunc(ctx, func() { _ = gw.Close() })
	defer stop()

	err = gw.Listen(handle)
	if ctx.Err() != nil {
		return nil
	}
	p.log.WithError(err).Warn("device gateway connection lost")
	return err
}

func (p *Phone) gateway() (*Gateway, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.gw == nil {
		return nil, ErrNotRegistered
	}
	return p.gw, nil
}

func (p *Phone) Accept(ctx context.Context, callSID string) error {
	gw, err := p.gateway()
	if err != nil {
		return err
	}
	return gw.Accept(ctx, callSID)
}

func (p *Phone) Reject(ctx context.Context, callSID string) error {
	gw, err := p.gateway()
	if err != nil {
		return err
	}
	return gw.Reject(ctx, callSID)
}

func (p *Phone) Disconnect(ctx context.Context, callSID string) error {
	gw, err := p.gateway()
	if err != nil {
		return err
	}
	return gw.Disconnect(ctx, callSID)
}

// Registered reports whether the device currently holds a gateway connection.
func (p *Phone) Registered() bool {
	_, err := p.gateway()
	return err == nil
}
