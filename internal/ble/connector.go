package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaminmoo/blesync/internal/reading"
)

var (
	// ErrAlreadyConnected is returned by Connect while a session is being
	// opened or is open.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrConnectionFailed wraps every failed connection attempt.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrConnectAborted is returned by Connect when Disconnect was called
	// while the attempt was in flight.
	ErrConnectAborted = errors.New("connect aborted")
)

// State is the connector's position in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sampler is the periodic reading source started for each session.
type Sampler interface {
	Start(ctx context.Context, emit func(reading.Reading)) error
	Stop()
}

// Session describes the open connection.
type Session struct {
	Peripheral  Peripheral
	Services    []Service
	ConnectedAt time.Time
}

// Connector holds at most one peripheral connection and runs the sampler
// while it is open.
type Connector struct {
	adapter Adapter
	sampler Sampler
	emit    func(reading.Reading)
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	aborted bool
	device  Device
	session *Session
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithConnectTimeout bounds connect plus service discovery. Zero means no
// timeout.
func WithConnectTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.timeout = d }
}

// WithConnectorLogger sets the logger.
func WithConnectorLogger(l *slog.Logger) ConnectorOption {
	return func(c *Connector) { c.logger = l }
}

// NewConnector creates a disconnected connector. Every reading produced by
// sampler during a session is passed to emit.
func NewConnector(adapter Adapter, sampler Sampler, emit func(reading.Reading), opts ...ConnectorOption) *Connector {
	c := &Connector{
		adapter: adapter,
		sampler: sampler,
		emit:    emit,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	adapter.SetDisconnectHandler(c.peripheralDisconnected)
	return c
}

// State returns the current state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the open session, or nil.
func (c *Connector) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Connect makes a single attempt to connect to p, discovers its services and
// starts the sampler. On failure the connector is left disconnected and the
// error wraps ErrConnectionFailed, or ErrConnectAborted when Disconnect
// interrupted the attempt.
func (c *Connector) Connect(ctx context.Context, p Peripheral) (*Session, error) {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.aborted = false
	c.mu.Unlock()

	c.logger.Info("connecting", "id", p.ID, "name", p.Name)

	device, services, err := c.open(ctx, p.ID)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, p.DisplayName(), err)
	}

	session := &Session{Peripheral: p, Services: services, ConnectedAt: time.Now()}

	c.mu.Lock()
	if c.aborted {
		c.aborted = false
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = device.Disconnect()
		c.logger.Info("connect aborted", "id", p.ID)
		return nil, fmt.Errorf("%w: %s", ErrConnectAborted, p.DisplayName())
	}
	if err := c.sampler.Start(context.Background(), c.emit); err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = device.Disconnect()
		return nil, fmt.Errorf("%w: %s: start sampler: %w", ErrConnectionFailed, p.DisplayName(), err)
	}
	c.device = device
	c.session = session
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("connected", "id", p.ID, "services", len(services))
	out := *session
	return &out, nil
}

type openResult struct {
	device   Device
	services []Service
	err      error
}

func (c *Connector) open(ctx context.Context, id string) (Device, []Service, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ch := make(chan openResult, 1)
	go func() {
		device, err := c.adapter.Connect(id)
		if err != nil {
			ch <- openResult{err: err}
			return
		}
		services, err := device.DiscoverServices()
		if err != nil {
			_ = device.Disconnect()
			ch <- openResult{err: fmt.Errorf("discover services: %w", err)}
			return
		}
		ch <- openResult{device: device, services: services}
	}()

	select {
	case r := <-ch:
		return r.device, r.services, r.err
	case <-ctx.Done():
		// A late success must not leave a dangling connection.
		go func() {
			if r := <-ch; r.device != nil {
				_ = r.device.Disconnect()
			}
		}()
		return nil, nil, ctx.Err()
	}
}

// Disconnect stops the sampler, then closes the connection. No reading is
// emitted after it returns. It is safe to call when not connected. While a
// Connect is in flight it makes that attempt fail with ErrConnectAborted
// instead of opening a session.
func (c *Connector) Disconnect() error {
	device, id := c.teardown()
	if device == nil {
		return nil
	}
	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", id, err)
	}
	c.logger.Info("disconnected", "id", id)
	return nil
}

func (c *Connector) peripheralDisconnected(id string) {
	c.mu.Lock()
	match := c.session != nil && c.session.Peripheral.ID == id
	c.mu.Unlock()
	if !match {
		return
	}

	if device, _ := c.teardown(); device != nil {
		c.logger.Warn("peripheral disconnected", "id", id)
	}
}

// teardown leaves the connected state and stops the sampler. It returns the
// device that was open, if any.
func (c *Connector) teardown() (Device, string) {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.aborted = true
	}
	if c.state != StateConnected || c.device == nil {
		c.mu.Unlock()
		return nil, ""
	}
	device := c.device
	id := c.session.Peripheral.ID
	c.device = nil
	c.session = nil
	c.mu.Unlock()

	c.sampler.Stop()

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	return device, id
}
