// Package gateway connects the BLE session, local store and sync client into
// one pipeline: each reading is appended to storage and, when the network is
// reported up, the whole log is pushed upstream.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaminmoo/blesync/internal/ble"
	"github.com/vitaminmoo/blesync/internal/netstat"
	"github.com/vitaminmoo/blesync/internal/notify"
	"github.com/vitaminmoo/blesync/internal/reading"
	"github.com/vitaminmoo/blesync/internal/sampler"
	"github.com/vitaminmoo/blesync/internal/store"
)

// ErrUnknownPeripheral is returned by Connect for an id the scanner has not
// reported.
var ErrUnknownPeripheral = errors.New("unknown peripheral")

// Syncer pushes the full reading log upstream.
type Syncer interface {
	Sync(ctx context.Context, log reading.Log) error
}

// Options wires a Gateway. Adapter, Store and Syncer are required.
type Options struct {
	Adapter  ble.Adapter
	Store    *store.LocalStore
	Syncer   Syncer
	Monitor  *netstat.Monitor     // nil creates a monitor that stays online
	Feed     <-chan netstat.Event // optional connectivity feed
	Notifier notify.Notifier      // nil drops alerts

	Interval       time.Duration
	ConnectTimeout time.Duration
	SamplerOptions []sampler.Option
	Logger         *slog.Logger
}

// SyncResult is the outcome of the most recent sync attempt.
type SyncResult struct {
	At    time.Time
	Count int
	Err   error
}

// Status is a point-in-time view of the gateway.
type Status struct {
	State      ble.State
	Peripheral *ble.Peripheral
	Scanning   bool
	Latest     *reading.Reading
	Online     bool
	Stored     int
	LastSync   *SyncResult
}

// Gateway owns the scanner, the connector and its sampler.
type Gateway struct {
	scanner   *ble.Scanner
	connector *ble.Connector
	store     *store.LocalStore
	syncer    Syncer
	monitor   *netstat.Monitor
	feed      <-chan netstat.Event
	notifier  notify.Notifier
	logger    *slog.Logger

	mu       sync.RWMutex
	ctx      context.Context // storage, outlives Close
	syncCtx  context.Context // uploads, cancelled by Close
	cancel   context.CancelFunc
	latest   *reading.Reading
	lastSync *SyncResult

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a gateway. Call Start before connecting.
func New(opts Options) (*Gateway, error) {
	if opts.Adapter == nil {
		return nil, errors.New("gateway: adapter is required")
	}
	if opts.Store == nil {
		return nil, errors.New("gateway: store is required")
	}
	if opts.Syncer == nil {
		return nil, errors.New("gateway: syncer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	monitor := opts.Monitor
	if monitor == nil {
		monitor = netstat.NewMonitor(logger)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Multi(nil)
	}

	g := &Gateway{
		store:    opts.Store,
		syncer:   opts.Syncer,
		monitor:  monitor,
		feed:     opts.Feed,
		notifier: notifier,
		logger:   logger,
		ctx:      context.Background(),
		syncCtx:  context.Background(),
	}

	smpOpts := append([]sampler.Option{sampler.WithLogger(logger)}, opts.SamplerOptions...)
	smp := sampler.New(opts.Interval, smpOpts...)

	g.scanner = ble.NewScanner(opts.Adapter, notifier, logger)
	g.connector = ble.NewConnector(opts.Adapter, smp, g.record,
		ble.WithConnectTimeout(opts.ConnectTimeout),
		ble.WithConnectorLogger(logger),
	)
	return g, nil
}

// Start loads the stored log and begins consuming the connectivity feed.
// It returns the loaded log.
func (g *Gateway) Start(ctx context.Context) reading.Log {
	ctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	// Readings taken while shutting down are still stored.
	g.ctx = context.WithoutCancel(ctx)
	g.syncCtx = ctx
	g.cancel = cancel
	g.mu.Unlock()

	log := g.store.Load(ctx)
	g.logger.Info("loaded stored data", "count", len(log))

	if g.feed != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.monitor.Watch(ctx, g.feed)
		}()
	}
	return log
}

// StartScan starts discovery. Enable failures are reported as an alert and
// the scan continues.
func (g *Gateway) StartScan(ctx context.Context) {
	if err := g.scanner.StartScan(ctx); err != nil {
		g.logger.Warn("scan started without adapter access", "error", err)
	}
}

// StopScan stops discovery.
func (g *Gateway) StopScan() {
	g.scanner.StopScan()
}

// Devices returns the peripherals found by the current or last scan.
func (g *Gateway) Devices() []ble.Peripheral {
	return g.scanner.Results()
}

// Connect stops any running scan and connects to a discovered peripheral.
// A failed attempt raises a ConnectionFailed alert.
func (g *Gateway) Connect(ctx context.Context, id string) (*ble.Session, error) {
	p, ok := g.scanner.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeripheral, id)
	}
	return g.ConnectPeripheral(ctx, p)
}

// ConnectPeripheral connects to p directly.
func (g *Gateway) ConnectPeripheral(ctx context.Context, p ble.Peripheral) (*ble.Session, error) {
	g.scanner.StopScan()

	sess, err := g.connector.Connect(ctx, p)
	if err != nil {
		if errors.Is(err, ble.ErrAlreadyConnected) || errors.Is(err, ble.ErrConnectAborted) {
			return nil, err
		}
		g.logger.Error("connection error", "id", p.ID, "error", err)
		g.notifier.Notify(notify.ConnectionFailed)
		return nil, err
	}
	return sess, nil
}

// Disconnect ends the session. No reading is recorded after it returns.
func (g *Gateway) Disconnect() error {
	return g.connector.Disconnect()
}

// SyncNow pushes the stored log regardless of connectivity.
func (g *Gateway) SyncNow(ctx context.Context) error {
	return g.sync(ctx, g.store.Load(ctx))
}

// Status returns the current state of the pipeline.
func (g *Gateway) Status() Status {
	st := Status{
		State:    g.connector.State(),
		Scanning: g.scanner.Scanning(),
		Online:   g.monitor.Online(),
		Stored:   g.store.Len(),
	}
	if sess := g.connector.Session(); sess != nil {
		p := sess.Peripheral
		st.Peripheral = &p
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.latest != nil {
		r := *g.latest
		st.Latest = &r
	}
	if g.lastSync != nil {
		s := *g.lastSync
		st.LastSync = &s
	}
	return st
}

// Readings returns a copy of the stored log.
func (g *Gateway) Readings() reading.Log {
	return g.store.Snapshot()
}

// Monitor returns the connectivity monitor.
func (g *Gateway) Monitor() *netstat.Monitor {
	return g.monitor
}

// Close cancels any in-flight sync, then stops the scan, the sampler and the
// feed consumer. Readings already taken are still stored. The store and
// syncer are left to their owner.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.mu.Lock()
		cancel := g.cancel
		g.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		g.scanner.StopScan()
		err = g.connector.Disconnect()
		g.wg.Wait()
	})
	return err
}

// record runs on the sampler goroutine for every reading.
func (g *Gateway) record(r reading.Reading) {
	g.mu.Lock()
	g.latest = &r
	ctx, syncCtx := g.ctx, g.syncCtx
	g.mu.Unlock()

	log, err := g.store.Append(ctx, r)
	if err != nil {
		g.logger.Error("error storing data", "error", err)
		return
	}
	g.logger.Debug("stored reading", "value", r.Value, "count", len(log))

	if !g.monitor.Online() {
		g.logger.Debug("offline, sync skipped", "count", len(log))
		return
	}
	if syncCtx.Err() != nil {
		return
	}
	_ = g.sync(syncCtx, log)
}

func (g *Gateway) sync(ctx context.Context, log reading.Log) error {
	err := g.syncer.Sync(ctx, log)

	g.mu.Lock()
	g.lastSync = &SyncResult{At: time.Now(), Count: len(log), Err: err}
	g.mu.Unlock()
	return err
}
