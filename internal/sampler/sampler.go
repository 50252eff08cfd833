// Package sampler produces synthetic readings on a fixed interval while a
// peripheral session is open.
package sampler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vitaminmoo/blesync/internal/reading"
)

// DefaultInterval is the time between two readings.
const DefaultInterval = 5 * time.Second

// maxValue is the largest value a reading formats to. Sources close enough
// to 1 would otherwise round up to "100.00".
const maxValue = 99.99

// ErrRunning is returned by Start when the loop is already active.
var ErrRunning = errors.New("sampler already running")

// Sampler emits one reading per interval until stopped. The emit callback
// runs on the sampler goroutine, one call at a time.
type Sampler struct {
	interval time.Duration
	source   func() float64
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithSource replaces the random source. fn must return values in [0, 1).
// Values that would format as "100.00" are capped at 99.99.
func WithSource(fn func() float64) Option {
	return func(s *Sampler) { s.source = fn }
}

// WithClock replaces time.Now for reading timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// New creates a stopped sampler. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, opts ...Option) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sampler{
		interval: interval,
		source:   rand.Float64,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured interval.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Start begins the loop. The first reading arrives one interval after Start.
// The loop also ends when ctx is cancelled.
func (s *Sampler) Start(ctx context.Context, emit func(reading.Reading)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, emit, s.done)

	s.logger.Debug("sampler started", "interval", s.interval)
	return nil
}

// Stop cancels the loop and waits for it to exit. No reading is emitted after
// Stop returns. Stop is idempotent. It must not be called from inside emit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("sampler stopped")
}

// Running reports whether the loop is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Sampler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Sampler) loop(ctx context.Context, emit func(reading.Reading), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick and a cancel can be ready together; cancel wins.
			if ctx.Err() != nil {
				return
			}
			emit(reading.New(math.Min(s.source()*100, maxValue), s.now()))
		}
	}
}
