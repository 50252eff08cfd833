package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaminmoo/blesync/internal/notify"
)

// ErrPermissionDenied is returned by StartScan when the adapter could not be
// enabled. The scan is still attempted.
var ErrPermissionDenied = errors.New("bluetooth permission denied")

const stopRetryInterval = 50 * time.Millisecond

// Scanner keeps the set of named peripherals seen since the last StartScan.
type Scanner struct {
	adapter  Adapter
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	scanning bool
	stopping bool
	results  []Peripheral
	index    map[string]int
	done     chan struct{}
}

// NewScanner creates a scanner on top of adapter. notifier may be nil.
func NewScanner(adapter Adapter, notifier notify.Notifier, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		adapter:  adapter,
		notifier: notifier,
		logger:   logger,
		index:    make(map[string]int),
	}
}

// StartScan clears previous results and starts discovery in the background.
// Discovery runs until StopScan or until ctx is cancelled. Calling it while a
// scan is running does nothing.
func (s *Scanner) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return nil
	}
	s.scanning = true
	s.stopping = false
	s.results = nil
	s.index = make(map[string]int)
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	var enableErr error
	if err := s.adapter.Enable(); err != nil {
		s.logger.Warn("bluetooth unavailable", "error", err)
		if s.notifier != nil {
			s.notifier.Notify(notify.PermissionDenied)
		}
		enableErr = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	go s.run(done)
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.StopScan()
			case <-done:
			}
		}()
	}

	s.logger.Debug("scan started")
	return enableErr
}

func (s *Scanner) run(done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
		close(done)
	}()

	s.mu.Lock()
	stopped := s.stopping
	s.mu.Unlock()
	if stopped {
		return
	}

	if err := s.adapter.Scan(s.handle); err != nil {
		s.logger.Error("discovery error", "error", err)
	}
}

func (s *Scanner) handle(adv Advertisement) {
	if adv.Name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanning || s.stopping {
		return
	}
	if _, ok := s.index[adv.ID]; ok {
		return
	}
	s.index[adv.ID] = len(s.results)
	s.results = append(s.results, Peripheral{ID: adv.ID, Name: adv.Name, RSSI: adv.RSSI})
	s.logger.Debug("peripheral discovered", "id", adv.ID, "name", adv.Name, "rssi", adv.RSSI)
}

// StopScan halts discovery and waits for the scan to wind down. It is safe to
// call when no scan is active.
func (s *Scanner) StopScan() {
	s.mu.Lock()
	if !s.scanning || s.stopping {
		done := s.done
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	s.stopping = true
	done := s.done
	s.mu.Unlock()

	// The adapter may not have entered Scan yet, so keep asking until the
	// scan goroutine exits.
	ticker := time.NewTicker(stopRetryInterval)
	defer ticker.Stop()
	for {
		if err := s.adapter.StopScan(); err != nil {
			s.logger.Debug("stop scan", "error", err)
		}
		select {
		case <-done:
			s.logger.Debug("scan stopped")
			return
		case <-ticker.C:
		}
	}
}

// Scanning reports whether discovery is running.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Results returns the discovered peripherals in discovery order.
func (s *Scanner) Results() []Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peripheral, len(s.results))
	copy(out, s.results)
	return out
}

// Lookup returns a discovered peripheral by id.
func (s *Scanner) Lookup(id string) (Peripheral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Peripheral{}, false
	}
	return s.results[i], true
}
