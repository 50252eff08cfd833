// Package netstat tracks last-known network reachability.
package netstat

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Event is one observation from a connectivity feed.
type Event struct {
	Connected bool
}

// Monitor holds the last-known reachability. It starts online and every event
// from the feed overwrites it; there is no debouncing.
type Monitor struct {
	online  atomic.Bool
	changes atomic.Int64
	logger  *slog.Logger
}

// NewMonitor creates a monitor that reports online until told otherwise.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{logger: logger}
	m.online.Store(true)
	return m
}

// Online returns the last-known reachability.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Set records one observation.
func (m *Monitor) Set(connected bool) {
	was := m.online.Swap(connected)
	m.changes.Add(1)
	if was && !connected {
		m.logger.Warn("connectivity lost")
	} else if !was && connected {
		m.logger.Info("connectivity restored")
	}
}

// Observations returns how many events have been applied.
func (m *Monitor) Observations() int64 {
	return m.changes.Load()
}

// Watch applies events from feed until ctx is done or feed is closed. It runs
// on the caller's goroutine.
func (m *Monitor) Watch(ctx context.Context, feed <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-feed:
			if !ok {
				return
			}
			m.Set(ev.Connected)
		}
	}
}
