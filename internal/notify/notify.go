// Package notify carries one-shot user-facing alerts from the pipeline to
// whatever is presenting it.
package notify

import (
	"log/slog"
	"sync"
)

// Kind classifies an alert.
type Kind int

const (
	KindPermissionDenied Kind = iota + 1
	KindConnectionFailed
	KindSyncSucceeded
	KindSyncFailed
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindConnectionFailed:
		return "connection_failed"
	case KindSyncSucceeded:
		return "sync_succeeded"
	case KindSyncFailed:
		return "sync_failed"
	default:
		return "unknown"
	}
}

// Alert is a fire-and-forget notification.
type Alert struct {
	Kind    Kind
	Title   string
	Message string
}

// IsError reports whether the alert describes a failure.
func (a Alert) IsError() bool {
	return a.Kind != KindSyncSucceeded
}

// Standard alerts.
var (
	PermissionDenied = Alert{KindPermissionDenied, "Permission Denied", "Bluetooth access is required for scanning."}
	ConnectionFailed = Alert{KindConnectionFailed, "Connection Failed", "Unable to connect to the device."}
	SyncSucceeded    = Alert{KindSyncSucceeded, "Sync Success", "Data has been synced to the cloud."}
	SyncFailed       = Alert{KindSyncFailed, "Sync Failed", "Unable to sync data to the cloud."}
)

// Notifier presents alerts. Implementations must not block the caller for long.
type Notifier interface {
	Notify(Alert)
}

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the alert at warn for failures and info otherwise.
func (n LogNotifier) Notify(a Alert) {
	log := n.Logger
	if log == nil {
		log = slog.Default()
	}
	if a.IsError() {
		log.Warn(a.Title, "kind", a.Kind.String(), "message", a.Message)
		return
	}
	log.Info(a.Title, "kind", a.Kind.String(), "message", a.Message)
}

// Chan delivers alerts on a buffered channel, dropping them when the reader
// falls behind.
type Chan struct {
	ch chan Alert
}

// NewChan creates a channel notifier with the given buffer size.
func NewChan(size int) *Chan {
	return &Chan{ch: make(chan Alert, size)}
}

// Notify queues the alert or drops it if the buffer is full.
func (c *Chan) Notify(a Alert) {
	select {
	case c.ch <- a:
	default:
	}
}

// C returns the receive side.
func (c *Chan) C() <-chan Alert {
	return c.ch
}

// Recorder keeps every alert, for tests.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

// Notify records the alert.
func (r *Recorder) Notify(a Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
}

// Alerts returns a copy of the recorded alerts.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Count returns how many alerts of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.alerts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Multi fans an alert out to several notifiers.
type Multi []Notifier

// Notify forwards to each notifier in order.
func (m Multi) Notify(a Alert) {
	for _, n := range m {
		n.Notify(a)
	}
}
