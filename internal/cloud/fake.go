package cloud

import (
	"context"
	"sync"
)

// FakePusher records pushed payloads for test assertions.
type FakePusher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	closed   bool
}

// NewFakePusher creates a FakePusher.
func NewFakePusher() *FakePusher {
	return &FakePusher{}
}

// Push records the payload or returns the injected error.
func (f *FakePusher) Push(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return nil
}

// SetError makes subsequent pushes fail with err (nil clears it).
func (f *FakePusher) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Payloads returns the recorded payloads.
func (f *FakePusher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.payloads))
	copy(out, f.payloads)
	return out
}

// Close marks the pusher closed.
func (f *FakePusher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePusher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
