package store

import "sync"

// FakeKV is an in-memory KV with injectable failures, for tests.
type FakeKV struct {
	mu     sync.Mutex
	values map[string]string

	// GetError, if set, is returned by Get.
	GetError error
	// SetError, if set, is returned by Set.
	SetError error

	// Gets and Sets count calls.
	Gets int
	Sets int
}

// NewFakeKV creates an empty FakeKV.
func NewFakeKV() *FakeKV {
	return &FakeKV{values: make(map[string]string)}
}

// Get returns the stored value.
func (f *FakeKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets++
	if f.GetError != nil {
		return "", false, f.GetError
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// Set stores the value.
func (f *FakeKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sets++
	if f.SetError != nil {
		return f.SetError
	}
	f.values[key] = value
	return nil
}

// Put seeds a raw value without counting it as a Set.
func (f *FakeKV) Put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

// Value returns the raw stored value.
func (f *FakeKV) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Close does nothing.
func (f *FakeKV) Close() error {
	return nil
}
