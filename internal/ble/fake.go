package ble

import (
	"errors"
	"sync"
	"time"
)

// FakeAdapter is an in-memory Adapter for tests and dry runs.
type FakeAdapter struct {
	mu           sync.Mutex
	enableErr    error
	scanErr      error
	connectErr   error
	discoverErr  error
	connectDelay time.Duration
	services     []Service

	scanning     bool
	handler      func(Advertisement)
	stop         chan struct{}
	scans        int
	connects     int
	devices      []*FakeDevice
	onDisconnect func(id string)
}

// NewFakeAdapter returns an adapter that enables, scans and connects
// successfully and reports services on every connection.
func NewFakeAdapter(services ...Service) *FakeAdapter {
	return &FakeAdapter{services: services}
}

// SetEnableError makes Enable fail.
func (f *FakeAdapter) SetEnableError(err error) {
	f.mu.Lock()
	f.enableErr = err
	f.mu.Unlock()
}

// SetScanError makes Scan return err immediately.
func (f *FakeAdapter) SetScanError(err error) {
	f.mu.Lock()
	f.scanErr = err
	f.mu.Unlock()
}

// SetConnectError makes Connect fail.
func (f *FakeAdapter) SetConnectError(err error) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

// SetDiscoverError makes service discovery fail on new connections.
func (f *FakeAdapter) SetDiscoverError(err error) {
	f.mu.Lock()
	f.discoverErr = err
	f.mu.Unlock()
}

// SetConnectDelay delays Connect by d.
func (f *FakeAdapter) SetConnectDelay(d time.Duration) {
	f.mu.Lock()
	f.connectDelay = d
	f.mu.Unlock()
}

func (f *FakeAdapter) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enableErr
}

func (f *FakeAdapter) Scan(fn func(Advertisement)) error {
	f.mu.Lock()
	if f.scanErr != nil {
		err := f.scanErr
		f.mu.Unlock()
		return err
	}
	if f.scanning {
		f.mu.Unlock()
		return errors.New("scan already in progress")
	}
	f.scanning = true
	f.handler = fn
	f.stop = make(chan struct{})
	f.scans++
	stop := f.stop
	f.mu.Unlock()

	<-stop
	return nil
}

func (f *FakeAdapter) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.scanning {
		return errors.New("no scan in progress")
	}
	close(f.stop)
	f.scanning = false
	f.handler = nil
	return nil
}

// Advertise delivers adv to the running scan. It reports false when no scan
// is running.
func (f *FakeAdapter) Advertise(adv Advertisement) bool {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(adv)
	return true
}

// Scanning reports whether Scan is blocked waiting for StopScan.
func (f *FakeAdapter) Scanning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanning
}

// Scans returns how many scans have started.
func (f *FakeAdapter) Scans() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

func (f *FakeAdapter) Connect(id string) (Device, error) {
	f.mu.Lock()
	f.connects++
	delay := f.connectDelay
	err := f.connectErr
	d := &FakeDevice{id: id, services: f.services, discoverErr: f.discoverErr}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.devices = append(f.devices, d)
	f.mu.Unlock()
	return d, nil
}

// Connects returns the number of Connect calls.
func (f *FakeAdapter) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Devices returns every device handed out by Connect.
func (f *FakeAdapter) Devices() []*FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeDevice, len(f.devices))
	copy(out, f.devices)
	return out
}

func (f *FakeAdapter) SetDisconnectHandler(fn func(id string)) {
	f.mu.Lock()
	f.onDisconnect = fn
	f.mu.Unlock()
}

// DropConnection simulates the peripheral ending the connection.
func (f *FakeAdapter) DropConnection(id string) {
	f.mu.Lock()
	fn := f.onDisconnect
	for _, d := range f.devices {
		if d.id == id {
			d.markDisconnected()
		}
	}
	f.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

// FakeDevice is a connection handed out by FakeAdapter.
type FakeDevice struct {
	id          string
	services    []Service
	discoverErr error

	mu           sync.Mutex
	disconnected bool
}

func (d *FakeDevice) DiscoverServices() ([]Service, error) {
	if d.discoverErr != nil {
		return nil, d.discoverErr
	}
	return d.services, nil
}

func (d *FakeDevice) Disconnect() error {
	d.markDisconnected()
	return nil
}

// Disconnected reports whether the connection was closed.
func (d *FakeDevice) Disconnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnected
}

func (d *FakeDevice) markDisconnected() {
	d.mu.Lock()
	d.disconnected = true
	d.mu.Unlock()
}
