package ble

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter implements Adapter on tinygo.org/x/bluetooth.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error

	mu           sync.Mutex
	seen         map[string]bluetooth.Address
	onDisconnect func(id string)
}

// NewTinyGoAdapter wraps the system default adapter.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter: bluetooth.DefaultAdapter,
		seen:    make(map[string]bluetooth.Address),
	}
}

// Enable powers up the adapter once and installs the connect handler.
func (a *TinyGoAdapter) Enable() error {
	a.enableOnce.Do(func() {
		a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			a.mu.Lock()
			fn := a.onDisconnect
			a.mu.Unlock()
			if fn != nil {
				fn(device.Address.String())
			}
		})
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = fmt.Errorf("enable bluetooth: %w", err)
		}
	})
	return a.enableErr
}

// Scan blocks until StopScan, reporting every advertisement.
func (a *TinyGoAdapter) Scan(fn func(Advertisement)) error {
	return a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		id := result.Address.String()

		a.mu.Lock()
		a.seen[id] = result.Address
		a.mu.Unlock()

		fn(Advertisement{
			ID:   id,
			Name: result.LocalName(),
			RSSI: result.RSSI,
		})
	})
}

// StopScan stops a running scan.
func (a *TinyGoAdapter) StopScan() error {
	return a.adapter.StopScan()
}

// Connect connects to a peripheral previously reported by Scan.
func (a *TinyGoAdapter) Connect(id string) (Device, error) {
	a.mu.Lock()
	addr, ok := a.seen[id]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("peripheral %s has not been discovered", id)
	}

	device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	return &tinyGoDevice{device: device}, nil
}

// SetDisconnectHandler registers fn for disconnect events.
func (a *TinyGoAdapter) SetDisconnectHandler(fn func(id string)) {
	a.mu.Lock()
	a.onDisconnect = fn
	a.mu.Unlock()
}

type tinyGoDevice struct {
	device bluetooth.Device
}

func (d *tinyGoDevice) DiscoverServices() ([]Service, error) {
	allServices, err := d.device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	services := make([]Service, 0, len(allServices))
	for i := range allServices {
		chars, err := allServices[i].DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", allServices[i].UUID().String(), err)
		}
		svc := Service{UUID: allServices[i].UUID().String()}
		for j := range chars {
			svc.Characteristics = append(svc.Characteristics, chars[j].UUID().String())
		}
		services = append(services, svc)
	}
	return services, nil
}

func (d *tinyGoDevice) Disconnect() error {
	return d.device.Disconnect()
}
