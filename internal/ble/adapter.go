// Package ble discovers and connects to BLE peripherals.
package ble

// Advertisement is one discovery callback from the adapter.
type Advertisement struct {
	ID   string // stable identifier (address)
	Name string // local name, may be empty
	RSSI int16
}

// Peripheral is a discovered device that can be connected to.
type Peripheral struct {
	ID   string
	Name string
	RSSI int16
}

// DisplayName returns the name, or the ID when the name is empty.
func (p Peripheral) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Service is a discovered GATT service and its characteristic UUIDs.
type Service struct {
	UUID            string
	Characteristics []string
}

// Device is an open connection to a peripheral.
type Device interface {
	// DiscoverServices resolves all services and their characteristics.
	DiscoverServices() ([]Service, error)
	// Disconnect closes the connection.
	Disconnect() error
}

// Adapter is the platform BLE stack.
type Adapter interface {
	// Enable powers up the stack. It fails when access is denied.
	Enable() error
	// Scan calls fn for every advertisement and blocks until StopScan.
	Scan(fn func(Advertisement)) error
	// StopScan ends a running Scan.
	StopScan() error
	// Connect opens a connection to a peripheral seen by Scan.
	Connect(id string) (Device, error)
	// SetDisconnectHandler registers fn for peripheral-initiated disconnects.
	SetDisconnectHandler(fn func(id string))
}
