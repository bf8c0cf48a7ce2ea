// Package ble provides the BLE client for eFIRE fireplace controllers. It
// manages the link lifecycle (connect, idle disconnect, unexpected
// disconnect) and correlates each framed command with the notification that
// answers it.
package ble

import (
	"context"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

// eFIRE GATT UUIDs.
const (
	ServiceUUID   = protocol.ServiceUUID
	WriteCharUUID = protocol.WriteCharUUID
	ReadCharUUID  = protocol.ReadCharUUID
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic and waits for the write response.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe stops notifications on this characteristic.
	Unsubscribe() error
}

// Device describes a BLE peripheral. Name and RSSI are best effort.
type Device struct {
	Name string
	MAC  string
	RSSI int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals advertising the given service UUID.
	// Returns discovered devices until ctx is cancelled or timeout.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device with the given MAC address.
	Connect(ctx context.Context, mac string) (Connection, error)
}
