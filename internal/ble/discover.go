package ble

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ScanForDevices scans for controllers advertising the eFIRE service.
func ScanForDevices(adapter Adapter, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return devices, nil
}

// LookupDevice scans for up to timeout and returns the metadata advertised
// by the device with the given address. When the device is not seen the
// returned Device carries only the address, alongside the error.
func LookupDevice(adapter Adapter, mac string, timeout time.Duration) (Device, error) {
	devices, err := ScanForDevices(adapter, timeout)
	if err != nil {
		return Device{MAC: mac}, err
	}
	for _, d := range devices {
		if strings.EqualFold(d.MAC, mac) {
			d.MAC = mac
			return d, nil
		}
	}
	return Device{MAC: mac}, fmt.Errorf("ble: device %s not found", mac)
}
