//go:build linux

package ble

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestIsPlatformTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"in progress", dbus.Error{Name: "org.bluez.Error.InProgress"}, true},
		{"failed pointer", &dbus.Error{Name: "org.bluez.Error.Failed"}, true},
		{"no reply", fmt.Errorf("connect: %w", dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}), true},
		{"not permitted", dbus.Error{Name: "org.bluez.Error.NotPermitted"}, false},
		{"unknown object", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownObject"}, false},
		{"not dbus", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
