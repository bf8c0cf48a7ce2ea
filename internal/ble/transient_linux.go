//go:build linux

package ble

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

// BlueZ errors that retrying cannot fix.
var fatalBlueZErrors = map[string]bool{
	"org.bluez.Error.NotPermitted":       true,
	"org.bluez.Error.NotAuthorized":      true,
	"org.bluez.Error.NotSupported":       true,
	"org.bluez.Error.InvalidArguments":   true,
	"org.bluez.Error.InvalidValueLength": true,
	"org.bluez.Error.DoesNotExist":       true,
}

// isPlatformTransient classifies D-Bus errors surfaced by BlueZ. Failures
// such as "Operation already in progress" or a dropped link are retryable;
// permission and argument errors are not.
func isPlatformTransient(err error) bool {
	name, ok := dbusErrorName(err)
	if !ok {
		return false
	}
	if fatalBlueZErrors[name] {
		return false
	}
	switch name {
	case "org.freedesktop.DBus.Error.NoReply", "org.freedesktop.DBus.Error.Timeout":
		return true
	}
	return strings.HasPrefix(name, "org.bluez.Error.")
}

func dbusErrorName(err error) (string, bool) {
	var value dbus.Error
	if errors.As(err, &value) {
		return value.Name, true
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name, true
	}
	return "", false
}
