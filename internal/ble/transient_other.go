//go:build !linux

package ble

// isPlatformTransient reports false; only BlueZ errors are classified.
func isPlatformTransient(error) bool { return false }
