package ble

import (
	"errors"
	"fmt"
)

var (
	// ErrDisconnected is returned when an exchange loses its connection,
	// or when an operation needs a live link and none exists.
	ErrDisconnected = errors.New("ble: device disconnected")
	// ErrCharacteristicMissing is returned when the write or read
	// characteristic cannot be resolved on connect.
	ErrCharacteristicMissing = errors.New("ble: characteristic missing")
	// ErrTimeout is returned when no notification answers a request in time.
	ErrTimeout = errors.New("ble: timed out waiting for response")
)

// TransientError marks a transport error as retryable. Adapters wrap
// errors they know to be transient (busy adapter, dropped link) in it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("ble: transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient reports true.
func (e *TransientError) Transient() bool { return true }

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a retryable transport error, either
// marked explicitly or recognized as a platform error from the BLE stack.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return isPlatformTransient(err)
}
