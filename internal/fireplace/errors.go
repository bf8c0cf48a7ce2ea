package fireplace

import (
	"errors"
	"fmt"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

var (
	// ErrAuth is returned when a command needs a login and the login failed.
	ErrAuth = errors.New("fireplace: authentication failed")
	// ErrFeatureNotSupported is returned for commands on a feature the
	// unit does not have.
	ErrFeatureNotSupported = errors.New("fireplace: feature not supported")
	// ErrOutOfRange is returned when an argument is outside its valid range.
	ErrOutOfRange = errors.New("fireplace: value out of range")
	// ErrCommandFailed is returned when the controller reports failure for
	// a command that must succeed.
	ErrCommandFailed = errors.New("fireplace: command failed")
	// ErrUnknownFeature is returned for feature names outside the known set.
	ErrUnknownFeature = errors.New("fireplace: unknown feature")
	// ErrInvalidPassword is returned for passwords that cannot be sent.
	ErrInvalidPassword = errors.New("fireplace: invalid password")
)

// FeatureError reports a command for a feature the unit does not have.
type FeatureError struct {
	Device  string
	Feature Feature
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("fireplace: %s does not have feature %q", e.Device, e.Feature)
}

func (e *FeatureError) Is(target error) bool {
	return target == ErrFeatureNotSupported
}

// RangeError reports an argument outside [Min, Max].
type RangeError struct {
	Field    string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("fireplace: %s must be between %d and %d, got %d", e.Field, e.Min, e.Max, e.Value)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// CommandFailedError reports a failure return code, or an empty response,
// for Op.
type CommandFailedError struct {
	Op     protocol.Opcode
	Result []byte
}

func (e *CommandFailedError) Error() string {
	if len(e.Result) == 0 {
		return fmt.Sprintf("fireplace: %v returned an empty response", e.Op)
	}
	return fmt.Sprintf("fireplace: %v failed with return code %x", e.Op, e.Result)
}

func (e *CommandFailedError) Is(target error) bool {
	return target == ErrCommandFailed
}

func checkRange(field string, v, min, max int) error {
	if v < min || v > max {
		return &RangeError{Field: field, Value: v, Min: min, Max: max}
	}
	return nil
}
