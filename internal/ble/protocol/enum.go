package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownMode is returned when bytes match no LED mode encoding.
	ErrUnknownMode = errors.New("protocol: unknown LED mode")
	// ErrUnknownLEDState is returned when bytes match no LED state encoding.
	ErrUnknownLEDState = errors.New("protocol: unknown LED state")
)

// LEDMode is an effect of the LED controller. The device encodes each mode
// in three forms: a single byte in status responses, a three byte form in
// GET_LED_MODE responses, and a set value written with SET_LED_MODE.
type LEDMode int

const (
	LEDModeCycle LEDMode = iota + 1
	LEDModeHold
	LEDModeEmberBed
)

// ledModeOffOffset is added to a mode's set value to switch the mode off.
const ledModeOffOffset = 0x05

type ledModeForms struct {
	mode  LEDMode
	name  string
	short byte
	long  [3]byte
	set   byte
}

var ledModeTable = []ledModeForms{
	{LEDModeCycle, "cycle", 0x01, [3]byte{0x01, 0x01, 0x01}, 0x20},
	{LEDModeHold, "hold", 0x02, [3]byte{0x02, 0x02, 0x02}, 0x30},
	{LEDModeEmberBed, "ember_bed", 0xFF, [3]byte{0xFF, 0xFF, 0xFF}, 0x10},
}

func (m LEDMode) forms() (ledModeForms, bool) {
	for _, f := range ledModeTable {
		if f.mode == m {
			return f, true
		}
	}
	return ledModeForms{}, false
}

func (m LEDMode) String() string {
	if f, ok := m.forms(); ok {
		return f.name
	}
	return fmt.Sprintf("LEDMode(%d)", int(m))
}

// Short returns the single byte status form.
func (m LEDMode) Short() byte {
	f, _ := m.forms()
	return f.short
}

// Long returns the three byte form.
func (m LEDMode) Long() []byte {
	f, _ := m.forms()
	return f.long[:]
}

// SetValue returns the parameter that enables the mode via SET_LED_MODE.
func (m LEDMode) SetValue() byte {
	f, _ := m.forms()
	return f.set
}

// OffValue returns the parameter that disables the mode via SET_LED_MODE.
func (m LEDMode) OffValue() byte {
	return m.SetValue() + ledModeOffOffset
}

// Valid reports whether m is a defined mode.
func (m LEDMode) Valid() bool {
	_, ok := m.forms()
	return ok
}

// LookupLEDMode maps any encoded form of a mode back to the mode. A single
// byte is tried as the short form and then as the set value; three bytes
// are tried as the long form.
func LookupLEDMode(b []byte) (LEDMode, error) {
	switch len(b) {
	case 1:
		for _, f := range ledModeTable {
			if b[0] == f.short || b[0] == f.set {
				return f.mode, nil
			}
		}
	case 3:
		for _, f := range ledModeTable {
			if bytes.Equal(b, f.long[:]) {
				return f.mode, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %x", ErrUnknownMode, b)
}

// ParseLEDModeName maps a mode name ("cycle", "hold", "ember_bed") to a mode.
// Dashes are accepted in place of underscores.
func ParseLEDModeName(name string) (LEDMode, error) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	for _, f := range ledModeTable {
		if f.name == name {
			return f.mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// LEDState is the power state of the LED controller.
type LEDState int

const (
	LEDOff LEDState = iota
	LEDOn
)

var ledStateTable = []struct {
	state LEDState
	short byte
	long  [3]byte
}{
	{LEDOff, 0x00, [3]byte{0x00, 0x00, 0x00}},
	{LEDOn, 0xFF, [3]byte{0xFF, 0xFF, 0xFF}},
}

func (s LEDState) String() string {
	if s == LEDOn {
		return "on"
	}
	return "off"
}

// Short returns the single byte form.
func (s LEDState) Short() byte {
	for _, e := range ledStateTable {
		if e.state == s {
			return e.short
		}
	}
	return 0
}

// Long returns the three byte form used by SET_LED_POWER and GET_LED_STATE.
func (s LEDState) Long() []byte {
	for _, e := range ledStateTable {
		if e.state == s {
			return e.long[:]
		}
	}
	return nil
}

// LookupLEDState maps a one or three byte encoding back to a state.
func LookupLEDState(b []byte) (LEDState, error) {
	for _, e := range ledStateTable {
		if (len(b) == 1 && b[0] == e.short) || bytes.Equal(b, e.long[:]) {
			return e.state, nil
		}
	}
	return 0, fmt.Errorf("%w: %x", ErrUnknownLEDState, b)
}
