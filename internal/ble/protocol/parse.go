package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrShortPayload is returned when a payload is too short for its layout.
var ErrShortPayload = errors.New("protocol: payload too short")

func shortPayload(what string, p []byte, want int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, what, want, len(p))
}

// ParseBLEVersion decodes a GET_BLE_VERSION payload.
func ParseBLEVersion(p []byte) (string, error) {
	if len(p) < 2 {
		return "", shortPayload("BLE version", p, 2)
	}
	return strconv.Itoa(int(p[1])), nil
}

// ParseMCUVersion decodes a GET_MCU_VERSION payload as "major.minorpatch".
func ParseMCUVersion(p []byte) (string, error) {
	if len(p) < 3 {
		return "", shortPayload("MCU version", p, 3)
	}
	return fmt.Sprintf("%d.%d%d", p[0], p[1], p[2]), nil
}

// Timer is the countdown timer of the fireplace.
type Timer struct {
	Hours   uint8
	Minutes uint8
	Seconds uint8
	Enabled bool
}

func (t Timer) String() string {
	state := "off"
	if t.Enabled {
		state = "on"
	}
	return fmt.Sprintf("%02d:%02d:%02d (%s)", t.Hours, t.Minutes, t.Seconds, state)
}

// ParseTimer decodes a GET_TIMER payload. The seconds byte is optional.
func ParseTimer(p []byte) (Timer, error) {
	if len(p) < 3 {
		return Timer{}, shortPayload("timer", p, 3)
	}
	t := Timer{
		Hours:   p[0],
		Minutes: p[1],
		Enabled: p[2] == 1 || p[2] == 3,
	}
	if len(p) > 3 {
		t.Seconds = p[3]
	}
	return t, nil
}

// RGB is an LED color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Bytes returns the SET_LED_COLOR parameter bytes.
func (c RGB) Bytes() []byte {
	return []byte{c.R, c.G, c.B}
}

// ParseLEDColor decodes a GET_LED_COLOR payload.
func ParseLEDColor(p []byte) (RGB, error) {
	if len(p) < 3 {
		return RGB{}, shortPayload("LED color", p, 3)
	}
	return RGB{R: p[0], G: p[1], B: p[2]}, nil
}

// ParseLEDState decodes a GET_LED_STATE payload.
func ParseLEDState(p []byte) (LEDState, error) {
	return LookupLEDState(p)
}

// ParseLEDMode decodes a GET_LED_MODE payload.
func ParseLEDMode(p []byte) (LEDMode, error) {
	return LookupLEDMode(p)
}

// LEDControllerState is the composite GET_LED_CONTROLLER_STATE response.
type LEDControllerState struct {
	On    bool
	Color RGB
	Mode  LEDMode
}

// ParseLEDControllerState decodes a GET_LED_CONTROLLER_STATE payload.
func ParseLEDControllerState(p []byte) (LEDControllerState, error) {
	if len(p) < 5 {
		return LEDControllerState{}, shortPayload("LED controller state", p, 5)
	}
	mode, err := LookupLEDMode(p[4:5])
	if err != nil {
		return LEDControllerState{}, err
	}
	return LEDControllerState{
		On:    p[0] == LEDOn.Short(),
		Color: RGB{R: p[1], G: p[2], B: p[3]},
		Mode:  mode,
	}, nil
}

// ParseAuxControl decodes a GET_AUX_CTRL payload.
func ParseAuxControl(p []byte) (AuxControlState, error) {
	if len(p) < 1 {
		return 0, shortPayload("aux control", p, 1)
	}
	return AuxControlState(p[0]), nil
}
