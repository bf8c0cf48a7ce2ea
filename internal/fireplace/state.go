package fireplace

import "github.com/chaz8081/efirectl/internal/ble/protocol"

// State is the cached mirror of what the controller last reported or
// accepted. Values are copies; changing them has no effect on the device.
type State struct {
	BTPower              bool // power flag of the Bluetooth controller
	IFCPower             bool // power bit reported by the primary block
	Thermostat           bool // mode flag of the primary block
	FlameHeight          uint8
	BlowerSpeed          uint8
	NightLightBrightness uint8
	Pilot                bool
	Aux                  bool
	SplitFlow            bool

	LED      bool
	LEDColor protocol.RGB
	LEDMode  protocol.LEDMode

	Timer       protocol.Timer
	RemoteInUse bool

	BLEVersion string
	MCUVersion string

	compat bool
}

func newState(compat bool) State {
	return State{LEDMode: protocol.LEDModeHold, compat: compat}
}

// IsOn reports whether the fireplace is considered on. In compatibility
// mode that is the Bluetooth controller's power flag; otherwise the burner
// must be powered with a non-zero flame.
func (s State) IsOn() bool {
	if s.compat {
		return s.BTPower
	}
	return s.IFCPower && s.FlameHeight > 0
}

func (s State) primary() protocol.PrimaryBlock {
	return protocol.PrimaryBlock{
		Power:      s.IFCPower,
		Mode:       s.Thermostat,
		NightLight: s.NightLightBrightness,
		Pilot:      s.Pilot,
	}
}

func (s *State) setPrimary(b protocol.PrimaryBlock) {
	s.IFCPower = b.Power
	s.Thermostat = b.Mode
	s.NightLightBrightness = b.NightLight
	s.Pilot = b.Pilot
}

func (s State) secondary() protocol.SecondaryBlock {
	return protocol.SecondaryBlock{
		FlameHeight: s.FlameHeight,
		BlowerSpeed: s.BlowerSpeed,
		Aux:         s.Aux,
		SplitFlow:   s.SplitFlow,
	}
}

func (s *State) setSecondary(b protocol.SecondaryBlock) {
	s.FlameHeight = b.FlameHeight
	s.BlowerSpeed = b.BlowerSpeed
	s.Aux = b.Aux
	s.SplitFlow = b.SplitFlow
}
