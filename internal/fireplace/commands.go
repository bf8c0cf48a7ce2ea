package fireplace

import (
	"context"
	"fmt"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SetPower turns the fireplace on or off.
func (f *Fireplace) SetPower(ctx context.Context, on bool) (bool, error) {
	return f.guardedBool(ctx, "set power", func(ctx context.Context) (bool, error) {
		return f.power(ctx, on, f.compat)
	})
}

// PowerOn turns the fireplace on.
func (f *Fireplace) PowerOn(ctx context.Context) (bool, error) { return f.SetPower(ctx, true) }

// PowerOff turns the fireplace off.
func (f *Fireplace) PowerOff(ctx context.Context) (bool, error) { return f.SetPower(ctx, false) }

func (f *Fireplace) power(ctx context.Context, on, compat bool) (bool, error) {
	if compat {
		return f.setControllerPower(ctx, on)
	}

	// The controller will not pass the power bit through to the IFC, but
	// a zero or non-zero flame height switches the burner all the same.
	st := f.State()
	switch {
	case on && st.FlameHeight == 0:
		return f.setControllerPower(ctx, true)
	case !on && st.FlameHeight != 0:
		if st.BlowerSpeed == 0 {
			return f.setControllerPower(ctx, false)
		}
		blk := st.secondary()
		blk.FlameHeight = 0
		return f.sendSecondary(ctx, blk)
	}
	return f.sendSecondary(ctx, st.secondary())
}

// setControllerPower sends SET_POWER. The controller's firmware sets the
// flame to maximum on power on and zeroes flame and blower on power off.
func (f *Fireplace) setControllerPower(ctx context.Context, on bool) (bool, error) {
	param := protocol.PowerOff
	if on {
		param = protocol.PowerOn
	}
	ok, err := f.simple(ctx, protocol.SetPower, param)
	if err != nil || !ok {
		return ok, err
	}
	f.update(func(s *State) {
		s.BTPower = on
		if on {
			s.FlameHeight = protocol.MaxFlameHeight
		} else {
			s.FlameHeight = 0
			s.BlowerSpeed = 0
		}
	})
	f.log.Debug("[FIREPLACE] power set", "device", f.dev.Name(), "on", on)
	return true, nil
}

func (f *Fireplace) sendPrimary(ctx context.Context, blk protocol.PrimaryBlock) (bool, error) {
	ok, err := f.simple(ctx, protocol.SetIFCCmd1, blk.Encode(f.layout)...)
	f.log.Debug("[FIREPLACE] primary block sent", "device", f.dev.Name(), "ok", ok)
	if err != nil || !ok {
		return ok, err
	}
	f.update(func(s *State) { s.setPrimary(blk) })
	return true, nil
}

func (f *Fireplace) sendSecondary(ctx context.Context, blk protocol.SecondaryBlock) (bool, error) {
	ok, err := f.simple(ctx, protocol.SetIFCCmd2, blk.Encode()...)
	f.log.Debug("[FIREPLACE] secondary block sent", "device", f.dev.Name(), "ok", ok)
	if err != nil || !ok {
		return ok, err
	}
	f.update(func(s *State) { s.setSecondary(blk) })
	return true, nil
}

// SetFlameHeight sets the flame height, 0 to 6. Zero flame with the blower
// off powers the fireplace down.
func (f *Fireplace) SetFlameHeight(ctx context.Context, height int) (bool, error) {
	if err := checkRange("flame height", height, 0, protocol.MaxFlameHeight); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set flame height", func(ctx context.Context) (bool, error) {
		// The controller does not record itself as on when the flame goes
		// from zero to non-zero, although the IFC lights the burner.
		if f.compat && f.State().FlameHeight == 0 && height > 0 {
			f.log.Debug("[FIREPLACE] flame raised from zero, forcing controller on", "device", f.dev.Name())
			if _, err := f.power(ctx, true, f.compat); err != nil {
				return false, err
			}
		}
		st := f.State()
		if height == 0 && st.BlowerSpeed == 0 {
			return f.power(ctx, false, true)
		}
		blk := st.secondary()
		blk.FlameHeight = uint8(height)
		return f.sendSecondary(ctx, blk)
	})
}

// SetBlowerSpeed sets the blower speed, 0 to 6. Zero speed with the flame
// off powers the fireplace down.
func (f *Fireplace) SetBlowerSpeed(ctx context.Context, speed int) (bool, error) {
	if err := f.requireFeature(FeatureBlower); err != nil {
		return false, err
	}
	if err := checkRange("blower speed", speed, 0, protocol.MaxBlowerSpeed); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set blower speed", func(ctx context.Context) (bool, error) {
		st := f.State()
		if speed == 0 && st.FlameHeight == 0 {
			return f.power(ctx, false, true)
		}
		blk := st.secondary()
		blk.BlowerSpeed = uint8(speed)
		return f.sendSecondary(ctx, blk)
	})
}

// SetAux switches the AUX relay.
func (f *Fireplace) SetAux(ctx context.Context, enabled bool) (bool, error) {
	if err := f.requireFeature(FeatureAux); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set aux", func(ctx context.Context) (bool, error) {
		blk := f.State().secondary()
		blk.Aux = enabled
		return f.sendSecondary(ctx, blk)
	})
}

// SetSplitFlow opens or closes the split flow valve.
func (f *Fireplace) SetSplitFlow(ctx context.Context, enabled bool) (bool, error) {
	if err := f.requireFeature(FeatureSplitFlow); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set split flow", func(ctx context.Context) (bool, error) {
		blk := f.State().secondary()
		blk.SplitFlow = enabled
		return f.sendSecondary(ctx, blk)
	})
}

// SetNightLightBrightness sets the night light level, 0 to 6.
func (f *Fireplace) SetNightLightBrightness(ctx context.Context, level int) (bool, error) {
	if err := f.requireFeature(FeatureNightLight); err != nil {
		return false, err
	}
	if err := checkRange("night light brightness", level, 0, protocol.MaxNightLightBrightness); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set night light", func(ctx context.Context) (bool, error) {
		blk := f.State().primary()
		blk.NightLight = uint8(level)
		return f.sendPrimary(ctx, blk)
	})
}

// SetContinuousPilot enables or disables the continuous pilot.
func (f *Fireplace) SetContinuousPilot(ctx context.Context, enabled bool) (bool, error) {
	return f.guardedBool(ctx, "set continuous pilot", func(ctx context.Context) (bool, error) {
		blk := f.State().primary()
		blk.Pilot = enabled
		return f.sendPrimary(ctx, blk)
	})
}

// SetLEDMode switches an LED effect on or off.
func (f *Fireplace) SetLEDMode(ctx context.Context, mode protocol.LEDMode, on bool) (bool, error) {
	if err := f.requireFeature(FeatureLEDLights); err != nil {
		return false, err
	}
	if !mode.Valid() {
		return false, fmt.Errorf("fireplace: %w: %v", protocol.ErrUnknownMode, mode)
	}
	param := mode.OffValue()
	if on {
		param = mode.SetValue()
	}
	return f.guardedBool(ctx, "set LED mode", func(ctx context.Context) (bool, error) {
		ok, err := f.simple(ctx, protocol.SetLEDMode, param)
		if err != nil || !ok {
			return ok, err
		}
		if on {
			f.update(func(s *State) { s.LEDMode = mode })
		}
		return true, nil
	})
}

// SetTimer programs the countdown timer. It sends the timer and then the
// time sync the vendor app sends, and succeeds only if both do.
func (f *Fireplace) SetTimer(ctx context.Context, hours, minutes int, enabled bool) (bool, error) {
	if err := f.requireFeature(FeatureTimer); err != nil {
		return false, err
	}
	if err := checkRange("timer hours", hours, 0, 23); err != nil {
		return false, err
	}
	if err := checkRange("timer minutes", minutes, 0, 59); err != nil {
		return false, err
	}
	h, m := uint8(hours), uint8(minutes)
	return f.guardedBool(ctx, "set timer", func(ctx context.Context) (bool, error) {
		okTimer, err := f.simple(ctx, protocol.SetTimer, h, m, boolByte(enabled))
		if err != nil {
			return false, err
		}
		okSync, err := f.simple(ctx, protocol.SyncTime, h, m, 0)
		if err != nil {
			return false, err
		}
		if !okTimer || !okSync {
			return false, nil
		}
		f.update(func(s *State) {
			s.Timer = protocol.Timer{Hours: h, Minutes: m, Enabled: enabled}
		})
		return true, nil
	})
}

// SetLEDColor sets the LED color.
func (f *Fireplace) SetLEDColor(ctx context.Context, color protocol.RGB) (bool, error) {
	if err := f.requireFeature(FeatureLEDLights); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set LED color", func(ctx context.Context) (bool, error) {
		ok, err := f.simple(ctx, protocol.SetLEDColor, color.Bytes()...)
		if err != nil || !ok {
			return ok, err
		}
		f.update(func(s *State) { s.LEDColor = color })
		return true, nil
	})
}

// SetLEDState switches the LED controller on or off.
func (f *Fireplace) SetLEDState(ctx context.Context, on bool) (bool, error) {
	if err := f.requireFeature(FeatureLEDLights); err != nil {
		return false, err
	}
	state := protocol.LEDOff
	if on {
		state = protocol.LEDOn
	}
	return f.guardedBool(ctx, "set LED state", func(ctx context.Context) (bool, error) {
		ok, err := f.simple(ctx, protocol.SetLEDPower, state.Long()...)
		if err != nil || !ok {
			return ok, err
		}
		f.update(func(s *State) { s.LED = on })
		return true, nil
	})
}

// SetPassword changes the controller password and, on success, the
// password used for future logins.
func (f *Fireplace) SetPassword(ctx context.Context, password string) (bool, error) {
	if err := validatePassword(password); err != nil {
		return false, err
	}
	return f.guardedBool(ctx, "set password", func(ctx context.Context) (bool, error) {
		ok, err := f.simple(ctx, protocol.PasswordMgmt, protocol.PasswordActionSet)
		if err != nil || !ok {
			return false, err
		}
		resp, err := f.dev.Execute(ctx, protocol.SendPassword, []byte(password)...)
		if err != nil {
			return false, err
		}
		if len(resp) == 0 {
			return false, &CommandFailedError{Op: protocol.SendPassword}
		}
		if resp[0] != protocol.PasswordSetSuccess {
			f.log.Debug("[FIREPLACE] password change rejected", "device", f.dev.Name(), "result", fmt.Sprintf("%x", resp))
			return false, nil
		}
		f.mu.Lock()
		f.password = password
		f.mu.Unlock()
		f.log.Info("[FIREPLACE] password changed", "device", f.dev.Name())
		return true, nil
	})
}

// ResetPassword asks the controller to reset its password. It does not
// require a login.
func (f *Fireplace) ResetPassword(ctx context.Context) (bool, error) {
	f.opMu.Lock()
	defer f.opMu.Unlock()
	return f.simple(ctx, protocol.PasswordMgmt, protocol.PasswordActionReset)
}

// QueryAuxControl reports whether the remote is overriding Bluetooth
// control.
func (f *Fireplace) QueryAuxControl(ctx context.Context) (protocol.AuxControlState, error) {
	var state protocol.AuxControlState
	err := f.guarded(ctx, "query aux control", func(ctx context.Context) error {
		resp, err := f.query(ctx, protocol.GetAuxCtrl)
		if err != nil {
			return err
		}
		state, err = protocol.ParseAuxControl(resp)
		return err
	})
	return state, err
}
