package fireplace

import (
	"context"
	"fmt"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

// UpdatePrimaryBlock refreshes power, mode flag, night light and pilot.
func (f *Fireplace) UpdatePrimaryBlock(ctx context.Context) error {
	return f.guarded(ctx, "update primary block", f.updatePrimaryBlock)
}

func (f *Fireplace) updatePrimaryBlock(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetIFCCmd1State)
	if err != nil {
		return err
	}
	if resp[0] == protocol.ReturnFailure {
		return &CommandFailedError{Op: protocol.GetIFCCmd1State, Result: resp}
	}
	blk, err := protocol.ParsePrimaryBlock(resp, f.layout)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.setPrimary(blk) })
	return nil
}

// UpdateSecondaryBlock refreshes flame height, blower speed, aux and split
// flow.
func (f *Fireplace) UpdateSecondaryBlock(ctx context.Context) error {
	return f.guarded(ctx, "update secondary block", f.updateSecondaryBlock)
}

func (f *Fireplace) updateSecondaryBlock(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetIFCCmd2State)
	if err != nil {
		return err
	}
	blk, err := protocol.ParseSecondaryBlock(resp)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.setSecondary(blk) })
	return nil
}

// UpdateTimer refreshes the timer.
func (f *Fireplace) UpdateTimer(ctx context.Context) error {
	return f.guarded(ctx, "update timer", f.updateTimer)
}

func (f *Fireplace) updateTimer(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetTimer)
	if err != nil {
		return err
	}
	t, err := protocol.ParseTimer(resp)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.Timer = t })
	return nil
}

// UpdatePowerState refreshes the Bluetooth controller's power flag.
func (f *Fireplace) UpdatePowerState(ctx context.Context) error {
	return f.guarded(ctx, "update power state", f.updatePowerState)
}

func (f *Fireplace) updatePowerState(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetPowerState)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.BTPower = resp[0] == protocol.PowerOn })
	return nil
}

// UpdateLEDState refreshes the LED power state.
func (f *Fireplace) UpdateLEDState(ctx context.Context) error {
	return f.guarded(ctx, "update LED state", f.updateLEDState)
}

func (f *Fireplace) updateLEDState(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetLEDState)
	if err != nil {
		return err
	}
	state, err := protocol.ParseLEDState(resp)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.LED = state == protocol.LEDOn })
	return nil
}

// UpdateLEDColor refreshes the LED color.
func (f *Fireplace) UpdateLEDColor(ctx context.Context) error {
	return f.guarded(ctx, "update LED color", f.updateLEDColor)
}

func (f *Fireplace) updateLEDColor(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetLEDColor)
	if err != nil {
		return err
	}
	color, err := protocol.ParseLEDColor(resp)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.LEDColor = color })
	return nil
}

// UpdateLEDMode refreshes the LED effect.
func (f *Fireplace) UpdateLEDMode(ctx context.Context) error {
	return f.guarded(ctx, "update LED mode", f.updateLEDMode)
}

func (f *Fireplace) updateLEDMode(ctx context.Context) error {
	resp, err := f.query(ctx, protocol.GetLEDMode)
	if err != nil {
		return err
	}
	mode, err := protocol.ParseLEDMode(resp)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.LEDMode = mode })
	return nil
}

// UpdateLEDControllerState refreshes LED power, color and effect in one
// query.
func (f *Fireplace) UpdateLEDControllerState(ctx context.Context) error {
	return f.guarded(ctx, "update LED controller state", func(ctx context.Context) error {
		resp, err := f.query(ctx, protocol.GetLEDControllerState)
		if err != nil {
			return err
		}
		led, err := protocol.ParseLEDControllerState(resp)
		if err != nil {
			return err
		}
		f.update(func(s *State) {
			s.LED = led.On
			s.LEDColor = led.Color
			s.LEDMode = led.Mode
		})
		return nil
	})
}

// UpdateRemoteUsage refreshes whether the remote is overriding Bluetooth
// control.
func (f *Fireplace) UpdateRemoteUsage(ctx context.Context) error {
	return f.guarded(ctx, "update remote usage", func(ctx context.Context) error {
		resp, err := f.query(ctx, protocol.GetRemoteUsage)
		if err != nil {
			return err
		}
		usage, err := protocol.ParseAuxControl(resp)
		if err != nil {
			return err
		}
		f.update(func(s *State) { s.RemoteInUse = usage == protocol.AuxControlUsed })
		return nil
	})
}

// QueryBLEVersion returns the Bluetooth module firmware version.
func (f *Fireplace) QueryBLEVersion(ctx context.Context) (string, error) {
	var v string
	err := f.guarded(ctx, "query BLE version", func(ctx context.Context) error {
		var err error
		v, err = f.queryBLEVersion(ctx)
		return err
	})
	return v, err
}

func (f *Fireplace) queryBLEVersion(ctx context.Context) (string, error) {
	resp, err := f.query(ctx, protocol.GetBLEVersion)
	if err != nil {
		return "", err
	}
	return protocol.ParseBLEVersion(resp)
}

// QueryMCUVersion returns the controller firmware version.
func (f *Fireplace) QueryMCUVersion(ctx context.Context) (string, error) {
	var v string
	err := f.guarded(ctx, "query MCU version", func(ctx context.Context) error {
		var err error
		v, err = f.queryMCUVersion(ctx)
		return err
	})
	return v, err
}

func (f *Fireplace) queryMCUVersion(ctx context.Context) (string, error) {
	resp, err := f.query(ctx, protocol.GetMCUVersion)
	if err != nil {
		return "", err
	}
	return protocol.ParseMCUVersion(resp)
}

type refreshStep struct {
	name string
	run  func(context.Context) error
}

func runSteps(ctx context.Context, steps []refreshStep) error {
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("fireplace: update %s: %w", step.name, err)
		}
	}
	return nil
}

// blockSteps reads back everything the block setters re-send, plus the
// controller power flag the flame setter consults in compatibility mode.
func (f *Fireplace) blockSteps() []refreshStep {
	steps := []refreshStep{
		{"primary block", f.updatePrimaryBlock},
		{"secondary block", f.updateSecondaryBlock},
	}
	if f.compat {
		steps = append(steps, refreshStep{"power state", f.updatePowerState})
	}
	return steps
}

// UpdateBlocks refreshes both function blocks. A session that has not read
// them yet should call it before SetFlameHeight, SetBlowerSpeed, SetAux,
// SetSplitFlow, SetNightLightBrightness or SetContinuousPilot, which
// re-send the whole block from the cached state.
func (f *Fireplace) UpdateBlocks(ctx context.Context) error {
	return f.guarded(ctx, "update blocks", func(ctx context.Context) error {
		return runSteps(ctx, f.blockSteps())
	})
}

// UpdateState refreshes everything the enabled features cover.
func (f *Fireplace) UpdateState(ctx context.Context) error {
	return f.guarded(ctx, "update state", func(ctx context.Context) error {
		steps := f.blockSteps()
		fs := f.Features()
		if fs.Timer {
			steps = append(steps, refreshStep{"timer", f.updateTimer})
		}
		if fs.LEDLights {
			steps = append(steps,
				refreshStep{"LED state", f.updateLEDState},
				refreshStep{"LED color", f.updateLEDColor},
				refreshStep{"LED mode", f.updateLEDMode},
			)
		}
		return runSteps(ctx, steps)
	})
}

// UpdateFirmwareVersion refreshes the MCU and BLE version strings.
func (f *Fireplace) UpdateFirmwareVersion(ctx context.Context) error {
	return f.guarded(ctx, "update firmware version", func(ctx context.Context) error {
		mcu, err := f.queryMCUVersion(ctx)
		if err != nil {
			return err
		}
		bleVersion, err := f.queryBLEVersion(ctx)
		if err != nil {
			return err
		}
		f.update(func(s *State) {
			s.MCUVersion = mcu
			s.BLEVersion = bleVersion
		})
		return nil
	})
}
