package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
	"github.com/chaz8081/efirectl/internal/config"
	"github.com/chaz8081/efirectl/internal/fireplace"
)

// parseOnOff accepts on/off, true/false, 1/0 and yes/no.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// parseColor accepts "#rrggbb", "rrggbb" or "r,g,b".
func parseColor(s string) (protocol.RGB, error) {
	if parts := strings.Split(s, ","); len(parts) == 3 {
		var c [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return protocol.RGB{}, fmt.Errorf("invalid color component %q: %w", p, err)
			}
			c[i] = uint8(v)
		}
		return protocol.RGB{R: c[0], G: c[1], B: c[2]}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return protocol.RGB{}, fmt.Errorf("invalid color %q: want #rrggbb or r,g,b", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return protocol.RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return protocol.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// reportResult turns a controller rejection into an error.
func reportResult(cmd *cobra.Command, what string, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: controller rejected the command", what)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", what)
	return nil
}

// refreshed reads both function blocks back from the controller before
// calling set. Block setters re-send the whole block from the session
// cache, which starts out zeroed on every invocation.
func refreshed[T any](set func(fp *fireplace.Fireplace, ctx context.Context, v T) (bool, error)) func(fp *fireplace.Fireplace, ctx context.Context, v T) (bool, error) {
	return func(fp *fireplace.Fireplace, ctx context.Context, v T) (bool, error) {
		if err := fp.UpdateBlocks(ctx); err != nil {
			return false, fmt.Errorf("reading current settings: %w", err)
		}
		return set(fp, ctx, v)
	}
}

// boolCommand builds a command taking a single on/off argument. set has
// the shape of a Fireplace method expression.
func (a *app) boolCommand(use, short string, set func(fp *fireplace.Fireplace, ctx context.Context, on bool) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:       use + " on|off",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				ok, err := refreshed(set)(fp, ctx, on)
				return reportResult(cmd, use, ok, err)
			})
		},
	}
}

// levelCommand builds a command taking a single 0-6 level argument.
func (a *app) levelCommand(use, short string, set func(fp *fireplace.Fireplace, ctx context.Context, level int) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <0-6>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid level %q: %w", args[0], err)
			}
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				ok, err := refreshed(set)(fp, ctx, level)
				return reportResult(cmd, use, ok, err)
			})
		},
	}
}

func (a *app) powerCmd() *cobra.Command {
	return a.boolCommand("power", "Turn the fireplace on or off", (*fireplace.Fireplace).SetPower)
}

func (a *app) flameCmd() *cobra.Command {
	return a.levelCommand("flame", "Set the flame height", (*fireplace.Fireplace).SetFlameHeight)
}

func (a *app) blowerCmd() *cobra.Command {
	return a.levelCommand("blower", "Set the blower speed", (*fireplace.Fireplace).SetBlowerSpeed)
}

func (a *app) nightLightCmd() *cobra.Command {
	return a.levelCommand("nightlight", "Set the night light brightness", (*fireplace.Fireplace).SetNightLightBrightness)
}

func (a *app) pilotCmd() *cobra.Command {
	return a.boolCommand("pilot", "Enable or disable the continuous pilot", (*fireplace.Fireplace).SetContinuousPilot)
}

func (a *app) auxCmd() *cobra.Command {
	return a.boolCommand("aux", "Switch the AUX relay", (*fireplace.Fireplace).SetAux)
}

func (a *app) splitFlowCmd() *cobra.Command {
	return a.boolCommand("splitflow", "Open or close the split flow valve", (*fireplace.Fireplace).SetSplitFlow)
}

func (a *app) ledCmd() *cobra.Command {
	led := a.boolCommand("led", "Switch the LED lights", (*fireplace.Fireplace).SetLEDState)
	led.Use = "led on|off"

	color := &cobra.Command{
		Use:   "color <#rrggbb|r,g,b>",
		Short: "Set the LED color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseColor(args[0])
			if err != nil {
				return err
			}
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				ok, err := fp.SetLEDColor(ctx, c)
				return reportResult(cmd, "led color", ok, err)
			})
		},
	}

	mode := &cobra.Command{
		Use:       "mode cycle|hold|ember-bed on|off",
		Short:     "Switch an LED effect",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"cycle", "hold", "ember-bed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := protocol.ParseLEDModeName(args[0])
			if err != nil {
				return err
			}
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				ok, err := fp.SetLEDMode(ctx, m, on)
				return reportResult(cmd, "led mode", ok, err)
			})
		},
	}

	// "led on|off" keeps its own RunE; color and mode hang off it.
	led.Args = cobra.MaximumNArgs(1)
	run := led.RunE
	led.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return run(cmd, args)
	}
	led.AddCommand(color, mode)
	return led
}

func (a *app) timerCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "timer <hours> <minutes>",
		Short: "Set the countdown timer",
		Long:  "Set the countdown timer. Use --off to store the duration without starting it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid hours %q: %w", args[0], err)
			}
			minutes, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid minutes %q: %w", args[1], err)
			}
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				ok, err := fp.SetTimer(ctx, hours, minutes, !off)
				return reportResult(cmd, "timer", ok, err)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "set the timer disabled")
	return cmd
}

func (a *app) passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the controller password",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Change the controller password",
		Long:  "Change the controller password. The current password is read as usual; the new one from EFIRE_NEW_PASSWORD or a prompt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				newPassword, err := getNewPassword()
				if err != nil {
					return err
				}
				ok, err := fp.SetPassword(ctx, newPassword)
				return reportResult(cmd, "password set", ok, err)
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset the controller password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				ok, err := fp.ResetPassword(ctx)
				return reportResult(cmd, "password reset", ok, err)
			})
		},
	}

	cmd.AddCommand(set, reset)
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show controller firmware versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runFireplace(func(ctx context.Context, fp *fireplace.Fireplace) error {
				if err := fp.UpdateFirmwareVersion(ctx); err != nil {
					return err
				}
				st := fp.State()
				fmt.Fprintf(cmd.OutOrStdout(), "MCU: %s\nBLE: %s\n", st.MCUVersion, st.BLEVersion)
				return nil
			})
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.WriteDefault()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "config file already exists")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := renderConfig(a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	})
	return cmd
}
