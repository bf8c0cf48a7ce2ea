package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/efirectl/internal/config"
	"github.com/chaz8081/efirectl/internal/fireplace"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(16)
	onStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func onOff(b bool) string {
	if b {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

type statusInfo struct {
	Name     string
	RSSI     int
	HasRSSI  bool
	State    fireplace.State
	Features fireplace.Features
}

// renderStatus formats the cached state for the terminal. Rows for
// features the unit does not have are left out.
func renderStatus(info statusInfo) string {
	var rows []string
	row := func(label, value string) {
		rows = append(rows, labelStyle.Render(label)+value)
	}

	st := info.State
	fs := info.Features

	row("Power", onOff(st.IsOn()))
	row("Flame", fmt.Sprintf("%d/6", st.FlameHeight))
	if fs.Blower {
		row("Blower", fmt.Sprintf("%d/6", st.BlowerSpeed))
	}
	row("Pilot", onOff(st.Pilot))
	if fs.NightLight {
		row("Night light", fmt.Sprintf("%d/6", st.NightLightBrightness))
	}
	if fs.Aux {
		row("Aux", onOff(st.Aux))
	}
	if fs.SplitFlow {
		row("Split flow", onOff(st.SplitFlow))
	}
	if fs.LEDLights {
		row("LED", fmt.Sprintf("%s %s %s", onOff(st.LED), st.LEDColor, st.LEDMode))
	}
	if fs.Timer {
		row("Timer", st.Timer.String())
	}
	row("Remote in use", onOff(st.RemoteInUse))
	if info.HasRSSI {
		row("RSSI", fmt.Sprintf("%d dBm", info.RSSI))
	}

	title := titleStyle.Render(info.Name)
	return boxStyle.Render(title+"\n"+strings.Join(rows, "\n")) + "\n"
}

func renderConfig(cfg *config.Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(out), nil
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the fireplace state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(true, func(ctx context.Context, s *session) error {
				if err := s.fp.UpdateState(ctx); err != nil {
					return err
				}
				if err := s.fp.UpdateRemoteUsage(ctx); err != nil {
					a.log.Warn("remote usage query failed", "error", err)
				}
				rssi, hasRSSI := s.client.RSSI()
				fmt.Fprint(cmd.OutOrStdout(), renderStatus(statusInfo{
					Name:     s.client.Name(),
					RSSI:     rssi,
					HasRSSI:  hasRSSI,
					State:    s.fp.State(),
					Features: s.fp.Features(),
				}))
				return nil
			})
		},
	}
}
