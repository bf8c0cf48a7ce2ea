package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/efirectl/internal/ble"
	"github.com/chaz8081/efirectl/internal/config"
	"github.com/chaz8081/efirectl/internal/fireplace"
)

type app struct {
	configPath string
	address    string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "efirectl",
		Short: "Control an eFIRE Bluetooth gas fireplace",
		Long: `efirectl talks to a Napoleon eFIRE fireplace controller over Bluetooth LE.

The controller address comes from device.address in the config file
(~/.config/efirectl/config.yaml) or the --address flag.

The password is read from the EFIRE_PASSWORD environment variable, or
prompted interactively if not set. It is never stored on disk and there is
intentionally no --password flag.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (default: ~/.config/efirectl/config.yaml)")
	root.PersistentFlags().StringVarP(&a.address, "address", "a", "", "controller MAC address (overrides device.address)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log_level)")

	root.AddCommand(
		a.statusCmd(),
		a.powerCmd(),
		a.flameCmd(),
		a.blowerCmd(),
		a.nightLightCmd(),
		a.pilotCmd(),
		a.auxCmd(),
		a.splitFlowCmd(),
		a.ledCmd(),
		a.timerCmd(),
		a.passwordCmd(),
		a.versionCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads the config and installs the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if a.address != "" {
		cfg.Device.Address = a.address
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	a.cfg = cfg

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)})
	a.log = slog.New(handler)
	slog.SetDefault(a.log)
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.Load(a.configPath)
	}
	defaultPath := config.DefaultConfigPath()
	cfg, err := config.LoadOrDefault(defaultPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
	}
	return cfg, nil
}

func (a *app) clientOptions() ble.ClientOptions {
	c := a.cfg.Connection
	return ble.ClientOptions{
		IdleTimeout:     c.IdleTimeout.Std(),
		ConnectAttempts: c.ConnectAttempts,
		CommandAttempts: c.CommandAttempts,
		RetryBackoff:    c.RetryBackoff.Std(),
		MaxBackoff:      c.MaxBackoff.Std(),
		ResponseTimeout: c.ResponseTimeout.Std(),
		Logger:          a.log,
	}
}

// session is an open link plus the fireplace session on top of it.
type session struct {
	client *ble.Client
	fp     *fireplace.Fireplace
}

func (s *session) Close() {
	s.fp.Close()
	if err := s.client.Close(); err != nil {
		slog.Debug("close failed", "error", err)
	}
}

// open connects to the configured controller. When lookup is set it first
// scans briefly for the advertised name and RSSI.
func (a *app) open(ctx context.Context, lookup bool) (*session, error) {
	if a.cfg.Device.Address == "" {
		return nil, fmt.Errorf("no device address: set device.address in the config or pass --address")
	}

	features, err := a.cfg.ParsedFeatures()
	if err != nil {
		return nil, err
	}
	layout, err := a.cfg.ParsedLayout()
	if err != nil {
		return nil, err
	}
	password, err := getPassword()
	if err != nil {
		return nil, err
	}

	adapter := ble.NewBluetoothAdapter()
	dev := ble.Device{Name: a.cfg.Device.Name, MAC: a.cfg.Device.Address}
	if lookup {
		found, err := ble.LookupDevice(adapter, dev.MAC, a.cfg.Connection.ScanTimeout.Std())
		if err != nil {
			a.log.Warn("device lookup failed, connecting directly", "error", err)
		} else {
			if found.Name == "" {
				found.Name = dev.Name
			}
			dev = found
		}
	}

	client, err := ble.NewClient(adapter, dev, a.clientOptions())
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	fp := fireplace.New(client, fireplace.Options{
		Features:          features,
		CompatibilityMode: a.cfg.CompatibilityMode,
		Layout:            layout,
		Password:          password,
		Logger:            a.log,
	})
	return &session{client: client, fp: fp}, nil
}

// run opens a session, runs fn and closes the session again. The context
// is cancelled on SIGINT or SIGTERM.
func (a *app) run(lookup bool, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := a.open(ctx, lookup)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// runFireplace is run for commands that only need the fireplace session.
func (a *app) runFireplace(fn func(ctx context.Context, fp *fireplace.Fireplace) error) error {
	return a.run(false, func(ctx context.Context, s *session) error {
		return fn(ctx, s.fp)
	})
}
