package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
	"github.com/chaz8081/efirectl/internal/fireplace"
)

// Config holds all application configuration. The device password is
// deliberately absent: it comes from the environment or a prompt.
type Config struct {
	Device            DeviceConfig     `yaml:"device"`
	Features          []string         `yaml:"features"`
	CompatibilityMode bool             `yaml:"compatibility_mode"`
	Layout            string           `yaml:"layout"` // "standard" or "legacy"
	Connection        ConnectionConfig `yaml:"connection"`
	LogLevel          string           `yaml:"log_level"`
}

// DeviceConfig identifies the fireplace controller.
type DeviceConfig struct {
	Address string `yaml:"address"` // MAC address, or a CoreBluetooth UUID on macOS
	Name    string `yaml:"name,omitempty"`
}

// ConnectionConfig tunes the BLE link.
type ConnectionConfig struct {
	IdleTimeout     Duration `yaml:"idle_timeout"` // negative disables
	ConnectAttempts int      `yaml:"connect_attempts"`
	CommandAttempts int      `yaml:"command_attempts"`
	RetryBackoff    Duration `yaml:"retry_backoff"`
	MaxBackoff      Duration `yaml:"max_backoff"`
	ResponseTimeout Duration `yaml:"response_timeout"`
	ScanTimeout     Duration `yaml:"scan_timeout"`
}

// Duration is a time.Duration written as a string such as "90s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"30s\"", value.Line)
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "efirectl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Features:          []string{},
		CompatibilityMode: true,
		Layout:            protocol.LayoutStandard.String(),
		Connection: ConnectionConfig{
			IdleTimeout:     Duration(120 * time.Second),
			ConnectAttempts: 3,
			CommandAttempts: 3,
			RetryBackoff:    Duration(250 * time.Millisecond),
			MaxBackoff:      Duration(5 * time.Second),
			ResponseTimeout: Duration(10 * time.Second),
			ScanTimeout:     Duration(10 * time.Second),
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the path written, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# efirectl configuration\n")
	buf.WriteString("# Set device.address to the MAC address of your eFIRE controller.\n")
	buf.WriteString("# Features: aux, blower, led_lights, night_light, split_flow, timer\n\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values. An empty device address
// is allowed here since it can be supplied on the command line.
func (c *Config) Validate() error {
	if _, err := fireplace.ParseFeatures(c.Features); err != nil {
		return fmt.Errorf("features: %w", err)
	}

	if _, err := protocol.ParseLayout(c.Layout); err != nil {
		return fmt.Errorf("layout must be \"standard\" or \"legacy\", got %q", c.Layout)
	}

	conn := c.Connection
	if conn.ConnectAttempts < 0 {
		return fmt.Errorf("connection.connect_attempts must be >= 0")
	}
	if conn.CommandAttempts < 0 {
		return fmt.Errorf("connection.command_attempts must be >= 0")
	}
	if conn.ResponseTimeout < 0 || conn.MaxBackoff < 0 || conn.ScanTimeout < 0 {
		return fmt.Errorf("connection timeouts must not be negative")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParsedFeatures returns the configured feature set.
func (c *Config) ParsedFeatures() (fireplace.Features, error) {
	return fireplace.ParseFeatures(c.Features)
}

// ParsedLayout returns the configured function block layout.
func (c *Config) ParsedLayout() (protocol.Layout, error) {
	return protocol.ParseLayout(c.Layout)
}

// ParseLogLevel maps a log_level value to a slog level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
