package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return cfgPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.CompatibilityMode {
		t.Error("CompatibilityMode should default to true")
	}
	if cfg.Layout != "standard" {
		t.Errorf("Layout = %q, want %q", cfg.Layout, "standard")
	}
	if cfg.Connection.IdleTimeout.Std() != 2*time.Minute {
		t.Errorf("IdleTimeout = %v, want 2m", cfg.Connection.IdleTimeout.Std())
	}
	if cfg.Connection.CommandAttempts != 3 {
		t.Errorf("CommandAttempts = %d, want 3", cfg.Connection.CommandAttempts)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	cfgPath := writeConfig(t, `
device:
  address: "AA:BB:CC:DD:EE:FF"
  name: Living Room
features: [blower, led_lights, timer]
compatibility_mode: false
layout: legacy
connection:
  idle_timeout: 30s
  command_attempts: 5
  response_timeout: 2500ms
log_level: debug
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("Device.Address = %q", cfg.Device.Address)
	}
	if cfg.Device.Name != "Living Room" {
		t.Errorf("Device.Name = %q", cfg.Device.Name)
	}
	if cfg.CompatibilityMode {
		t.Error("CompatibilityMode = true, want false")
	}
	if cfg.Connection.IdleTimeout.Std() != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", cfg.Connection.IdleTimeout.Std())
	}
	if cfg.Connection.ResponseTimeout.Std() != 2500*time.Millisecond {
		t.Errorf("ResponseTimeout = %v, want 2.5s", cfg.Connection.ResponseTimeout.Std())
	}
	if cfg.Connection.CommandAttempts != 5 {
		t.Errorf("CommandAttempts = %d, want 5", cfg.Connection.CommandAttempts)
	}
	// Unset keys keep their defaults.
	if cfg.Connection.ConnectAttempts != 3 {
		t.Errorf("ConnectAttempts = %d, want default 3", cfg.Connection.ConnectAttempts)
	}

	fs, err := cfg.ParsedFeatures()
	if err != nil {
		t.Fatalf("ParsedFeatures() error = %v", err)
	}
	if !fs.Blower || !fs.LEDLights || !fs.Timer || fs.Aux {
		t.Errorf("features = %+v", fs)
	}
	layout, err := cfg.ParsedLayout()
	if err != nil || layout != protocol.LayoutLegacy {
		t.Errorf("ParsedLayout() = %v, %v", layout, err)
	}
}

func TestLoadBadDuration(t *testing.T) {
	cfgPath := writeConfig(t, "connection:\n  idle_timeout: soon\n")
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should fail for an invalid duration")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() should return error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if !cfg.CompatibilityMode {
		t.Error("LoadOrDefault() of a missing file should return defaults")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"known features", func(c *Config) { c.Features = []string{"aux", "split_flow"} }, false},
		{"unknown feature", func(c *Config) { c.Features = []string{"turbo"} }, true},
		{"legacy layout", func(c *Config) { c.Layout = "legacy" }, false},
		{"bad layout", func(c *Config) { c.Layout = "sideways" }, true},
		{"negative attempts", func(c *Config) { c.Connection.CommandAttempts = -1 }, true},
		{"negative response timeout", func(c *Config) { c.Connection.ResponseTimeout = Duration(-time.Second) }, true},
		{"idle timer disabled", func(c *Config) { c.Connection.IdleTimeout = Duration(-1) }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "efirectl", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# efirectl") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if !cfg.CompatibilityMode {
		t.Error("written config should keep compatibility_mode: true")
	}
	if cfg.Connection.ResponseTimeout.Std() != 10*time.Second {
		t.Errorf("written ResponseTimeout = %v, want 10s", cfg.Connection.ResponseTimeout.Std())
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "efirectl")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("device:\n  address: AA:BB:CC:DD:EE:FF\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	if err := os.WriteFile(filepath.Join(tmpHome, "efire.yaml"), []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load("~/efire.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
