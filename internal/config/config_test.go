package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig creates a temporary stage.yaml with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
gpio:
  driver: "mock"
x_axis:
  opto_pin: 66
  pul_pin: 69
  dir_pin: 45
  ena_pin: 47
y_axis:
  opto_pin: 48
  pul_pin: 49
  dir_pin: 115
  ena_pin: 112
stage:
  max_x_steps: 5000
  row_steps: 250
  presets:
    1: 4
    3: 30
timing:
  pulse_us: 1500
  file_settle_ms: 100
files:
  command: "cmd.txt"
commands:
  capture: "./capture.sh --fast"
  transfer: ""
defaults:
  debug_level: 3
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GPIO.Driver != "mock" {
		t.Errorf("gpio.driver = %q, want mock", cfg.GPIO.Driver)
	}
	if cfg.Stage.MaxXSteps != 5000 {
		t.Errorf("stage.max_x_steps = %d, want 5000", cfg.Stage.MaxXSteps)
	}
	if cfg.Stage.RowSteps != 250 {
		t.Errorf("stage.row_steps = %d, want 250", cfg.Stage.RowSteps)
	}
	if len(cfg.Stage.Presets) != 2 || cfg.Stage.Presets[1] != 4 || cfg.Stage.Presets[3] != 30 {
		t.Errorf("stage.presets = %v, want map[1:4 3:30] (replacing defaults)", cfg.Stage.Presets)
	}
	if cfg.Files.Command != "cmd.txt" {
		t.Errorf("files.command = %q, want cmd.txt", cfg.Files.Command)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Files.Size != "size_file.txt" {
		t.Errorf("files.size = %q, want default size_file.txt", cfg.Files.Size)
	}
	if cfg.Commands.Transfer != "" {
		t.Errorf("commands.transfer = %q, want empty (disabled)", cfg.Commands.Transfer)
	}
	if cfg.PulseDelay() != 1500*time.Microsecond {
		t.Errorf("PulseDelay() = %v, want 1.5ms", cfg.PulseDelay())
	}
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug_level = %d, want 3", cfg.Defaults.DebugLevel)
	}
}

func TestDefault_BeagleBoneStage(t *testing.T) {
	cfg := Default()
	if cfg.Stage.MaxXSteps != 7000 || cfg.Stage.RowSteps != 300 || cfg.Stage.LogEvery != 100 {
		t.Errorf("stage = %+v, want 7000/300/100", cfg.Stage)
	}
	if cfg.Stage.Presets[1] != 10 || cfg.Stage.Presets[2] != 20 {
		t.Errorf("presets = %v, want 1:10 2:20", cfg.Stage.Presets)
	}
	if cfg.PulseDelay() != 2*time.Millisecond {
		t.Errorf("PulseDelay() = %v, want 2ms", cfg.PulseDelay())
	}
	if cfg.FileSettle() != 150*time.Millisecond {
		t.Errorf("FileSettle() = %v, want 150ms", cfg.FileSettle())
	}
	if cfg.XAxis.PulPin != 69 || cfg.YAxis.PulPin != 49 {
		t.Errorf("pul pins = %d/%d, want 69/49", cfg.XAxis.PulPin, cfg.YAxis.PulPin)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Stage.MaxXSteps != Default().Stage.MaxXSteps {
		t.Error("LoadOptional on a missing file should return defaults")
	}
}

func TestLoadOptional_InvalidFileStillFails(t *testing.T) {
	if _, err := LoadOptional(writeConfig(t, "{{{{invalid yaml!!!!")); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stage.Presets[2] != 20 {
		t.Errorf("presets = %v, want defaults", cfg.Stage.Presets)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown_driver", "gpio:\n  driver: sysfs\n"},
		{"zero_max_x", "stage:\n  max_x_steps: 0\n"},
		{"negative_row_steps", "stage:\n  row_steps: -5\n"},
		{"preset_zero_rows", "stage:\n  presets:\n    1: 0\n"},
		{"negative_preset_code", "stage:\n  presets:\n    -1: 10\n"},
		{"negative_pin", "x_axis:\n  pul_pin: -1\n"},
		{"duplicate_pin", "y_axis:\n  pul_pin: 69\n"},
		{"negative_timing", "timing:\n  state_us: -1\n"},
		{"empty_command_file", "files:\n  command: \"\"\n"},
		{"empty_capture", "commands:\n  capture: \"\"\n"},
		{"debug_level_too_high", "defaults:\n  debug_level: 5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_DefaultsFilledIn(t *testing.T) {
	cfg, err := Load(writeConfig(t, "gpio:\n  driver: \"\"\n  lines_per_chip: 0\ntiming:\n  pulse_us: 0\nstage:\n  log_every: 0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GPIO.Driver != "cdev" {
		t.Errorf("driver = %q, want cdev", cfg.GPIO.Driver)
	}
	if cfg.GPIO.LinesPerChip != 32 {
		t.Errorf("lines_per_chip = %d, want 32", cfg.GPIO.LinesPerChip)
	}
	if cfg.Timing.PulseUs != 2000 {
		t.Errorf("pulse_us = %d, want 2000", cfg.Timing.PulseUs)
	}
	if cfg.Stage.LogEvery != 100 {
		t.Errorf("log_every = %d, want 100", cfg.Stage.LogEvery)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, strings.Repeat("#", MaxConfigFileBytes+1))
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	if _, err := Load(writeConfig(t, "unknown_section:\n  foo: bar\n")); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{Timing: TimingConfig{
		PulseUs: 2000, SignalUs: 10, StateUs: 500, LoopUs: 1000,
		FileSettleMs: 150, ShutdownHoldMs: 1000,
	}}
	cases := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"PulseDelay", cfg.PulseDelay(), 2 * time.Millisecond},
		{"SignalDelay", cfg.SignalDelay(), 10 * time.Microsecond},
		{"StateDelay", cfg.StateDelay(), 500 * time.Microsecond},
		{"LoopDelay", cfg.LoopDelay(), time.Millisecond},
		{"FileSettle", cfg.FileSettle(), 150 * time.Millisecond},
		{"ShutdownHold", cfg.ShutdownHold(), time.Second},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s() = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
