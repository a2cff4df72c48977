package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "stage.yaml"

// MaxConfigFileBytes bounds the size of the configuration file.
const MaxConfigFileBytes = 64 * 1024

// GPIOConfig selects the GPIO backend.
type GPIOConfig struct {
	Driver       string `yaml:"driver"`         // "cdev" (default), "rpio" or "mock"
	LinesPerChip int    `yaml:"lines_per_chip"` // cdev: global pin n -> gpiochip{n/lines_per_chip}
}

// AxisConfig holds the four output pins of one axis.
type AxisConfig struct {
	OptoPin int `yaml:"opto_pin"`
	PulPin  int `yaml:"pul_pin"`
	DirPin  int `yaml:"dir_pin"` // HIGH = negative travel
	EnaPin  int `yaml:"ena_pin"` // HIGH = driver enabled
}

// EStopConfig declares the emergency-stop lines. They are configured at
// startup but the state machine does not act on them.
type EStopConfig struct {
	InputPin  int `yaml:"input_pin"`
	SignalPin int `yaml:"signal_pin"`
}

// StageConfig describes travel limits and scan presets.
type StageConfig struct {
	MaxXSteps int         `yaml:"max_x_steps"` // full X sweep length in pulses
	RowSteps  int         `yaml:"row_steps"`   // Y pulses between two X sweeps
	LogEvery  int         `yaml:"log_every"`   // position log modulus
	Presets   map[int]int `yaml:"presets"`     // size code -> number of rows
}

// TimingConfig holds every fixed delay of the control loop.
type TimingConfig struct {
	PulseUs        int `yaml:"pulse_us"`         // half-period of a PUL pulse
	SignalUs       int `yaml:"signal_us"`        // settle after ENA/DIR changes
	StateUs        int `yaml:"state_us"`         // pause at the end of each state body
	LoopUs         int `yaml:"loop_us"`          // pause between two ticks
	FileSettleMs   int `yaml:"file_settle_ms"`   // settle before each channel file access
	ShutdownHoldMs int `yaml:"shutdown_hold_ms"` // hold after forcing lines low on shutdown
}

// FilesConfig lists the shared files used to talk to the operator and monitors.
type FilesConfig struct {
	Command  string `yaml:"command"`
	Size     string `yaml:"size"`
	FileName string `yaml:"file_name"`
	Position string `yaml:"position"`
	Timing   string `yaml:"timing"`
}

// CommandsConfig holds the external programs run by the controller.
type CommandsConfig struct {
	Capture  string `yaml:"capture"`  // launched with <size> <file name> appended, not awaited
	Transfer string `yaml:"transfer"` // run synchronously after a raster completes; empty disables
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	LockMemory bool `yaml:"lock_memory"` // mlockall before entering the control loop (Linux)
}

// Config aggregates all application configuration.
type Config struct {
	GPIO     GPIOConfig     `yaml:"gpio"`
	XAxis    AxisConfig     `yaml:"x_axis"`
	YAxis    AxisConfig     `yaml:"y_axis"`
	EStop    EStopConfig    `yaml:"estop"`
	Stage    StageConfig    `yaml:"stage"`
	Timing   TimingConfig   `yaml:"timing"`
	Files    FilesConfig    `yaml:"files"`
	Commands CommandsConfig `yaml:"commands"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Default returns the configuration of the BeagleBone stage.
func Default() *Config {
	return &Config{
		GPIO:  GPIOConfig{Driver: "cdev", LinesPerChip: 32},
		XAxis: AxisConfig{OptoPin: 66, PulPin: 69, DirPin: 45, EnaPin: 47},
		YAxis: AxisConfig{OptoPin: 48, PulPin: 49, DirPin: 115, EnaPin: 112},
		EStop: EStopConfig{InputPin: 65, SignalPin: 27},
		Stage: StageConfig{
			MaxXSteps: 7000,
			RowSteps:  300,
			LogEvery:  100,
			Presets:   map[int]int{1: 10, 2: 20},
		},
		Timing: TimingConfig{
			PulseUs:        2000,
			SignalUs:       10,
			StateUs:        500,
			LoopUs:         1000,
			FileSettleMs:   150,
			ShutdownHoldMs: 1000,
		},
		Files: FilesConfig{
			Command:  "command_file.txt",
			Size:     "size_file.txt",
			FileName: "file_name.txt",
			Position: "position_file.txt",
			Timing:   "timing.txt",
		},
		Commands: CommandsConfig{
			Capture:  "./run_camera.sh",
			Transfer: "./time_scp.sh",
		},
		Defaults: DefaultsConfig{DebugLevel: 1},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	presets := cfg.Stage.Presets
	cfg.Stage.Presets = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if cfg.Stage.Presets == nil {
		cfg.Stage.Presets = presets
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional behaves like Load but returns Default() when path does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) validate() error {
	switch c.GPIO.Driver {
	case "cdev", "rpio", "mock":
	case "":
		c.GPIO.Driver = "cdev"
	default:
		return fmt.Errorf("gpio.driver must be cdev, rpio or mock, got %q", c.GPIO.Driver)
	}
	if c.GPIO.LinesPerChip <= 0 {
		c.GPIO.LinesPerChip = 32
	}

	if err := checkAxis("x_axis", c.XAxis); err != nil {
		return err
	}
	if err := checkAxis("y_axis", c.YAxis); err != nil {
		return err
	}
	if err := distinctPins(c); err != nil {
		return err
	}

	if c.Stage.MaxXSteps <= 0 {
		return fmt.Errorf("stage.max_x_steps must be > 0, got %d", c.Stage.MaxXSteps)
	}
	if c.Stage.RowSteps <= 0 {
		return fmt.Errorf("stage.row_steps must be > 0, got %d", c.Stage.RowSteps)
	}
	if c.Stage.LogEvery <= 0 {
		c.Stage.LogEvery = 100
	}
	for code, rows := range c.Stage.Presets {
		if code < 0 {
			return fmt.Errorf("stage.presets: size code must be >= 0, got %d", code)
		}
		if rows <= 0 {
			return fmt.Errorf("stage.presets[%d]: rows must be > 0, got %d", code, rows)
		}
	}

	if c.Timing.PulseUs <= 0 {
		c.Timing.PulseUs = 2000
	}
	if c.Timing.SignalUs < 0 || c.Timing.StateUs < 0 || c.Timing.LoopUs < 0 ||
		c.Timing.FileSettleMs < 0 || c.Timing.ShutdownHoldMs < 0 {
		return errors.New("timing values must be >= 0")
	}

	for name, p := range map[string]string{
		"files.command":   c.Files.Command,
		"files.size":      c.Files.Size,
		"files.file_name": c.Files.FileName,
		"files.position":  c.Files.Position,
		"files.timing":    c.Files.Timing,
	} {
		if p == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.Commands.Capture == "" {
		return errors.New("commands.capture is required")
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func checkAxis(name string, a AxisConfig) error {
	for field, pin := range map[string]int{
		"opto_pin": a.OptoPin,
		"pul_pin":  a.PulPin,
		"dir_pin":  a.DirPin,
		"ena_pin":  a.EnaPin,
	} {
		if pin < 0 {
			return fmt.Errorf("%s.%s must be >= 0, got %d", name, field, pin)
		}
	}
	return nil
}

func distinctPins(c *Config) error {
	seen := make(map[int]string)
	for name, pin := range map[string]int{
		"x_axis.opto_pin":  c.XAxis.OptoPin,
		"x_axis.pul_pin":   c.XAxis.PulPin,
		"x_axis.dir_pin":   c.XAxis.DirPin,
		"x_axis.ena_pin":   c.XAxis.EnaPin,
		"y_axis.opto_pin":  c.YAxis.OptoPin,
		"y_axis.pul_pin":   c.YAxis.PulPin,
		"y_axis.dir_pin":   c.YAxis.DirPin,
		"y_axis.ena_pin":   c.YAxis.EnaPin,
		"estop.input_pin":  c.EStop.InputPin,
		"estop.signal_pin": c.EStop.SignalPin,
	} {
		if other, ok := seen[pin]; ok {
			return fmt.Errorf("pin %d used by both %s and %s", pin, other, name)
		}
		seen[pin] = name
	}
	return nil
}

// PulseDelay returns the half-period of a step pulse.
func (c *Config) PulseDelay() time.Duration {
	return time.Duration(c.Timing.PulseUs) * time.Microsecond
}

// SignalDelay returns the settle time after ENA/DIR changes.
func (c *Config) SignalDelay() time.Duration {
	return time.Duration(c.Timing.SignalUs) * time.Microsecond
}

// StateDelay returns the pause at the end of each state body.
func (c *Config) StateDelay() time.Duration {
	return time.Duration(c.Timing.StateUs) * time.Microsecond
}

// LoopDelay returns the pause between two ticks of the control loop.
func (c *Config) LoopDelay() time.Duration {
	return time.Duration(c.Timing.LoopUs) * time.Microsecond
}

// FileSettle returns the settle delay around channel file access.
func (c *Config) FileSettle() time.Duration {
	return time.Duration(c.Timing.FileSettleMs) * time.Millisecond
}

// ShutdownHold returns how long lines are held LOW before the process exits.
func (c *Config) ShutdownHold() time.Duration {
	return time.Duration(c.Timing.ShutdownHoldMs) * time.Millisecond
}
