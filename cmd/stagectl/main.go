package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cjeanneret/stagectl/internal/config"
	"github.com/cjeanneret/stagectl/internal/debug"
	"github.com/cjeanneret/stagectl/internal/hw/camera"
	"github.com/cjeanneret/stagectl/internal/hw/gpio"
	"github.com/cjeanneret/stagectl/internal/hw/stepper"
	"github.com/cjeanneret/stagectl/internal/ipc"
	"github.com/cjeanneret/stagectl/internal/logic/geometry"
	"github.com/cjeanneret/stagectl/internal/logic/motion"
	"github.com/cjeanneret/stagectl/internal/logic/telemetry"
	"github.com/cjeanneret/stagectl/internal/rt"
)

const usage = "usage: stagectl on|off"

func main() {
	// Arguments are checked before any file or line is touched.
	opto, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.LoadOptional(config.DefaultPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel)
	if err := run(cfg, opto); err != nil {
		log.Fatalf("stagectl: %v", err)
	}
}

// parseArgs accepts exactly one argument, "on" or "off", giving the opto
// line level of both axes.
func parseArgs(args []string) (gpio.Level, error) {
	if len(args) != 1 {
		return gpio.Low, fmt.Errorf("expected exactly one argument, got %d", len(args))
	}
	switch args[0] {
	case "on":
		return gpio.High, nil
	case "off":
		return gpio.Low, nil
	default:
		return gpio.Low, fmt.Errorf("invalid argument %q", args[0])
	}
}

func run(cfg *config.Config, opto gpio.Level) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	debug.Section("Initialization")
	debug.Value("Config path", config.DefaultPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Opto", opto)
	debug.Value("Size codes", geometry.Codes(cfg.Stage.Presets))

	if cfg.Defaults.LockMemory {
		if err := rt.LockMemory(); err != nil {
			debug.Warn("memory lock unavailable: %v", err)
		} else if rt.Supported() {
			debug.Info("Process memory locked")
		}
	}

	// Initialize GPIO driver
	debug.Step(1, "Initializing GPIO driver")
	debug.Value("GPIO driver", cfg.GPIO.Driver)
	drv, err := gpio.NewDriver(gpio.Options{Kind: cfg.GPIO.Driver, LinesPerChip: cfg.GPIO.LinesPerChip})
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Axes
	debug.Step(2, "Initializing axes")
	xAxis, err := newAxis(drv, "X", cfg.XAxis, cfg)
	if err != nil {
		return err
	}
	yAxis, err := newAxis(drv, "Y", cfg.YAxis, cfg)
	if err != nil {
		return err
	}
	for _, a := range []*stepper.Axis{xAxis, yAxis} {
		if err := a.SetOpto(opto); err != nil {
			return err
		}
	}

	debug.Step(3, "Configuring e-stop lines")
	if err := setupEStop(drv, cfg.EStop); err != nil {
		return err
	}

	// Channel and log files
	debug.Step(4, "Preparing channel and log files")
	ch := ipc.NewFileChannel(ipc.Paths{
		Command:  cfg.Files.Command,
		Size:     cfg.Files.Size,
		FileName: cfg.Files.FileName,
	}, cfg.FileSettle())
	if err := ch.Reset(); err != nil {
		return err
	}
	positions := telemetry.NewFileLog(cfg.Files.Position)
	timing := telemetry.NewFileLog(cfg.Files.Timing)
	for _, l := range []*telemetry.FileLog{positions, timing} {
		if err := l.Truncate(); err != nil {
			return err
		}
	}
	if err := positions.Append(telemetry.PositionRecord(0, 0)); err != nil {
		return err
	}

	// External programs
	debug.Step(5, "Preparing external commands")
	debug.Value("Capture", cfg.Commands.Capture)
	debug.Value("Transfer", cfg.Commands.Transfer)
	cam, err := camera.NewScriptCamera(cfg.Commands.Capture)
	if err != nil {
		return err
	}
	transfer, err := telemetry.NewTransfer(cfg.Commands.Transfer)
	if err != nil {
		return err
	}

	ctrl, err := motion.New(motion.Config{
		X:         xAxis,
		Y:         yAxis,
		Channel:   ch,
		Camera:    cam,
		Transfer:  transfer,
		Positions: positions,
		Timing:    timing,
		Params:    motion.ParamsFrom(cfg),
	})
	if err != nil {
		return err
	}
	debug.PrintStruct("Stage", cfg.Stage)

	debug.Summary("Stage controller running")
	runErr := ctrl.Run(ctx)

	if err := ctrl.Shutdown(); err != nil {
		debug.Error(err)
	}
	waitCtx, cancelWait := context.WithTimeout(context.Background(), cfg.ShutdownHold())
	defer cancelWait()
	if err := cam.Wait(waitCtx); errors.Is(err, context.DeadlineExceeded) {
		debug.Warn("capture still running at exit")
	}
	return runErr
}

func newAxis(drv gpio.Driver, name string, a config.AxisConfig, cfg *config.Config) (*stepper.Axis, error) {
	debug.PrintStruct(name+" axis pins", a)
	return stepper.NewAxis(drv, stepper.Config{
		Name:        name,
		OptoPin:     a.OptoPin,
		PulPin:      a.PulPin,
		DirPin:      a.DirPin,
		EnaPin:      a.EnaPin,
		PulseDelay:  cfg.PulseDelay(),
		SignalDelay: cfg.SignalDelay(),
	})
}

// setupEStop configures the e-stop lines. The input is only reported.
func setupEStop(drv gpio.Driver, e config.EStopConfig) error {
	in := gpio.NewLine(drv, e.InputPin)
	if err := in.Configure(gpio.Input); err != nil {
		return fmt.Errorf("e-stop input pin %d: %w", e.InputPin, err)
	}
	if err := gpio.NewLine(drv, e.SignalPin).Configure(gpio.Output); err != nil {
		return fmt.Errorf("e-stop signal pin %d: %w", e.SignalPin, err)
	}
	level, err := in.Read()
	if err != nil {
		return fmt.Errorf("e-stop input pin %d: %w", e.InputPin, err)
	}
	debug.Value("E-stop input", level)
	return nil
}
