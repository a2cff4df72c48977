package stepper

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/stagectl/internal/debug"
	"github.com/cjeanneret/stagectl/internal/hw/gpio"
)

// Direction of travel along an axis.
type Direction int

const (
	Positive Direction = iota
	Negative
)

func (d Direction) String() string {
	if d == Negative {
		return "negative"
	}
	return "positive"
}

// Config holds the hardware configuration for one axis.
type Config struct {
	Name        string
	OptoPin     int
	PulPin      int
	DirPin      int
	EnaPin      int           // driver enable, active HIGH
	PulseDelay  time.Duration // delay per half-cycle of the PUL pulse. Total step = 2*PulseDelay.
	SignalDelay time.Duration // settle time after ENA/DIR/OPTO changes
}

// Axis owns the four output lines of one stage axis.
// DIR HIGH is negative travel, DIR LOW is positive travel.
type Axis struct {
	name   string
	opto   *gpio.Line
	pul    *gpio.Line
	dir    *gpio.Line
	ena    *gpio.Line
	delay  time.Duration
	signal time.Duration
}

// NewAxis configures the four lines as outputs.
// cfg.PulseDelay: if 0, defaults to 2ms.
func NewAxis(g gpio.Driver, cfg Config) (*Axis, error) {
	delay := cfg.PulseDelay
	if delay <= 0 {
		delay = 2 * time.Millisecond
	}

	a := &Axis{
		name:   cfg.Name,
		opto:   gpio.NewLine(g, cfg.OptoPin),
		pul:    gpio.NewLine(g, cfg.PulPin),
		dir:    gpio.NewLine(g, cfg.DirPin),
		ena:    gpio.NewLine(g, cfg.EnaPin),
		delay:  delay,
		signal: cfg.SignalDelay,
	}

	for _, l := range a.lines() {
		if err := l.Configure(gpio.Output); err != nil {
			return nil, fmt.Errorf("axis %s: configure pin %d: %w", cfg.Name, l.Pin(), err)
		}
	}
	return a, nil
}

func (a *Axis) lines() []*gpio.Line {
	return []*gpio.Line{a.opto, a.pul, a.dir, a.ena}
}

// Name returns the axis label ("X" or "Y").
func (a *Axis) Name() string { return a.name }

// Enable turns on the motor driver (ENA=HIGH).
func (a *Axis) Enable() error {
	return a.set(a.ena, gpio.High)
}

// Disable turns off the motor driver (ENA=LOW). The axis freewheels.
func (a *Axis) Disable() error {
	return a.set(a.ena, gpio.Low)
}

// SetDirection selects the travel direction for following pulses.
func (a *Axis) SetDirection(d Direction) error {
	level := gpio.Low
	if d == Negative {
		level = gpio.High
	}
	return a.set(a.dir, level)
}

// SetOpto drives the auxiliary opto line.
func (a *Axis) SetOpto(level gpio.Level) error {
	return a.set(a.opto, level)
}

func (a *Axis) set(l *gpio.Line, level gpio.Level) error {
	if err := l.Write(level); err != nil {
		return fmt.Errorf("axis %s: write pin %d: %w", a.name, l.Pin(), err)
	}
	if a.signal > 0 {
		time.Sleep(a.signal)
	}
	return nil
}

// Pulse emits one step: PUL HIGH, hold, PUL LOW, hold.
// The cadence of this loop is the physical step rate.
func (a *Axis) Pulse() error {
	if err := a.pul.Write(gpio.High); err != nil {
		return fmt.Errorf("axis %s: pulse high: %w", a.name, err)
	}
	time.Sleep(a.delay)
	if err := a.pul.Write(gpio.Low); err != nil {
		return fmt.Errorf("axis %s: pulse low: %w", a.name, err)
	}
	time.Sleep(a.delay)
	return nil
}

// AllLow forces opto, pul, dir and ena LOW. Every line is attempted even if
// an earlier write fails.
func (a *Axis) AllLow() error {
	debug.Trace("Axis %s: forcing all lines LOW", a.name)
	var errs []error
	for _, l := range a.lines() {
		if err := l.Write(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("axis %s: pin %d: %w", a.name, l.Pin(), err))
		}
	}
	return errors.Join(errs...)
}
