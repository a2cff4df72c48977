package gpio

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/stagectl/internal/debug"
	"github.com/warthog618/go-gpiocdev"
)

const (
	defaultLinesPerChip = 32
	consumer            = "stagectl"
)

// CdevDriver drives lines through the Linux GPIO character device.
// Pins are global numbers: pin n is line n%linesPerChip on gpiochip{n/linesPerChip},
// which matches the sysfs numbering used on BeagleBone-class boards.
type CdevDriver struct {
	linesPerChip int
	lines        map[int]*gpiocdev.Line
	modes        map[int]PinMode
}

// NewCdevDriver creates a character-device driver. linesPerChip <= 0 selects 32.
func NewCdevDriver(linesPerChip int) (*CdevDriver, error) {
	if linesPerChip <= 0 {
		linesPerChip = defaultLinesPerChip
	}
	debug.Info("Initializing real GPIO driver (gpiocdev, %d lines per chip)", linesPerChip)

	// Fail early when no GPIO chip is present at all.
	if len(gpiocdev.Chips()) == 0 {
		return nil, errors.New("no GPIO character devices found (is /dev/gpiochip* available?)")
	}

	return &CdevDriver{
		linesPerChip: linesPerChip,
		lines:        make(map[int]*gpiocdev.Line),
		modes:        make(map[int]PinMode),
	}, nil
}

func (c *CdevDriver) location(pin int) (string, int) {
	return fmt.Sprintf("gpiochip%d", pin/c.linesPerChip), pin % c.linesPerChip
}

func (c *CdevDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	if pin < 0 {
		return fmt.Errorf("invalid pin %d", pin)
	}

	if l, ok := c.lines[pin]; ok {
		if c.modes[pin] == mode {
			return nil
		}
		// Re-request with the new direction.
		_ = l.Close()
		delete(c.lines, pin)
	}

	var opt gpiocdev.LineReqOption
	switch mode {
	case Input:
		opt = gpiocdev.AsInput
	case Output:
		opt = gpiocdev.AsOutput(0)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	chip, offset := c.location(pin)
	l, err := gpiocdev.RequestLine(chip, offset, opt, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return fmt.Errorf("request %s line %d (pin %d): %w", chip, offset, pin, err)
	}
	c.lines[pin] = l
	c.modes[pin] = mode
	return nil
}

func (c *CdevDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	l, ok := c.lines[pin]
	if !ok || c.modes[pin] != Output {
		if err := c.SetupPin(pin, Output); err != nil {
			return err
		}
		l = c.lines[pin]
	}

	v := 0
	if level == High {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

func (c *CdevDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	l, ok := c.lines[pin]
	if !ok {
		if err := c.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		l = c.lines[pin]
	}

	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return Level(v != 0), nil
}

// Close drives outputs LOW and releases every requested line.
func (c *CdevDriver) Close() error {
	debug.Trace("GPIO Close (cdev)")

	var errs []error
	for pin, l := range c.lines {
		if c.modes[pin] == Output {
			if err := l.SetValue(0); err != nil {
				errs = append(errs, err)
			}
		}
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.lines, pin)
	}
	return errors.Join(errs...)
}
