package gpio

// Line is a single addressable signal on a Driver.
// No buffering or debouncing: Write changes the physical pin immediately.
type Line struct {
	drv Driver
	pin int
}

func NewLine(d Driver, pin int) *Line {
	return &Line{drv: d, pin: pin}
}

// Pin returns the pin number this line is bound to.
func (l *Line) Pin() int { return l.pin }

func (l *Line) Configure(mode PinMode) error {
	return l.drv.SetupPin(l.pin, mode)
}

func (l *Line) Write(level Level) error {
	return l.drv.WritePin(l.pin, level)
}

func (l *Line) Read() (Level, error) {
	return l.drv.ReadPin(l.pin)
}
