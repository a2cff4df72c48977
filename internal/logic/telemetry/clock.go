package telemetry

import "time"

// Clock measures elapsed time since the start of the current scan.
type Clock struct {
	now   func() time.Time
	epoch time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Start captures a new epoch.
func (c *Clock) Start() {
	c.epoch = c.now()
}

// Elapsed returns the time since Start, or 0 if Start was never called.
func (c *Clock) Elapsed() time.Duration {
	if c.epoch.IsZero() {
		return 0
	}
	return c.now().Sub(c.epoch)
}

// Sample returns Elapsed formatted for the timing log.
func (c *Clock) Sample() string {
	return FormatSeconds(c.Elapsed())
}
