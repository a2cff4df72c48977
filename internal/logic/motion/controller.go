package motion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/stagectl/internal/config"
	"github.com/cjeanneret/stagectl/internal/debug"
	"github.com/cjeanneret/stagectl/internal/hw/camera"
	"github.com/cjeanneret/stagectl/internal/hw/stepper"
	"github.com/cjeanneret/stagectl/internal/ipc"
	"github.com/cjeanneret/stagectl/internal/logic/geometry"
	"github.com/cjeanneret/stagectl/internal/logic/telemetry"
)

// ErrUnknownState is returned by Tick when the controller holds a state it
// has no body for.
var ErrUnknownState = errors.New("motion: unknown state")

// Recorder is an append-only line log.
type Recorder interface {
	Append(line string) error
	Close() error
}

// Transferer ships the timing log once a raster is complete.
type Transferer interface {
	Run(ctx context.Context) error
}

// Params are the travel limits and fixed delays of the stage.
type Params struct {
	MaxX         int         // X sweep length in pulses
	RowSteps     int         // Y pulses per row
	LogEvery     int         // position log modulus
	Presets      map[int]int // size code -> rows
	StateDelay   time.Duration
	LoopDelay    time.Duration
	FileSettle   time.Duration // pause between two rewind rows
	ShutdownHold time.Duration
}

// ParamsFrom extracts controller parameters from the application config.
func ParamsFrom(cfg *config.Config) Params {
	return Params{
		MaxX:         cfg.Stage.MaxXSteps,
		RowSteps:     cfg.Stage.RowSteps,
		LogEvery:     cfg.Stage.LogEvery,
		Presets:      cfg.Stage.Presets,
		StateDelay:   cfg.StateDelay(),
		LoopDelay:    cfg.LoopDelay(),
		FileSettle:   cfg.FileSettle(),
		ShutdownHold: cfg.ShutdownHold(),
	}
}

// Config wires a Controller to its hardware and files.
type Config struct {
	X, Y      *stepper.Axis
	Channel   ipc.Channel
	Camera    camera.Camera
	Transfer  Transferer // optional
	Positions Recorder
	Timing    Recorder
	Clock     *telemetry.Clock // optional, a new clock when nil
	Params    Params
}

// Controller runs the raster state machine. It is not safe for concurrent
// use: Tick, Run and Shutdown must be called from one goroutine.
type Controller struct {
	x, y      *stepper.Axis
	ch        ipc.Channel
	cam       camera.Camera
	transfer  Transferer
	positions Recorder
	timing    Recorder
	clock     *telemetry.Clock
	p         Params

	state    State
	next     State // X sweep following the current Y row
	xPos     int
	yPos     int
	rows     int // completed X sweeps
	scan     geometry.Scan
	com      ipc.Command
	scanning bool
	overrun  int // Y rewind pulses emitted at y == 0 during the last REWIND
}

func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.X == nil || cfg.Y == nil:
		return nil, errors.New("motion: both axes are required")
	case cfg.Channel == nil:
		return nil, errors.New("motion: command channel is required")
	case cfg.Camera == nil:
		return nil, errors.New("motion: camera is required")
	case cfg.Positions == nil || cfg.Timing == nil:
		return nil, errors.New("motion: position and timing logs are required")
	}
	p := cfg.Params
	if p.MaxX <= 0 || p.RowSteps <= 0 {
		return nil, fmt.Errorf("motion: max X (%d) and row steps (%d) must be > 0", p.MaxX, p.RowSteps)
	}
	if p.LogEvery <= 0 {
		p.LogEvery = 100
	}
	clock := cfg.Clock
	if clock == nil {
		clock = telemetry.NewClock()
	}

	return &Controller{
		x:         cfg.X,
		y:         cfg.Y,
		ch:        cfg.Channel,
		cam:       cfg.Camera,
		transfer:  cfg.Transfer,
		positions: cfg.Positions,
		timing:    cfg.Timing,
		clock:     clock,
		p:         p,
		state:     Ready,
		next:      PositiveX,
		com:       ipc.CommandNone,
	}, nil
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Position() (x, y int) { return c.xPos, c.yPos }
func (c *Controller) Rows() int { return c.rows }
func (c *Controller) Scan() geometry.Scan { return c.scan }
func (c *Controller) LastCommand() ipc.Command { return c.com }
func (c *Controller) Scanning() bool { return c.scanning }

// Run ticks the state machine until ctx is cancelled or a hardware error
// occurs. Cancellation is not an error.
func (c *Controller) Run(ctx context.Context) error {
	debug.Info("Controller: running, initial state %s", c.state)
	for {
		if err := c.Tick(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				debug.Info("Controller: stopped in %s at %d %d", c.state, c.xPos, c.yPos)
				return nil
			}
			return err
		}
		if sleep(ctx, c.p.LoopDelay) != nil {
			debug.Info("Controller: stopped in %s at %d %d", c.state, c.xPos, c.yPos)
			return nil
		}
	}
}

// Tick runs the body of the current state once and moves to the next state.
func (c *Controller) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		next State
		err  error
	)
	switch c.state {
	case Ready:
		next, err = c.ready()
	case Idle:
		next, err = c.idle()
	case PositiveX:
		next, err = c.positiveX(ctx)
	case NegativeX:
		next, err = c.negativeX(ctx)
	case PositiveY:
		next, err = c.positiveY(ctx)
	case NegativeY:
		next, err = c.negativeY(ctx)
	case Rewind:
		next, err = c.rewind(ctx)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownState, int(c.state))
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		return fmt.Errorf("%s: %w", c.state, err)
	}

	debug.State(c.state.String(), next.String())
	c.state = next
	return sleep(ctx, c.p.StateDelay)
}

// Shutdown forces every axis line LOW and holds them there for the
// shutdown delay.
func (c *Controller) Shutdown() error {
	debug.Info("Controller: forcing all lines LOW")
	err := c.allLow()
	if c.scanning {
		c.scanning = false
		if cerr := c.timing.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	if cerr := c.positions.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	time.Sleep(c.p.ShutdownHold)
	return err
}

func (c *Controller) ready() (State, error) {
	if err := c.disableBoth(); err != nil {
		return Ready, err
	}
	c.scan = geometry.ScanFor(c.ch.Size(), c.p.Presets, c.p.RowSteps)
	c.com = c.ch.Command()
	if c.com != ipc.CommandStart {
		return Ready, nil
	}
	if !c.scan.Valid() {
		debug.Live("Controller: start ignored, size code %d has no preset", c.scan.Size)
		return Ready, nil
	}

	name := c.ch.FileName()
	if err := c.cam.Start(c.scan.Size, name); err != nil {
		debug.Error(err)
	}
	c.clock.Start()
	c.rows = 0
	c.scanning = true
	debug.Info("Controller: scan started, size %d, %d rows, file %q", c.scan.Size, c.scan.Rows, name)
	return PositiveX, nil
}

func (c *Controller) idle() (State, error) {
	if err := c.disableBoth(); err != nil {
		return Idle, err
	}
	c.com = c.ch.Command()
	debug.Position(c.xPos, c.yPos)
	if c.com == ipc.CommandRewind {
		return Rewind, nil
	}
	return Idle, nil
}

func (c *Controller) positiveX(ctx context.Context) (State, error) {
	paused, err := c.sweepX(ctx, stepper.Positive)
	if err != nil {
		return PositiveX, err
	}
	if c.rows >= c.scan.Rows {
		c.completeRaster(ctx)
		return Idle, nil
	}
	c.rows++
	c.next = NegativeX
	if paused {
		debug.Info("Controller: paused after row %d", c.rows)
		return Idle, nil
	}
	return PositiveY, nil
}

func (c *Controller) negativeX(ctx context.Context) (State, error) {
	paused, err := c.sweepX(ctx, stepper.Negative)
	if err != nil {
		return NegativeX, err
	}
	if c.rows < c.scan.Rows {
		c.rows++
	}
	c.next = PositiveX
	if paused {
		debug.Info("Controller: paused after row %d", c.rows)
		return Idle, nil
	}
	return PositiveY, nil
}

// sweepX drives X to the end of its travel in direction dir. It reports
// whether a pause was read at either end of the sweep.
func (c *Controller) sweepX(ctx context.Context, dir stepper.Direction) (bool, error) {
	if err := c.y.Disable(); err != nil {
		return false, err
	}
	if err := c.x.Enable(); err != nil {
		return false, err
	}
	if err := c.x.SetDirection(dir); err != nil {
		return false, err
	}

	first := c.ch.Command()
	c.sample()
	if dir == stepper.Positive {
		debug.Move("X", c.p.MaxX-c.xPos, dir.String())
		for c.xPos < c.p.MaxX {
			if err := c.stepX(ctx, 1); err != nil {
				return false, err
			}
		}
	} else {
		debug.Move("X", c.xPos, dir.String())
		for c.xPos > 0 {
			if err := c.stepX(ctx, -1); err != nil {
				return false, err
			}
		}
	}
	c.sample()
	c.com = c.ch.Command()

	if err := c.x.Disable(); err != nil {
		return false, err
	}
	return first == ipc.CommandPause || c.com == ipc.CommandPause, nil
}

func (c *Controller) positiveY(ctx context.Context) (State, error) {
	if err := c.x.Disable(); err != nil {
		return PositiveY, err
	}
	if err := c.y.Enable(); err != nil {
		return PositiveY, err
	}
	if err := c.y.SetDirection(stepper.Positive); err != nil {
		return PositiveY, err
	}

	c.com = c.ch.Command()
	c.sample()
	debug.Move("Y", c.p.RowSteps, stepper.Positive.String())
	for i := 0; i < c.p.RowSteps; i++ {
		if err := c.stepY(ctx, 1); err != nil {
			return PositiveY, err
		}
	}
	c.com = c.ch.Command()
	c.sample()

	if err := c.y.Disable(); err != nil {
		return PositiveY, err
	}
	if c.yPos >= c.scan.YRewind {
		c.completeRaster(ctx)
		return Idle, nil
	}
	return c.next, nil
}

// negativeY steps Y back by one pulse per tick. It never steps below 0.
func (c *Controller) negativeY(ctx context.Context) (State, error) {
	if err := c.x.Disable(); err != nil {
		return NegativeY, err
	}
	if c.yPos <= 0 {
		debug.Warn("Controller: NEGATIVE_Y at y=0, no pulse emitted")
		return Idle, c.y.Disable()
	}
	if err := c.y.Enable(); err != nil {
		return NegativeY, err
	}
	if err := c.y.SetDirection(stepper.Negative); err != nil {
		return NegativeY, err
	}
	if err := c.stepY(ctx, -1); err != nil {
		return NegativeY, err
	}
	return NegativeY, nil
}

// rewind returns both axes to the origin. Y always travels the full raster
// height, X travels exactly x pulses.
func (c *Controller) rewind(ctx context.Context) (State, error) {
	if err := c.x.Disable(); err != nil {
		return Rewind, err
	}
	if err := c.y.Enable(); err != nil {
		return Rewind, err
	}
	if err := c.y.SetDirection(stepper.Negative); err != nil {
		return Rewind, err
	}

	debug.Move("Y", c.scan.Rows*c.p.RowSteps, stepper.Negative.String())
	c.overrun = 0
	for row := 0; row < c.scan.Rows; row++ {
		if row > 0 {
			if err := sleep(ctx, c.p.FileSettle); err != nil {
				return Rewind, err
			}
		}
		for i := 0; i < c.p.RowSteps; i++ {
			if err := c.y.Pulse(); err != nil {
				return Rewind, err
			}
			if c.yPos > 0 {
				c.yPos--
				if c.yPos%c.p.LogEvery == 0 {
					c.logPosition()
				}
			} else {
				c.overrun++
			}
			if err := ctx.Err(); err != nil {
				return Rewind, err
			}
		}
	}
	if c.overrun > 0 {
		debug.Warn("Controller: Y rewind emitted %d pulses past 0", c.overrun)
	}

	if err := c.y.Disable(); err != nil {
		return Rewind, err
	}
	if err := c.x.Enable(); err != nil {
		return Rewind, err
	}
	if err := c.x.SetDirection(stepper.Negative); err != nil {
		return Rewind, err
	}
	debug.Move("X", c.xPos, stepper.Negative.String())
	for c.xPos > 0 {
		if err := c.stepX(ctx, -1); err != nil {
			return Rewind, err
		}
	}

	if c.scanning {
		c.scanning = false
		if err := c.timing.Close(); err != nil {
			debug.Error(err)
		}
	}
	if err := c.allLow(); err != nil {
		return Rewind, err
	}
	return Ready, nil
}

// completeRaster runs once per scan, from whichever sweep detects the end.
func (c *Controller) completeRaster(ctx context.Context) {
	if !c.scanning {
		return
	}
	c.sample()
	c.scanning = false
	if err := c.timing.Close(); err != nil {
		debug.Error(err)
	}
	debug.Info("Controller: raster complete, %d rows, position %d %d", c.rows, c.xPos, c.yPos)
	if c.transfer == nil {
		return
	}
	if err := c.transfer.Run(ctx); err != nil {
		debug.Error(err)
	}
}

// stepX emits one X pulse and updates the counter before anything else
// happens. Cancellation is checked only after the full pulse.
func (c *Controller) stepX(ctx context.Context, delta int) error {
	if err := c.x.Pulse(); err != nil {
		return err
	}
	c.xPos += delta
	if c.xPos%c.p.LogEvery == 0 {
		c.logPosition()
	}
	return ctx.Err()
}

func (c *Controller) stepY(ctx context.Context, delta int) error {
	if err := c.y.Pulse(); err != nil {
		return err
	}
	c.yPos += delta
	if c.yPos%c.p.LogEvery == 0 {
		c.logPosition()
	}
	return ctx.Err()
}

func (c *Controller) logPosition() {
	debug.Position(c.xPos, c.yPos)
	if err := c.positions.Append(telemetry.PositionRecord(c.xPos, c.yPos)); err != nil {
		debug.Warn("Controller: position log: %v", err)
	}
}

func (c *Controller) sample() {
	if err := c.timing.Append(c.clock.Sample()); err != nil {
		debug.Warn("Controller: timing log: %v", err)
	}
}

func (c *Controller) disableBoth() error {
	return errors.Join(c.x.Disable(), c.y.Disable())
}

func (c *Controller) allLow() error {
	return errors.Join(c.x.AllLow(), c.y.AllLow())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
