// Package controller runs the sensing loop: wait for a scan, latch its
// counts, start the next scan, then calibrate, process and report.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itohio/golevel/pkg/acquire"
	"github.com/itohio/golevel/pkg/calibration"
	"github.com/itohio/golevel/pkg/command"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/report"
	"github.com/itohio/golevel/pkg/state"
	"github.com/itohio/golevel/pkg/transport"
)

// Banner clears the terminal and titles the console.
const Banner = "\x1b[2J\x1b[;H" +
	"***************************************************************\r\n" +
	"Capacitive Liquid Level Sensing\r\n" +
	"***************************************************************\r\n\n"

// Console notices for unrecoverable errors.
const (
	StoreInitNotice  = "Emulated EEPROM Initialization Error \r\n"
	StoreWriteNotice = "Emulated EEPROM Write failed \r\n"
	ScanNotice       = "Sensor Scan Error \r\n"
)

// DefaultDelay throttles the loop and with it the console data rate.
const DefaultDelay = 100 * time.Millisecond

// ErrHalted is matched by every error that stopped the loop for good.
var ErrHalted = errors.New("controller halted")

// HaltError reports the failure that stopped the loop. The notice has
// already been written to the console.
type HaltError struct {
	Notice string
	Err    error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("%s: %v", ErrHalted, e.Err)
}

// Unwrap exposes both ErrHalted and the cause to errors.Is.
func (e *HaltError) Unwrap() []error {
	return []error{ErrHalted, e.Err}
}

// Options wires the loop's collaborators.
type Options struct {
	Port    transport.Port
	Scanner acquire.Scanner
	Store   *calibration.Store
	Params  level.Params

	// Mode is the reporting mode at boot. The zero value is ModeNone.
	Mode state.Mode
	// Delay between scans. Zero uses DefaultDelay; negative disables it.
	Delay time.Duration
	// PollInterval is how often a running scan is checked.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Controller owns the loop state. It is driven from a single goroutine.
type Controller struct {
	port     transport.Port
	scanner  acquire.Scanner
	store    *calibration.Store
	pipeline *level.Pipeline
	commands *command.Interpreter
	engine   *report.Engine
	log      *slog.Logger

	delay time.Duration
	poll  time.Duration

	st     state.Reporting
	halted error
}

// New validates opts and builds a controller.
func New(opts Options) (*Controller, error) {
	if opts.Port == nil {
		return nil, fmt.Errorf("controller: no port")
	}
	if opts.Scanner == nil {
		return nil, fmt.Errorf("controller: no scanner")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("controller: no calibration store")
	}

	pl, err := level.New(opts.Params)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delay := opts.Delay
	if delay == 0 {
		delay = DefaultDelay
	}

	cmds := command.New(opts.Port, logger)
	return &Controller{
		port:     opts.Port,
		scanner:  opts.Scanner,
		store:    opts.Store,
		pipeline: pl,
		commands: cmds,
		engine:   report.New(opts.Port, cmds),
		log:      logger,
		delay:    delay,
		poll:     opts.PollInterval,
		st:       state.Reporting{Mode: opts.Mode},
	}, nil
}

// State returns a copy of the reporting state.
func (c *Controller) State() state.Reporting {
	return c.st
}

// Result returns the level computed by the last Step.
func (c *Controller) Result() level.Result {
	return c.pipeline.Result()
}

// Sensors returns the sensor array as of the last Step.
func (c *Controller) Sensors() level.Array {
	return c.pipeline.Sensors()
}

// Offsets returns the calibration offsets in use.
func (c *Controller) Offsets() level.Offsets {
	return c.pipeline.Offsets()
}

// Start prints the banner and help, restores the stored calibration and
// starts the first scan.
func (c *Controller) Start(ctx context.Context) error {
	if c.halted != nil {
		return c.halted
	}

	if err := c.port.PutString(Banner); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if err := c.port.PutString(command.Help); err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	offsets, err := c.store.Load()
	if err != nil {
		return c.halt(StoreInitNotice, err)
	}
	c.pipeline.SetOffsets(offsets)
	if err := c.engine.Calibration(offsets); err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	if err := c.scanner.Scan(); err != nil {
		return c.halt(ScanNotice, err)
	}

	c.log.Info("controller started", "mode", c.st.Mode, "offsets", offsets)
	return nil
}

// Step runs one loop iteration. It blocks until the running scan completes.
func (c *Controller) Step(ctx context.Context) error {
	if c.halted != nil {
		return c.halted
	}

	if err := acquire.Wait(ctx, c.scanner, c.poll); err != nil {
		return err
	}
	if err := c.scanner.Process(); err != nil {
		return c.halt(ScanNotice, err)
	}

	if err := c.sleep(ctx); err != nil {
		return err
	}

	raw, err := acquire.ReadAll(c.scanner)
	if err != nil {
		return c.halt(ScanNotice, err)
	}
	c.pipeline.Load(raw)

	if err := c.scanner.Scan(); err != nil {
		return c.halt(ScanNotice, err)
	}

	if c.st.CalibrationRequested {
		c.st.CalibrationRequested = false
		if err := c.calibrate(); err != nil {
			return err
		}
	}

	c.pipeline.Process()

	if err := c.engine.Iterate(&c.st, c.pipeline); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

// Run starts the loop and steps it until ctx is done or the loop halts.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	for {
		if err := c.Step(ctx); err != nil {
			return err
		}
	}
}

// calibrate captures the current diffs as offsets, echoes them and makes
// them take effect.
func (c *Controller) calibrate() error {
	offsets, err := c.store.Capture(c.pipeline)
	c.pipeline.SetOffsets(offsets)
	if werr := c.engine.Calibration(offsets); werr != nil && err == nil {
		return fmt.Errorf("controller: %w", werr)
	}
	if err != nil {
		return c.halt(StoreWriteNotice, err)
	}
	return nil
}

func (c *Controller) sleep(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// halt writes notice to the console and latches the error so the loop
// never runs again.
func (c *Controller) halt(notice string, cause error) error {
	c.log.Error("controller halted", "notice", notice, "error", cause)
	if err := c.port.PutString(notice); err != nil {
		c.log.Error("failed to write halt notice", "error", err)
	}
	c.halted = &HaltError{Notice: notice, Err: cause}
	return c.halted
}
