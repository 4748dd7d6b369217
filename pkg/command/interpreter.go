// Package command parses console input into reporting state changes.
//
// Input is accumulated byte by byte until a carriage return or newline.
// Only bytes above '0' are echoed and buffered, so spaces, punctuation and
// the digit zero are swallowed. A terminal that sends CRLF therefore
// produces the typed command followed by an empty line.
package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/itohio/golevel/pkg/state"
	"github.com/itohio/golevel/pkg/transport"
)

// BufferSize is the longest command line that can be parsed.
const BufferSize = 32

// Command names recognised on the console.
const (
	Calibrate = "cal"
	Stop      = "stop"
	CSV       = "csv"
	Basic     = "basic"
	Reset     = "reset"
	Store     = ""
)

// ErrorNotice is written for unknown or overlong lines.
const ErrorNotice = "Command Error\r\n"

// Help lists the console commands.
const Help = "\n\r" +
	"Commands \n\r" +
	"  stop - Stops displaying data over UART.\n\r" +
	"  cal - Stores empty container sensor values to EEPROM for calibration.\n\r" +
	"  basic - Outputs liquid level in mm and %.\n\r" +
	"  csv - Outputs intermediate computation values as well as liquid level in CSV format.\n\r" +
	"  'Enter' - Outputs the next set of level values from the sample array.\n\r" +
	"  reset - Resets the sample array pointer to 0 %.\n\r" +
	"\n\r"

// Interpreter owns the line buffer of one console.
type Interpreter struct {
	port transport.Port
	log  *slog.Logger

	buf      [BufferSize]byte
	n        int
	overflow bool
}

// New creates an interpreter reading from port. A nil logger uses
// slog.Default().
func New(port transport.Port, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{port: port, log: logger}
}

// Pending returns the partially typed line.
func (in *Interpreter) Pending() string {
	return string(in.buf[:in.n])
}

// Poll consumes received bytes until one line has been terminated or no
// input remains, so at most one command takes effect per call.
func (in *Interpreter) Poll(st *state.Reporting) error {
	for in.port.BytesAvailable() > 0 {
		c, err := in.port.GetChar()
		if errors.Is(err, transport.ErrNoData) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("console read failed: %w", err)
		}

		done, err := in.feed(c, st)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return nil
}

// feed handles one byte and reports whether it terminated a line.
func (in *Interpreter) feed(c byte, st *state.Reporting) (bool, error) {
	if c > '0' {
		if err := in.port.PutChar(c); err != nil {
			return false, fmt.Errorf("console echo failed: %w", err)
		}
		if in.n < BufferSize {
			in.buf[in.n] = c
			in.n++
		} else {
			in.overflow = true
		}
	}

	if c != '\r' && c != '\n' {
		return false, nil
	}

	line := string(in.buf[:in.n])
	overflow := in.overflow
	in.n = 0
	in.overflow = false

	if overflow {
		in.log.Warn("command line too long", "limit", BufferSize)
		return true, in.reject()
	}
	if !Apply(line, st) {
		in.log.Debug("unknown command", "line", line)
		return true, in.reject()
	}
	in.log.Debug("command", "line", line, "mode", st.Mode)
	return true, nil
}

func (in *Interpreter) reject() error {
	if err := in.port.PutString(ErrorNotice); err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}
	return nil
}

// Apply executes one complete command line against st. It returns false,
// leaving st untouched, when the line is not a command.
func Apply(line string, st *state.Reporting) bool {
	switch line {
	case Calibrate:
		st.CalibrationRequested = true
	case Stop:
		st.Mode = state.ModeNone
	case CSV:
		st.Mode = state.ModeCSVInit
	case Basic:
		st.Mode = state.ModeBasic
	case Store:
		st.SampleStoreRequested = true
		st.Mode = state.ModeNone
	case Reset:
		st.SampleResetRequested = true
		st.Mode = state.ModeNone
	default:
		return false
	}
	return true
}
