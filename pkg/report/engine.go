// Package report formats level results for the serial console.
package report

import (
	"fmt"

	"github.com/itohio/golevel/pkg/fixed"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/state"
	"github.com/itohio/golevel/pkg/transport"
)

const eol = "\r\n"

// Source is what the engine reports on.
type Source interface {
	Sensors() level.Array
	Result() level.Result
}

// Poller consumes console input between reports.
type Poller interface {
	Poll(st *state.Reporting) error
}

// Engine writes the configured output mode, runs the command poller and
// the sample-log sequencer once per loop iteration.
type Engine struct {
	port     transport.Port
	commands Poller
	buf      []byte
}

// New creates an engine writing to port. commands may be nil when console
// input is handled elsewhere.
func New(port transport.Port, commands Poller) *Engine {
	return &Engine{
		port:     port,
		commands: commands,
		buf:      make([]byte, 0, 512),
	}
}

// Iterate prints the main mode, then processes commands and sample-log
// requests regardless of the mode.
func (e *Engine) Iterate(st *state.Reporting, src Source) error {
	if err := e.Report(st, src); err != nil {
		return err
	}
	if e.commands != nil {
		if err := e.commands.Poll(st); err != nil {
			return err
		}
	}
	return e.SampleLog(st, src)
}

// Report prints one line for the current main mode. CsvInit prints the
// header and moves on to Csv.
func (e *Engine) Report(st *state.Reporting, src Source) error {
	b := e.buf[:0]

	switch st.Mode {
	case state.ModeBasic:
		b = appendBasic(b, src.Result())
	case state.ModeCSVInit:
		b = appendCSVHeader(b)
		st.Mode = state.ModeCSV
	case state.ModeCSV:
		b = appendCSVRow(b, src.Sensors(), src.Result())
	default:
		return nil
	}

	e.buf = b
	return e.write(b)
}

// Calibration prints the offsets in use.
func (e *Engine) Calibration(o level.Offsets) error {
	b := append(e.buf[:0], "EmptyCal="...)
	for _, v := range o {
		b = fixed.AppendInt(b, v, 0)
		b = append(b, ',')
	}
	b = append(b, eol...)

	e.buf = b
	return e.write(b)
}

func (e *Engine) write(b []byte) error {
	if err := e.port.PutString(string(b)); err != nil {
		return fmt.Errorf("report write failed: %w", err)
	}
	return nil
}

func appendBasic(b []byte, r level.Result) []byte {
	b = append(b, "%="...)
	b = fixed.AppendInt(b, fixed.Whole(r.LevelPercent), 0)
	b = append(b, '.')
	b = fixed.AppendInt(b, fixed.Tenths(r.LevelPercent), 0)
	b = append(b, "   mm="...)
	b = fixed.AppendInt(b, fixed.Whole(r.LevelMm), 0)
	b = append(b, '.')
	b = fixed.AppendInt(b, fixed.Tenths(r.LevelMm), 0)
	return append(b, eol...)
}

func appendCSVHeader(b []byte) []byte {
	for i := range level.NumSensors {
		n := int32(i)
		b = append(b, "Raw"...)
		b = fixed.AppendInt(b, n, 0)
		b = append(b, ",Diff"...)
		b = fixed.AppendInt(b, n, 0)
		b = append(b, ",Proc"...)
		b = fixed.AppendInt(b, n, 0)
		b = append(b, ',')
	}
	b = append(b, "SenActCnt,"...)
	b = append(b, "Level%, LevelMm"...)
	return append(b, eol...)
}

func appendCSVRow(b []byte, sensors level.Array, r level.Result) []byte {
	for _, s := range sensors {
		b = fixed.AppendInt(b, s.Raw, 0)
		b = append(b, ',')
		b = fixed.AppendInt(b, s.Diff, 0)
		b = append(b, ',')
		b = fixed.AppendInt(b, s.Processed, 0)
		b = append(b, ',')
	}
	b = fixed.AppendInt(b, int32(r.ActiveCount), 0)
	b = append(b, ',')
	return appendLevel(b, r)
}

// appendLevel writes "percent,mm" with one decimal and ends the line.
func appendLevel(b []byte, r level.Result) []byte {
	b = fixed.AppendFixed(b, r.LevelPercent, fixed.Shift, 1)
	b = append(b, ',')
	b = fixed.AppendFixed(b, r.LevelMm, fixed.Shift, 1)
	return append(b, eol...)
}
