// Package state holds the reporting state shared by the command interpreter
// and the reporting engine.
package state

import "fmt"

// Mode selects what the main reporter prints each iteration.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeBasic
	ModeCSVInit
	ModeCSV
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeBasic:
		return "basic"
	case ModeCSVInit:
		return "csvinit"
	case ModeCSV:
		return "csv"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode maps a configuration name to a Mode. "csv" starts with the
// header, as the csv command does.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "none", "stop":
		return ModeNone, nil
	case "basic":
		return ModeBasic, nil
	case "csv", "csvinit":
		return ModeCSVInit, nil
	default:
		return ModeNone, fmt.Errorf("unknown output mode %q", s)
	}
}

// Reporting is mutated by commands and read by the reporter within the
// same loop iteration.
type Reporting struct {
	Mode                 Mode
	CalibrationRequested bool
	SampleStoreRequested bool
	SampleResetRequested bool
	SampleIndex          int // Cursor into the sample label table
}
