// Package monitor talks to a running level loop from the host side: it
// switches the loop to CSV output and turns the rows into Readings.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/golevel/pkg/fixed"
	"github.com/itohio/golevel/pkg/level"
)

// ErrNotRow is returned for console lines that are not CSV data rows.
var ErrNotRow = errors.New("not a csv row")

// rowFields is the number of values in one CSV data row.
const rowFields = 3*level.NumSensors + 3

// Reading is one CSV row. Levels are 24.8 fixed point, rounded down to
// the tenth the loop printed.
type Reading struct {
	Timestamp    time.Time
	Raw          level.Counts
	Diff         level.Counts
	Processed    level.Counts
	ActiveCount  int
	LevelPercent int32
	LevelMm      int32
}

// Percent returns the level in percent.
func (r Reading) Percent() float32 {
	return float32(r.LevelPercent) / fixed.One
}

// Millimetres returns the level in mm.
func (r Reading) Millimetres() float32 {
	return float32(r.LevelMm) / fixed.One
}

// IsHeader reports whether line is the CSV header.
func IsHeader(line string) bool {
	return strings.HasPrefix(line, "Raw0,Diff0,Proc0,")
}

// ParseRow parses one CSV data row.
// Format: raw0,diff0,proc0,...,raw11,diff11,proc11,count,pct.d,mm.d
func ParseRow(line string) (Reading, error) {
	var r Reading

	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != rowFields {
		return r, fmt.Errorf("%w: expected %d comma-separated values, got %d", ErrNotRow, rowFields, len(parts))
	}

	for i := range level.NumSensors {
		vals, err := parseInts(parts[3*i : 3*i+3])
		if err != nil {
			return r, fmt.Errorf("%w: sensor %d: %w", ErrNotRow, i, err)
		}
		r.Raw[i], r.Diff[i], r.Processed[i] = vals[0], vals[1], vals[2]
	}

	tail := parts[3*level.NumSensors:]
	count, err := strconv.Atoi(tail[0])
	if err != nil {
		return r, fmt.Errorf("%w: active count: %w", ErrNotRow, err)
	}
	if count < 0 || count > level.MaxActiveCount {
		return r, fmt.Errorf("%w: active count %d out of range", ErrNotRow, count)
	}
	r.ActiveCount = count

	if r.LevelPercent, err = ParseFixed(tail[1]); err != nil {
		return r, fmt.Errorf("%w: percent: %w", ErrNotRow, err)
	}
	if r.LevelMm, err = ParseFixed(tail[2]); err != nil {
		return r, fmt.Errorf("%w: mm: %w", ErrNotRow, err)
	}
	return r, nil
}

// ParseBasic parses a basic-mode line such as "%=49.9   mm=76.4".
func ParseBasic(line string) (pct, mm int32, err error) {
	line = strings.TrimSpace(line)
	p, m, ok := strings.Cut(line, "mm=")
	if !ok || !strings.HasPrefix(p, "%=") {
		return 0, 0, fmt.Errorf("invalid basic line %q", line)
	}
	if pct, err = ParseFixed(strings.TrimSpace(p[2:])); err != nil {
		return 0, 0, err
	}
	if mm, err = ParseFixed(m); err != nil {
		return 0, 0, err
	}
	return pct, mm, nil
}

// ParseFixed parses a non-negative "w.d" decimal into 24.8 fixed point.
func ParseFixed(s string) (int32, error) {
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconv.ParseInt(whole, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	if w < 0 || w > 1<<23-1 {
		return 0, fmt.Errorf("value %q out of range", s)
	}

	var f int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		d, err := strconv.ParseUint(frac, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", s, err)
		}
		scale := int64(1)
		for range len(frac) {
			scale *= 10
		}
		f = (int64(d)*fixed.One + scale - 1) / scale
	}
	return int32(w<<fixed.Shift + f), nil
}

func parseInts(parts []string) ([3]int32, error) {
	var out [3]int32
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return out, err
		}
		out[i] = int32(v)
	}
	return out, nil
}
