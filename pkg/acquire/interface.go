// Package acquire is the boundary to whatever produces raw capacitance
// counts: a simulated tank, a sensor board on a serial line, or the
// on-chip sensing block in firmware.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/golevel/pkg/level"
)

var (
	// ErrNoScan is returned by Process when no scan was started.
	ErrNoScan = errors.New("no scan in progress")
	// ErrNotConnected is returned by sources that are not attached.
	ErrNotConnected = errors.New("not connected")
)

// DefaultPollInterval is how often Wait checks Busy.
const DefaultPollInterval = time.Millisecond

// Scanner produces one raw-count vector per scan. Scan starts a scan, Busy
// is a non-blocking completion check and Process finalizes the completed
// scan so Raw returns its counts.
type Scanner interface {
	Scan() error
	Busy() bool
	Process() error
	Raw(i int) (int32, error)
}

// Wait polls s until its scan completes or ctx is done.
func Wait(ctx context.Context, s Scanner, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if !s.Busy() {
		return nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.Busy() {
				return nil
			}
		}
	}
}

// ReadAll copies every sensor's raw count out of s.
func ReadAll(s Scanner) (level.Counts, error) {
	var out level.Counts
	for i := range out {
		v, err := s.Raw(i)
		if err != nil {
			return out, fmt.Errorf("failed to read sensor %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func checkIndex(i int) error {
	if i < 0 || i >= level.NumSensors {
		return fmt.Errorf("%w: %d", level.ErrSensorIndex, i)
	}
	return nil
}
