package level

import (
	"errors"
	"fmt"
)

// NumSensors is the number of sensor segments in the array, bottom to top.
const NumSensors = 12

// ErrSensorIndex is returned for sensor positions outside [0, NumSensors).
var ErrSensorIndex = errors.New("sensor index out of range")

// Sensor holds the per-segment values of one pipeline iteration.
type Sensor struct {
	Raw       int32 // Latest acquired count
	Diff      int32 // Raw minus calibration offset, never negative after Process
	Processed int32 // Diff scaled by Scale, 24.8
	Scale     int16 // Normalization multiplier, 8.8 (0x0100 = 1.0)
	Threshold int32 // Segment is submerged when Processed > Threshold/2
	Offset    int32 // Empty-container baseline
}

// Array is the sensor array indexed by physical position.
type Array [NumSensors]Sensor

// Offsets is the calibration vector, one baseline per sensor.
type Offsets [NumSensors]int32

// Counts is one acquired raw-count vector.
type Counts [NumSensors]int32

// Result is the level derived from one iteration. LevelMm and LevelPercent
// are 24.8 fixed point.
type Result struct {
	ActiveCount  int
	LevelMm      int32
	LevelPercent int32
}

// Sensor returns the segment at position i.
func (a *Array) Sensor(i int) (Sensor, error) {
	if err := checkIndex(i); err != nil {
		return Sensor{}, err
	}
	return a[i], nil
}

// Diffs returns the current diff counts of all segments.
func (a *Array) Diffs() Counts {
	var out Counts
	for i := range a {
		out[i] = a[i].Diff
	}
	return out
}

func checkIndex(i int) error {
	if i < 0 || i >= NumSensors {
		return fmt.Errorf("%w: %d", ErrSensorIndex, i)
	}
	return nil
}
