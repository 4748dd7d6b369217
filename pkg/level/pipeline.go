// Package level turns raw capacitance counts into a submerged segment count
// and a fluid height in 24.8 fixed point.
//
// The arithmetic deliberately mirrors integer firmware: 8.8 scales, 24.8
// results, truncating shifts and integer division. Intermediate products are
// computed in 64 bits and saturated into int32, so counts or scales far
// outside the design range clip instead of wrapping.
package level

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultMaxHeightMm is the height of the full sensor array.
	DefaultMaxHeightMm = 153
	// DefaultThreshold gives the firmware's submersion limit of 71 counts.
	DefaultThreshold = 142
	// UnityScale is 1.0 in 8.8.
	UnityScale = 0x0100
)

// ErrInvalidParams is returned by New for unusable parameters.
var ErrInvalidParams = errors.New("invalid level parameters")

// Params configures a Pipeline.
type Params struct {
	MaxHeightMm int32
	Scales      [NumSensors]int16 // 8.8
	Thresholds  [NumSensors]int32
}

// DefaultParams returns the tuning of the reference 12-segment board.
// The edge segments are half height and need a larger gain.
func DefaultParams() Params {
	p := Params{MaxHeightMm: DefaultMaxHeightMm}
	for i := range NumSensors {
		p.Scales[i] = UnityScale
		p.Thresholds[i] = DefaultThreshold
	}
	p.Scales[0] = 0x01D0
	p.Scales[NumSensors-1] = 0x01C0
	return p
}

// Validate reports whether the parameters can drive a pipeline.
func (p Params) Validate() error {
	if p.MaxHeightMm <= 0 {
		return fmt.Errorf("%w: max height %d mm", ErrInvalidParams, p.MaxHeightMm)
	}
	// Keep MaxHeightMm<<8 and the percent product inside int32.
	if p.MaxHeightMm > math.MaxInt32>>16 {
		return fmt.Errorf("%w: max height %d mm too large", ErrInvalidParams, p.MaxHeightMm)
	}
	for i := range NumSensors {
		if p.Scales[i] <= 0 {
			return fmt.Errorf("%w: sensor %d scale %d", ErrInvalidParams, i, p.Scales[i])
		}
		if p.Thresholds[i] < 0 {
			return fmt.Errorf("%w: sensor %d threshold %d", ErrInvalidParams, i, p.Thresholds[i])
		}
	}
	return nil
}

// SensorHeight returns the height of one full segment in 24.8.
func (p Params) SensorHeight() int32 {
	return (p.MaxHeightMm * 256) / (NumSensors - 1)
}

// Pipeline owns the sensor array and the latest result. It is not safe for
// concurrent use; the control loop is its only caller.
type Pipeline struct {
	params       Params
	sensorHeight int32
	sensors      Array
	result       Result
}

// New creates a pipeline with zero calibration offsets.
func New(p Params) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	pl := &Pipeline{
		params:       p,
		sensorHeight: p.SensorHeight(),
	}
	for i := range pl.sensors {
		pl.sensors[i].Scale = p.Scales[i]
		pl.sensors[i].Threshold = p.Thresholds[i]
	}
	return pl, nil
}

// Params returns the pipeline configuration.
func (pl *Pipeline) Params() Params {
	return pl.params
}

// SensorHeight returns the precomputed 24.8 segment height.
func (pl *Pipeline) SensorHeight() int32 {
	return pl.sensorHeight
}

// Load stores a fresh raw-count vector. Diff holds the raw count until
// Process removes the offsets, which is the value a calibration captures.
func (pl *Pipeline) Load(raw Counts) {
	for i := range pl.sensors {
		pl.sensors[i].Raw = raw[i]
		pl.sensors[i].Diff = raw[i]
	}
}

// Process removes offsets, scales, counts submerged segments and derives
// the level from the loaded counts.
func (pl *Pipeline) Process() Result {
	count := 0
	for i := range pl.sensors {
		s := &pl.sensors[i]
		s.Diff = saturate(max(0, int64(s.Diff)-int64(s.Offset)))
		s.Processed = saturate((int64(s.Diff) * int64(s.Scale)) >> 8)
		if s.Processed > s.Threshold/2 {
			count += Weight(i)
		}
	}

	mm, pct := Level(count, pl.sensorHeight, pl.params.MaxHeightMm)
	pl.result = Result{
		ActiveCount:  count,
		LevelMm:      mm,
		LevelPercent: pct,
	}
	return pl.result
}

// Update is Load followed by Process.
func (pl *Pipeline) Update(raw Counts) Result {
	pl.Load(raw)
	return pl.Process()
}

// Result returns the result of the last Process.
func (pl *Pipeline) Result() Result {
	return pl.result
}

// Sensors returns a copy of the sensor array.
func (pl *Pipeline) Sensors() Array {
	return pl.sensors
}

// Sensor returns the segment at position i.
func (pl *Pipeline) Sensor(i int) (Sensor, error) {
	return pl.sensors.Sensor(i)
}

// Diffs returns the current diff counts.
func (pl *Pipeline) Diffs() Counts {
	return pl.sensors.Diffs()
}

// Offsets returns the calibration offsets in use.
func (pl *Pipeline) Offsets() Offsets {
	var out Offsets
	for i := range pl.sensors {
		out[i] = pl.sensors[i].Offset
	}
	return out
}

// SetOffsets replaces the calibration offsets.
func (pl *Pipeline) SetOffsets(o Offsets) {
	for i := range pl.sensors {
		pl.sensors[i].Offset = o[i]
	}
}

// Weight returns the contribution of an active segment to the active count.
// The first and last segments are half height.
func Weight(i int) int {
	if i == 0 || i == NumSensors-1 {
		return 1
	}
	return 2
}

// MaxActiveCount is the active count with every segment submerged.
const MaxActiveCount = 2*NumSensors - 2

// Level converts an active count into height and percent, both 24.8.
// A height within a quarter segment of full scale is snapped to full scale
// to absorb the truncation in sensorHeight. The percent keeps the 8
// fractional bits of its input rather than adding precision.
func Level(activeCount int, sensorHeight, maxHeightMm int32) (mm, pct int32) {
	full := maxHeightMm << 8

	mm = int32(activeCount) * (sensorHeight >> 1)
	if mm > full-(sensorHeight>>2) {
		mm = full
	}
	pct = (mm * 100) / maxHeightMm
	return mm, pct
}

func saturate(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
