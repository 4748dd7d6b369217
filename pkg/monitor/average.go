package monitor

import "github.com/itohio/golevel/pkg/level"

// Smoother is a stage that transforms a readings channel.
type Smoother func(in <-chan Reading) <-chan Reading

// NewMovingAverage creates a stage that emits, for every input reading, the
// average of the last windowSize readings. Counts and levels are averaged
// with rounding to nearest; the timestamp and raw counts are the latest.
func NewMovingAverage(windowSize int, bufSize int) Smoother {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan Reading) <-chan Reading {
		out := make(chan Reading, bufSize)

		go func() {
			defer close(out)

			buffer := make([]Reading, 0, windowSize+1)
			for r := range in {
				buffer = append(buffer, r)
				if len(buffer) > windowSize {
					buffer = buffer[1:] // Remove oldest
				}
				out <- averageReadings(buffer)
			}
		}()

		return out
	}
}

// averageReadings averages a window of readings.
func averageReadings(readings []Reading) Reading {
	if len(readings) == 0 {
		return Reading{}
	}

	last := readings[len(readings)-1]
	avg := Reading{
		Timestamp: last.Timestamp,
		Raw:       last.Raw,
	}

	n := int64(len(readings))
	var diff, proc [level.NumSensors]int64
	var count, pct, mm int64
	for _, r := range readings {
		for i := range diff {
			diff[i] += int64(r.Diff[i])
			proc[i] += int64(r.Processed[i])
		}
		count += int64(r.ActiveCount)
		pct += int64(r.LevelPercent)
		mm += int64(r.LevelMm)
	}

	for i := range diff {
		avg.Diff[i] = int32(roundDiv(diff[i], n))
		avg.Processed[i] = int32(roundDiv(proc[i], n))
	}
	avg.ActiveCount = int(roundDiv(count, n))
	avg.LevelPercent = int32(roundDiv(pct, n))
	avg.LevelMm = int32(roundDiv(mm, n))
	return avg
}

// roundDiv divides rounding half away from zero.
func roundDiv(sum, n int64) int64 {
	if sum < 0 {
		return -((-sum + n/2) / n)
	}
	return (sum + n/2) / n
}
