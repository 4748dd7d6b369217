package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func reading(mm, pct int32, count int, proc int32) Reading {
	r := Reading{
		Timestamp:    time.Unix(int64(mm), 0),
		ActiveCount:  count,
		LevelMm:      mm,
		LevelPercent: pct,
	}
	for i := range r.Processed {
		r.Processed[i] = proc
		r.Diff[i] = proc
		r.Raw[i] = 800 + proc
	}
	return r
}

func TestAverageReadings(t *testing.T) {
	tests := []struct {
		name string
		in   []Reading
		want Reading
	}{
		{
			name: "empty",
			in:   nil,
			want: Reading{},
		},
		{
			name: "single",
			in:   []Reading{reading(100, 50, 3, 10)},
			want: reading(100, 50, 3, 10),
		},
		{
			name: "rounds to nearest",
			in:   []Reading{reading(100, 50, 3, 10), reading(101, 51, 4, 11)},
			want: func() Reading {
				r := reading(101, 51, 4, 11) // latest timestamp and raw
				r.LevelMm, r.LevelPercent, r.ActiveCount = 101, 51, 4
				for i := range r.Diff {
					r.Diff[i], r.Processed[i] = 11, 11
				}
				return r
			}(),
		},
		{
			name: "three",
			in:   []Reading{reading(0, 0, 0, 0), reading(30, 30, 3, 30), reading(60, 60, 6, 60)},
			want: func() Reading {
				r := reading(60, 60, 6, 60)
				r.LevelMm, r.LevelPercent, r.ActiveCount = 30, 30, 3
				for i := range r.Diff {
					r.Diff[i], r.Processed[i] = 30, 30
				}
				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, averageReadings(tt.in))
		})
	}
}

func TestRoundDiv(t *testing.T) {
	assert.Equal(t, int64(2), roundDiv(3, 2))
	assert.Equal(t, int64(-2), roundDiv(-3, 2))
	assert.Equal(t, int64(1), roundDiv(4, 3))
	assert.Equal(t, int64(0), roundDiv(0, 5))
}

func TestNewMovingAverage(t *testing.T) {
	in := make(chan Reading)
	out := NewMovingAverage(2, 10)(in)

	go func() {
		in <- reading(0, 0, 0, 0)
		in <- reading(100, 100, 10, 100)
		in <- reading(200, 200, 20, 200)
		close(in)
	}()

	var mms []int32
	for r := range out {
		mms = append(mms, r.LevelMm)
	}
	assert.Equal(t, []int32{0, 50, 150}, mms)
}

func TestNewMovingAverage_InvalidWindow(t *testing.T) {
	in := make(chan Reading, 2)
	in <- reading(10, 0, 0, 0)
	in <- reading(20, 0, 0, 0)
	close(in)

	var mms []int32
	for r := range NewMovingAverage(0, 0)(in) {
		mms = append(mms, r.LevelMm)
	}
	assert.Equal(t, []int32{10, 20}, mms)
}
