package report

import (
	"github.com/itohio/golevel/pkg/fixed"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/state"
)

// NumSamples is the length of the sample label table.
const NumSamples = 20

// SampleLabels are the preset fill heights in mm an operator steps through
// when logging a calibration curve. The last entry is a spare.
var SampleLabels = [NumSamples]int16{-5, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 153, 160, 0}

// ResetNotice is printed when the sample cursor is rewound.
const ResetNotice = "Reset Test Level\r\n"

// SampleLog services pending store and reset requests. A store prints one
// row keyed by the label at the cursor, preceded by a header when the
// cursor is at the start, then advances the cursor up to the last label.
func (e *Engine) SampleLog(st *state.Reporting, src Source) error {
	if st.SampleStoreRequested {
		st.Mode = state.ModeNone

		b := e.buf[:0]
		if st.SampleIndex == 0 {
			b = appendSampleHeader(b)
		}
		idx := clampIndex(st.SampleIndex)
		b = appendSampleRow(b, SampleLabels[idx], src.Sensors(), src.Result())

		st.SampleIndex = clampIndex(idx + 1)
		st.SampleStoreRequested = false

		e.buf = b
		if err := e.write(b); err != nil {
			return err
		}
	}

	if st.SampleResetRequested {
		st.SampleIndex = 0
		st.SampleResetRequested = false
		st.SampleStoreRequested = false
		return e.write([]byte(ResetNotice))
	}
	return nil
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= NumSamples {
		return NumSamples - 1
	}
	return i
}

func appendSampleHeader(b []byte) []byte {
	b = append(b, "PresetMm,"...)
	for i := 1; i < level.NumSensors; i++ {
		b = append(b, "SenDiff"...)
		b = fixed.AppendInt(b, int32(i), 0)
		b = append(b, ',')
	}
	b = append(b, "Level%, LevelMm"...)
	return append(b, eol...)
}

// appendSampleRow writes the label and the processed values of segments
// 1 through NumSensors-1.
func appendSampleRow(b []byte, label int16, sensors level.Array, r level.Result) []byte {
	b = fixed.AppendInt(b, int32(label), 0)
	b = append(b, ',')
	for i := 1; i < level.NumSensors; i++ {
		b = fixed.AppendInt(b, sensors[i].Processed, 0)
		b = append(b, ',')
	}
	return appendLevel(b, r)
}
