package trend

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
)

// Background plus five level and seven time grid lines, each labelled.
const gridObjects = 1 + 2*5 + 2*7

func TestWidget_Render(t *testing.T) {
	test.NewTempApp(t)

	w := New(NewHistory(10*time.Second), 153)
	r := test.WidgetRenderer(w)
	w.Resize(fyne.NewSize(400, 200))
	r.Refresh()
	assert.Len(t, r.Objects(), gridObjects)

	start := time.Unix(1000, 0)
	for i := range 3 {
		w.Add(Point{Timestamp: start.Add(time.Duration(i) * time.Second), LevelMm: float32(i * 10)})
	}
	assert.Len(t, r.Objects(), gridObjects+2)
}

func TestPlotArea_Pos(t *testing.T) {
	start := time.Unix(1000, 0)
	p := plotArea{x: 10, y: 20, width: 100, height: 50, xMin: start, xMax: start.Add(10 * time.Second), yMax: 100}

	tests := []struct {
		name string
		pt   Point
		want fyne.Position
	}{
		{"origin", Point{Timestamp: start, LevelMm: 0}, fyne.NewPos(10, 70)},
		{"full at newest", Point{Timestamp: start.Add(10 * time.Second), LevelMm: 100}, fyne.NewPos(110, 20)},
		{"half", Point{Timestamp: start.Add(5 * time.Second), LevelMm: 50}, fyne.NewPos(60, 45)},
		{"clamped", Point{Timestamp: start.Add(-time.Second), LevelMm: 150}, fyne.NewPos(10, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.pos(tt.pt)
			assert.InDelta(t, tt.want.X, got.X, 1e-3)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-3)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "153mm", formatMm(153))
	assert.Equal(t, "now", formatAgo(0))
	assert.Equal(t, "-10s", formatAgo(10*time.Second))
}
