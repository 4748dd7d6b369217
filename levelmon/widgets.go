package main

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/chewxy/math32"

	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/monitor"
	"github.com/itohio/golevel/pkg/trend"
)

var (
	activeColor   = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	inactiveColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// segmentFraction maps a processed value onto 0..1 of its threshold. A
// segment counts as submerged above one half.
func segmentFraction(processed, threshold int32) float32 {
	if threshold <= 0 {
		return 0
	}
	return math32.Max(0, math32.Min(1, float32(processed)/float32(threshold)))
}

// segmentActive mirrors the loop's submersion test.
func segmentActive(processed, threshold int32) bool {
	return processed > threshold/2
}

// levelView shows the overall level and one bar per segment, top segment
// first so the column reads like the tank.
type levelView struct {
	thresholds [level.NumSensors]int32
	maxHeight  float32

	levelText *canvas.Text
	detail    *widget.Label
	overall   *widget.ProgressBar

	bars   [level.NumSensors]*widget.ProgressBar
	labels [level.NumSensors]*canvas.Text
	trend  *trend.Widget

	content fyne.CanvasObject
}

func newLevelView(cfg *config.Config) *levelView {
	v := &levelView{maxHeight: float32(cfg.Level.MaxHeightMm)}
	params, err := cfg.LevelParams()
	if err != nil {
		params = level.DefaultParams()
	}
	v.thresholds = params.Thresholds

	v.levelText = canvas.NewText("--.- mm", theme.Color(theme.ColorNameForeground))
	v.levelText.TextSize = 42
	v.levelText.TextStyle = fyne.TextStyle{Bold: true}
	v.levelText.Alignment = fyne.TextAlignCenter

	v.detail = widget.NewLabel("waiting for data")
	v.detail.Alignment = fyne.TextAlignCenter

	v.overall = widget.NewProgressBar()
	v.overall.Max = 100
	v.overall.TextFormatter = func() string {
		return fmt.Sprintf("%.1f %%", v.overall.Value)
	}

	rows := container.NewVBox()
	for row := range level.NumSensors {
		i := level.NumSensors - 1 - row
		v.labels[i] = canvas.NewText(fmt.Sprintf("S%02d", i), inactiveColor)
		v.labels[i].TextStyle = fyne.TextStyle{Monospace: true}
		v.bars[i] = widget.NewProgressBar()
		v.bars[i].TextFormatter = func() string { return "" }
		rows.Add(container.NewBorder(nil, nil, v.labels[i], nil, v.bars[i]))
	}

	header := container.NewVBox(v.levelText, v.detail, v.overall)
	v.trend = trend.New(trend.NewHistory(trend.DefaultWindow), v.maxHeight)
	v.content = container.NewBorder(header, v.trend, nil, nil, container.NewVScroll(rows))
	return v
}

// CanvasObject returns the view's root object.
func (v *levelView) CanvasObject() fyne.CanvasObject {
	return v.content
}

// Update refreshes the view. It must run on the main thread.
func (v *levelView) Update(r monitor.Reading) {
	mm := r.Millimetres()
	v.levelText.Text = fmt.Sprintf("%.1f mm", mm)
	v.levelText.Refresh()
	v.detail.SetText(fmt.Sprintf("%d of %d half-segments, %.0f mm full scale, %s",
		r.ActiveCount, level.MaxActiveCount, v.maxHeight, r.Timestamp.Format("15:04:05")))
	v.overall.SetValue(float64(r.Percent()))
	v.trend.Add(trend.Point{Timestamp: r.Timestamp, LevelMm: mm})

	for i := range level.NumSensors {
		v.bars[i].SetValue(float64(segmentFraction(r.Processed[i], v.thresholds[i])))
		c := inactiveColor
		if segmentActive(r.Processed[i], v.thresholds[i]) {
			c = activeColor
		}
		if v.labels[i].Color != c {
			v.labels[i].Color = c
			v.labels[i].Refresh()
		}
	}
}
