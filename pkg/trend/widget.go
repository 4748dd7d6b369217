package trend

import (
	"image/color"
	"strconv"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

var (
	backgroundColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	gridColor       = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor      = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	levelColor      = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	fullColor       = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
)

// Widget plots the level history against a fixed 0..full-scale axis.
type Widget struct {
	widget.BaseWidget

	history   *History
	maxHeight float32

	// Display buffer (reused for downsampling)
	mu      sync.Mutex
	display []Point

	maxDisplayPoints int
}

// New creates a plot of history scaled to maxHeightMm.
func New(history *History, maxHeightMm float32) *Widget {
	if maxHeightMm <= 0 {
		maxHeightMm = 1
	}
	w := &Widget{
		history:          history,
		maxHeight:        maxHeightMm,
		display:          make([]Point, 0, 500),
		maxDisplayPoints: 500, // Limit points for efficient rendering
	}
	w.ExtendBaseWidget(w)
	return w
}

// Add records p and redraws. It must run on the main thread.
func (w *Widget) Add(p Point) {
	w.history.Add(p)
	w.Refresh()
}

// snapshot returns the points to draw and the time axis they span.
func (w *Widget) snapshot() ([]Point, time.Time, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.display = w.history.Points(w.display, w.maxDisplayPoints)

	if len(w.display) == 0 {
		now := time.Now()
		return nil, now.Add(-w.history.Window()), now
	}
	xMax := w.display[len(w.display)-1].Timestamp
	return append([]Point(nil), w.display...), xMax.Add(-w.history.Window()), xMax
}

// CreateRenderer creates the widget renderer.
func (w *Widget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(backgroundColor)
	return &renderer{
		trend:   w,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}

type renderer struct {
	trend   *Widget
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *renderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 160)
}

// Layout arranges the widget components.
func (r *renderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.Refresh()
	}
}

// Refresh rebuilds the plot.
func (r *renderer) Refresh() {
	points, xMin, xMax := r.trend.snapshot()

	size := r.trend.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep background)
	r.objects = r.objects[:1]

	const (
		marginLeft   = float32(50)
		marginRight  = float32(15)
		marginTop    = float32(15)
		marginBottom = float32(30)
	)
	plot := plotArea{
		x:      marginLeft,
		y:      marginTop,
		width:  size.Width - marginLeft - marginRight,
		height: size.Height - marginTop - marginBottom,
		xMin:   xMin,
		xMax:   xMax,
		yMax:   r.trend.maxHeight,
	}
	if plot.width <= 0 || plot.height <= 0 {
		return
	}

	r.drawGrid(plot)
	r.drawLevel(plot, points)
	canvas.Refresh(r.trend)
}

// plotArea maps level points onto the drawing area.
type plotArea struct {
	x, y, width, height float32
	xMin, xMax          time.Time
	yMax                float32
}

func (p plotArea) pos(pt Point) fyne.Position {
	span := p.xMax.Sub(p.xMin).Seconds()
	fx := float32(0)
	if span > 0 {
		fx = float32(pt.Timestamp.Sub(p.xMin).Seconds() / span)
	}
	fy := pt.LevelMm / p.yMax
	fx = min(max(fx, 0), 1)
	fy = min(max(fy, 0), 1)
	return fyne.NewPos(p.x+fx*p.width, p.y+p.height-fy*p.height)
}

// drawGrid draws the level and time grid.
func (r *renderer) drawGrid(p plotArea) {
	// Horizontal lines every quarter of full scale
	const numHLines = 4
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.height/numHLines
		c := gridColor
		if i == 0 {
			c = fullColor
		}
		r.line(c, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.width, y))

		mm := p.yMax - float32(i)*p.yMax/numHLines
		r.text(formatMm(mm), fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	// Vertical lines, labelled in seconds before the newest point
	const numVLines = 6
	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.width/numVLines
		r.line(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.height))

		ago := span - time.Duration(i)*span/numVLines
		r.text(formatAgo(ago), fyne.TextAlignCenter, fyne.NewPos(x-15, p.y+p.height+5))
	}
}

// drawLevel draws the level curve.
func (r *renderer) drawLevel(p plotArea, points []Point) {
	for i := 1; i < len(points); i++ {
		r.line(levelColor, 2, p.pos(points[i-1]), p.pos(points[i]))
	}
}

func (r *renderer) line(c color.Color, width float32, from, to fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = from
	l.Position2 = to
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *renderer) text(s string, align fyne.TextAlign, pos fyne.Position) {
	t := canvas.NewText(s, labelColor)
	t.TextSize = 10
	t.Alignment = align
	t.Move(pos)
	r.objects = append(r.objects, t)
}

// Objects returns all canvas objects for rendering.
func (r *renderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *renderer) Destroy() {}

func formatMm(mm float32) string {
	return strconv.FormatFloat(float64(mm), 'f', 0, 32) + "mm"
}

func formatAgo(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	return "-" + strconv.FormatFloat(d.Seconds(), 'f', 0, 64) + "s"
}
