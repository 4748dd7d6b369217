// Package trend keeps a sliding window of level readings and draws it as
// a scope-style plot.
package trend

import (
	"sync"
	"time"
)

// DefaultWindow is the span of history kept and shown.
const DefaultWindow = 60 * time.Second

// Point is one level reading.
type Point struct {
	Timestamp time.Time
	LevelMm   float32
}

// History holds the points that fall inside the window ending at the most
// recent point. It is safe for concurrent use.
type History struct {
	mu     sync.RWMutex
	window time.Duration
	points []Point
}

// NewHistory creates an empty history. A non-positive window uses
// DefaultWindow.
func NewHistory(window time.Duration) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{window: window}
}

// Window returns the span of history kept.
func (h *History) Window() time.Duration {
	return h.window
}

// Add appends p and drops points older than the window. Points that go
// back in time restart the history.
func (h *History) Add(p Point) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.points); n > 0 && p.Timestamp.Before(h.points[n-1].Timestamp) {
		h.points = h.points[:0]
	}
	h.points = append(h.points, p)

	cutoff := p.Timestamp.Add(-h.window)
	drop := 0
	for drop < len(h.points) && h.points[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.points = append(h.points[:0], h.points[drop:]...)
	}
}

// Len returns the number of points held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Points copies the held points into dst, decimated to at most maxPoints.
// dst is reused when it has the capacity.
func (h *History) Points(dst []Point, maxPoints int) []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Downsample(dst, h.points, maxPoints)
}

// Clear drops all points.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = h.points[:0]
}

// Downsample decimates points to at most maxPoints, always keeping the
// first and the last one. dst is reused when it has the capacity.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	if len(points) <= maxPoints || maxPoints < 2 {
		if cap(dst) < len(points) {
			dst = make([]Point, len(points))
		}
		dst = dst[:len(points)]
		copy(dst, points)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}

	// Step size for decimation
	step := float64(len(points)-1) / float64(maxPoints-1)
	for i := range maxPoints - 1 {
		dst = append(dst, points[int(float64(i)*step)])
	}
	return append(dst, points[len(points)-1])
}
