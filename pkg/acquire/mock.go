//go:build !tinygo

package acquire

import (
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/level"
)

// Edge segments are half height, so they see roughly half the signal of an
// interior segment. The default 8.8 scales (0x1D0, 0x1C0) undo this.
const edgeArea = 0.55

// Mock simulates a tank whose level sweeps up and down over FillPeriod, or
// sits at a fixed level after SetLevel.
type Mock struct {
	cfg config.MockConfig
	now func() time.Time

	mu       sync.Mutex
	start    time.Time
	fixed    bool
	levelMm  float32
	scanning bool
	doneAt   time.Time
	scans    int
	raw      level.Counts
}

// Ensure Mock implements Scanner.
var _ Scanner = (*Mock)(nil)

// NewMock creates a simulated sensor array. A nil config uses defaults.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	m := &Mock{
		cfg: *cfg,
		now: time.Now,
	}
	m.start = m.now()
	return m
}

// SetLevel pins the simulated fluid height in mm.
func (m *Mock) SetLevel(mm float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed = true
	m.levelMm = mm
}

// Level returns the simulated fluid height at the current time.
func (m *Mock) Level() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levelAt(m.now())
}

// Scan starts a simulated scan lasting ScanTime.
func (m *Mock) Scan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = true
	m.doneAt = m.now().Add(m.cfg.ScanTime)
	return nil
}

// Busy reports whether the current scan is still running.
func (m *Mock) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning && m.now().Before(m.doneAt)
}

// Process samples the tank at the current level.
func (m *Mock) Process() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scanning {
		return ErrNoScan
	}
	m.scanning = false
	m.scans++

	h := m.levelAt(m.now())
	for i := range m.raw {
		m.raw[i] = m.countFor(i, h)
	}
	return nil
}

// Raw returns the count of sensor i from the last processed scan.
func (m *Mock) Raw(i int) (int32, error) {
	if err := checkIndex(i); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw[i], nil
}

// levelAt returns the height at t: a triangle wave between empty and full.
func (m *Mock) levelAt(t time.Time) float32 {
	maxMm := float32(m.cfg.MaxHeightMm)
	if m.fixed {
		return math32.Max(0, math32.Min(m.levelMm, maxMm))
	}
	if m.cfg.FillPeriod <= 0 {
		return 0
	}

	phase := float32(t.Sub(m.start)%m.cfg.FillPeriod) / float32(m.cfg.FillPeriod)
	return maxMm * (1 - math32.Abs(2*phase-1))
}

// countFor models sensor i at height h: its own baseline plus Span counts
// scaled by how much of the segment is covered.
func (m *Mock) countFor(i int, h float32) int32 {
	// Positions in half-segment units: sensor 0 spans [0,1), sensor i spans
	// [2i-1, 2i+1), the top sensor spans [2N-3, 2N-2).
	units := h / float32(m.cfg.MaxHeightMm) * level.MaxActiveCount
	lo, hi := float32(2*i-1), float32(2*i+1)
	area := float32(1)
	if i == 0 {
		lo, hi, area = 0, 1, edgeArea
	}
	if i == level.NumSensors-1 {
		hi, area = float32(level.MaxActiveCount), edgeArea
	}
	cover := math32.Max(0, math32.Min(1, (units-lo)/(hi-lo)))

	noise := float32(m.cfg.Noise) * math32.Sin(float32(m.scans)*0.7+float32(i)*1.3)
	v := float32(m.cfg.Baseline) + float32(m.cfg.BaselineStep*int32(i)) +
		float32(m.cfg.Span)*cover*area + noise
	return int32(math32.Floor(v + 0.5))
}
