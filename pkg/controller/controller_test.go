package controller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/golevel/pkg/acquire"
	"github.com/itohio/golevel/pkg/calibration"
	"github.com/itohio/golevel/pkg/command"
	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/report"
	"github.com/itohio/golevel/pkg/state"
	"github.com/itohio/golevel/pkg/transport"
)

const baselineCal = "EmptyCal=800,807,814,821,828,835,842,849,856,863,870,877,\r\n"

type rig struct {
	c     *Controller
	port  *transport.Buffer
	mock  *acquire.Mock
	bytes *calibration.MemStore
}

func newRig(t *testing.T, mode state.Mode) *rig {
	t.Helper()
	cfg := config.Default().Mock
	return newRigWith(t, mode, cfg)
}

func newRigWith(t *testing.T, mode state.Mode, cfg config.MockConfig) *rig {
	t.Helper()

	cfg.Noise = 0
	cfg.ScanTime = 0
	mock := acquire.NewMock(&cfg)
	mock.SetLevel(0)

	bs := calibration.NewMemStore(calibration.PartitionSize)
	store, err := calibration.New(bs, nil)
	require.NoError(t, err)

	port := transport.NewBuffer()
	c, err := New(Options{
		Port:    port,
		Scanner: mock,
		Store:   store,
		Params:  level.DefaultParams(),
		Mode:    mode,
		Delay:   -1,
	})
	require.NoError(t, err)

	return &rig{c: c, port: port, mock: mock, bytes: bs}
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	require.NoError(t, r.c.Start(context.Background()))
	r.port.Take()
}

func (r *rig) step(t *testing.T) string {
	t.Helper()
	require.NoError(t, r.c.Step(context.Background()))
	return r.port.Take()
}

func TestNew_MissingCollaborators(t *testing.T) {
	store, err := calibration.New(calibration.NewMemStore(calibration.PartitionSize), nil)
	require.NoError(t, err)
	port := transport.NewBuffer()
	mock := acquire.NewMock(nil)

	tests := []struct {
		name string
		opts Options
	}{
		{"no port", Options{Scanner: mock, Store: store, Params: level.DefaultParams()}},
		{"no scanner", Options{Port: port, Store: store, Params: level.DefaultParams()}},
		{"no store", Options{Port: port, Scanner: mock, Params: level.DefaultParams()}},
		{"bad params", Options{Port: port, Scanner: mock, Store: store}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestStart_BootSequence(t *testing.T) {
	r := newRig(t, state.ModeBasic)

	require.NoError(t, r.c.Start(context.Background()))

	want := Banner + command.Help + "EmptyCal=0,0,0,0,0,0,0,0,0,0,0,0,\r\n"
	assert.Equal(t, want, r.port.Output())
	assert.Equal(t, state.ModeBasic, r.c.State().Mode)
}

func TestStart_RestoresStoredOffsets(t *testing.T) {
	r := newRig(t, state.ModeBasic)
	img := calibration.Encode(level.Offsets{800, 807, 814, 821, 828, 835, 842, 849, 856, 863, 870, 877})
	require.NoError(t, r.bytes.Write(0, img[:]))

	require.NoError(t, r.c.Start(context.Background()))
	assert.True(t, strings.HasSuffix(r.port.Take(), baselineCal))

	assert.Equal(t, "%=0.0   mm=0.0\r\n", r.step(t))
	assert.Equal(t, 0, r.c.Result().ActiveCount)
}

func TestStep_CalibrateThenMeasure(t *testing.T) {
	r := newRig(t, state.ModeBasic)
	r.start(t)

	// Uncalibrated, every segment reads as submerged.
	r.port.Feed("cal\r")
	assert.Equal(t, "%=100.0   mm=153.0\r\ncal", r.step(t))
	assert.True(t, r.c.State().CalibrationRequested)

	assert.Equal(t, baselineCal+"%=0.0   mm=0.0\r\n", r.step(t))
	assert.False(t, r.c.State().CalibrationRequested)
	assert.Equal(t, level.Offsets{800, 807, 814, 821, 828, 835, 842, 849, 856, 863, 870, 877}, r.c.Offsets())

	// The capture was persisted.
	assert.Equal(t, calibration.Encode(r.c.Offsets()), [calibration.PartitionSize]byte(r.bytes.Bytes()))

	r.mock.SetLevel(76.5)
	assert.Equal(t, "%=49.9   mm=76.4\r\n", r.step(t))
	assert.Equal(t, 11, r.c.Result().ActiveCount)

	r.mock.SetLevel(153)
	assert.Equal(t, "%=100.0   mm=153.0\r\n", r.step(t))
}

func TestStep_CSVAndSampleLog(t *testing.T) {
	r := newRig(t, state.ModeNone)
	r.start(t)

	r.port.Feed("csv\r")
	assert.Equal(t, "csv", r.step(t))
	assert.Equal(t, state.ModeCSVInit, r.c.State().Mode)

	header := r.step(t)
	assert.True(t, strings.HasPrefix(header, "Raw0,Diff0,Proc0,"))
	assert.Equal(t, state.ModeCSV, r.c.State().Mode)

	row := r.step(t)
	assert.True(t, strings.HasPrefix(row, "800,800,1450,807,807,807,"), row)
	assert.True(t, strings.HasSuffix(row, ",22,100.0,153.0\r\n"), row)

	// An empty line stores a sample and stops the main output.
	r.port.Feed("\r")
	out := r.step(t)
	assert.True(t, strings.HasPrefix(out, "800,"), "row is printed before the command runs")
	assert.Contains(t, out, "PresetMm,SenDiff1,")
	assert.True(t, strings.HasSuffix(out, "-5,807,814,821,828,835,842,849,856,863,870,877,100.0,153.0\r\n"), out)
	assert.Equal(t, state.ModeNone, r.c.State().Mode)
	assert.Equal(t, 1, r.c.State().SampleIndex)

	r.port.Feed("reset\r")
	assert.Equal(t, "reset"+report.ResetNotice, r.step(t))
	assert.Equal(t, 0, r.c.State().SampleIndex)

	assert.Empty(t, r.step(t))
}

func TestStep_UnknownCommand(t *testing.T) {
	r := newRig(t, state.ModeNone)
	r.start(t)

	r.port.Feed("bogus\n")
	assert.Equal(t, "bogus"+command.ErrorNotice, r.step(t))
	assert.Equal(t, state.ModeNone, r.c.State().Mode)
}

func TestStep_PersistFailureHalts(t *testing.T) {
	r := newRig(t, state.ModeBasic)
	r.start(t)
	r.bytes.FailWrites = true

	r.port.Feed("cal\r")
	r.step(t)

	err := r.c.Step(context.Background())
	require.Error(t, err)

	var halt *HaltError
	require.True(t, errors.As(err, &halt))
	assert.Equal(t, StoreWriteNotice, halt.Notice)
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, calibration.ErrPersist)
	assert.Equal(t, baselineCal+StoreWriteNotice, r.port.Take())

	// Nothing runs after a halt.
	assert.ErrorIs(t, r.c.Step(context.Background()), ErrHalted)
	assert.ErrorIs(t, r.c.Run(context.Background()), ErrHalted)
	assert.Empty(t, r.port.Output())
}

func TestStep_OutOfRangeCalibrationHalts(t *testing.T) {
	cfg := config.Default().Mock
	cfg.Baseline = 40000
	r := newRigWith(t, state.ModeBasic, cfg)
	r.start(t)
	image := r.bytes.Bytes()

	r.port.Feed("cal\r")
	r.step(t)

	err := r.c.Step(context.Background())
	require.Error(t, err)

	var halt *HaltError
	require.True(t, errors.As(err, &halt))
	assert.Equal(t, StoreWriteNotice, halt.Notice)
	assert.ErrorIs(t, err, calibration.ErrOffsetRange)

	// The empty tank is never reported against clamped offsets.
	assert.Equal(t, "EmptyCal=0,0,0,0,0,0,0,0,0,0,0,0,\r\n"+StoreWriteNotice, r.port.Take())
	assert.Equal(t, level.Offsets{}, r.c.Offsets())
	assert.Equal(t, image, r.bytes.Bytes())
}

// brokenStore fails every read.
type brokenStore struct{}

func (brokenStore) Size() int { return calibration.PartitionSize }

func (brokenStore) Read(int, []byte) error { return errors.New("flash unreadable") }

func (brokenStore) Write(int, []byte) error { return nil }

func TestStart_LoadFailureHalts(t *testing.T) {
	store, err := calibration.New(brokenStore{}, nil)
	require.NoError(t, err)
	port := transport.NewBuffer()

	c, err := New(Options{
		Port:    port,
		Scanner: acquire.NewMock(nil),
		Store:   store,
		Params:  level.DefaultParams(),
	})
	require.NoError(t, err)

	err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, calibration.ErrLoad)
	assert.True(t, strings.HasSuffix(port.Output(), StoreInitNotice))
	assert.NotContains(t, port.Output(), "EmptyCal=")
}

// stuckScanner never finishes a scan.
type stuckScanner struct{}

func (stuckScanner) Scan() error { return nil }

func (stuckScanner) Busy() bool { return true }

func (stuckScanner) Process() error { return nil }

func (stuckScanner) Raw(int) (int32, error) { return 0, nil }

func TestRun_StopsOnCancel(t *testing.T) {
	store, err := calibration.New(calibration.NewMemStore(calibration.PartitionSize), nil)
	require.NoError(t, err)

	c, err := New(Options{
		Port:         transport.NewBuffer(),
		Scanner:      &stuckScanner{},
		Store:        store,
		Params:       level.DefaultParams(),
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrHalted))
}

type failingScanner struct{ stuckScanner }

func (*failingScanner) Busy() bool { return false }

func (*failingScanner) Process() error { return acquire.ErrNotConnected }

func TestStep_ScanFailureHalts(t *testing.T) {
	store, err := calibration.New(calibration.NewMemStore(calibration.PartitionSize), nil)
	require.NoError(t, err)
	port := transport.NewBuffer()

	c, err := New(Options{Port: port, Scanner: &failingScanner{}, Store: store, Params: level.DefaultParams()})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	err = c.Step(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, acquire.ErrNotConnected)
	assert.True(t, strings.HasSuffix(port.Output(), ScanNotice))
}

func TestOptions_Configure(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Mode = "csv"
	cfg.Loop.Delay = 250 * time.Millisecond

	var opts Options
	require.NoError(t, opts.Configure(cfg))
	assert.Equal(t, state.ModeCSVInit, opts.Mode)
	assert.Equal(t, level.DefaultParams(), opts.Params)
	assert.Equal(t, 250*time.Millisecond, opts.Delay)
	assert.Equal(t, time.Millisecond, opts.PollInterval)

	cfg.Output.Mode = "loud"
	assert.Error(t, opts.Configure(cfg))
}
