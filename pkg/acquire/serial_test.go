//go:build !tinygo

package acquire

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/golevel/pkg/level"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    level.Counts
		wantErr bool
	}{
		{
			name: "valid line",
			line: "812,790,801,795,788,799,803,810,797,792,805,1204",
			want: level.Counts{812, 790, 801, 795, 788, 799, 803, 810, 797, 792, 805, 1204},
		},
		{
			name: "valid line - spaces",
			line: "0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11",
			want: level.Counts{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		},
		{
			name:    "invalid - too few fields",
			line:    "1,2,3,4,5,6,7,8,9,10,11",
			wantErr: true,
		},
		{
			name:    "invalid - too many fields",
			line:    "1,2,3,4,5,6,7,8,9,10,11,12,13",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric count",
			line:    "1,2,3,4,5,abc,7,8,9,10,11,12",
			wantErr: true,
		},
		{
			name:    "invalid - negative count",
			line:    "1,2,3,4,5,-6,7,8,9,10,11,12",
			wantErr: true,
		},
		{
			name:    "invalid - count overflows int32",
			line:    "1,2,3,4,5,6,7,8,9,10,11,4294967296",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewSerial_Defaults(t *testing.T) {
	s := NewSerial("COM3", 0, nil)
	assert.NotNil(t, s)
	assert.Equal(t, "COM3", s.port)
	assert.Equal(t, DefaultBaudRate, s.baudRate)
	assert.False(t, s.IsConnected())
}

func TestSerial_NotConnected(t *testing.T) {
	s := NewSerial("COM3", 115200, nil)
	assert.ErrorIs(t, s.Scan(), ErrNotConnected)
	assert.False(t, s.Busy())
	assert.ErrorIs(t, s.Process(), ErrNoScan)
	assert.NoError(t, s.Close())
}

// pipeConn feeds the frame reader from an io.Pipe.
type pipeConn struct {
	*io.PipeReader
	io.Writer
}

func newPipeSerial(t *testing.T) (*Serial, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	s := NewSerial("test", 0, nil)
	require.NoError(t, s.attach(pipeConn{PipeReader: pr, Writer: io.Discard}))
	t.Cleanup(func() { s.Close() })
	return s, pw
}

func TestSerial_ScanWaitsForNextFrame(t *testing.T) {
	s, pw := newPipeSerial(t)
	assert.True(t, s.IsConnected())
	assert.Error(t, s.attach(pipeConn{}))

	require.NoError(t, s.Scan())
	assert.True(t, s.Busy())
	assert.Error(t, s.Process())

	go func() {
		pw.Write([]byte("garbage\n\n1,2,3,4,5,6,7,8,9,10,11,12\r\n"))
	}()

	require.Eventually(t, func() bool { return !s.Busy() }, time.Second, time.Millisecond)
	require.NoError(t, s.Process())

	got, err := ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, level.Counts{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, got)

	// The frame already seen does not complete the next scan.
	require.NoError(t, s.Scan())
	assert.True(t, s.Busy())

	_, err = s.Raw(level.NumSensors)
	assert.ErrorIs(t, err, level.ErrSensorIndex)
}

func TestSerial_ReaderError(t *testing.T) {
	s, pw := newPipeSerial(t)
	require.NoError(t, s.Scan())

	boom := errors.New("unplugged")
	pw.CloseWithError(boom)

	require.Eventually(t, func() bool { return !s.Busy() }, time.Second, time.Millisecond)
	err := s.Process()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, boom)
	assert.Error(t, s.Scan())
}

func TestSerial_Close(t *testing.T) {
	s, _ := newPipeSerial(t)
	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
	assert.ErrorIs(t, s.Scan(), ErrNotConnected)
}
