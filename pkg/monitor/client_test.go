package monitor

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/golevel/pkg/level"
)

// loopConn plays the loop's console: reads come from a pipe, writes are
// recorded.
type loopConn struct {
	*io.PipeReader
	mu      sync.Mutex
	written bytes.Buffer
}

func (c *loopConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

func (c *loopConn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

func TestNew_Defaults(t *testing.T) {
	c := New("COM3", 0, 0, nil)
	assert.NotNil(t, c)
	assert.Equal(t, DefaultBaudRate, c.baudRate)
	assert.Equal(t, DefaultBufferSize, c.bufSize)
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Send("csv"), ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestClient_ReadsRows(t *testing.T) {
	header, row, _ := csvOutput(t, level.Counts{400, 400, 400, 400, 400, 400, 0, 0, 0, 0, 0, 0})

	pr, pw := io.Pipe()
	conn := &loopConn{PipeReader: pr}
	c := New("test", 0, 10, nil)
	fixedNow := time.Unix(1700000000, 0)
	c.now = func() time.Time { return fixedNow }

	require.NoError(t, c.Attach(conn))
	defer c.Close()
	assert.True(t, c.IsConnected())
	assert.Equal(t, "csv\r", conn.Written())

	go func() {
		// The echo of "csv" lands in front of the header.
		pw.Write([]byte("csv" + header))
		pw.Write([]byte(row))
		pw.Write([]byte("EmptyCal=1,2,3,4,5,6,7,8,9,10,11,12,\r\n"))
		pw.Write([]byte("csv" + strings.TrimSuffix(row, "\r\n") + "\r\n"))
		pw.Close()
	}()

	var got []Reading
	for r := range c.Readings() {
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 11, got[0].ActiveCount)
	assert.Equal(t, fixedNow, got[0].Timestamp)
	assert.Equal(t, got[0], got[1])

	var lines []string
	for line := range c.Lines() {
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"EmptyCal=1,2,3,4,5,6,7,8,9,10,11,12,"}, lines)

	require.NoError(t, c.Calibrate())
	assert.Equal(t, "csv\rcal\r", conn.Written())
}

func TestClient_AlreadyConnected(t *testing.T) {
	pr, _ := io.Pipe()
	c := New("test", 0, 0, nil)
	require.NoError(t, c.Attach(&loopConn{PipeReader: pr}))
	defer c.Close()

	assert.Error(t, c.Attach(&loopConn{PipeReader: pr}))
}

func TestStripEcho(t *testing.T) {
	assert.Equal(t, "1,2", stripEcho("csv1,2"))
	assert.Equal(t, "1,2", stripEcho("1,2"))
	assert.Equal(t, "-5,2", stripEcho("-5,2"))
	assert.Equal(t, "abc", stripEcho("abc"))
	assert.Equal(t, "Raw0,Diff0,Proc0,", stripEcho("csvRaw0,Diff0,Proc0,"))
	assert.Equal(t, "%=49.9   mm=76.4", stripEcho("basic%=49.9   mm=76.4"))
	assert.Equal(t, "csv", stripEcho("csv"))
}
