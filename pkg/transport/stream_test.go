package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_ReceiveAndPoll(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	s := NewStream(pr, &out, nil)
	defer s.Close()

	assert.Equal(t, 0, s.BytesAvailable())
	_, err := s.GetChar()
	assert.ErrorIs(t, err, ErrNoData)

	go pw.Write([]byte("cal\r"))

	require.Eventually(t, func() bool {
		return s.BytesAvailable() == 4
	}, time.Second, time.Millisecond)

	var got []byte
	for s.BytesAvailable() > 0 {
		b, err := s.GetChar()
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, "cal\r", string(got))
}

func TestStream_Write(t *testing.T) {
	pr, _ := io.Pipe()
	var out bytes.Buffer
	s := NewStream(pr, &out, nil)
	defer s.Close()

	require.NoError(t, s.PutString("%=0.0"))
	require.NoError(t, s.PutChar('\r'))
	assert.Equal(t, "%=0.0\r", out.String())
}

func TestStream_DropsOnOverrun(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewStream(pr, io.Discard, nil)
	defer s.Close()

	s.mu.Lock()
	s.rxLimit = 4
	s.mu.Unlock()

	go pw.Write([]byte("abcdefgh"))

	require.Eventually(t, func() bool {
		return s.BytesAvailable() == 4
	}, time.Second, time.Millisecond)

	b, err := s.GetChar()
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)
}

func TestStream_ReaderError(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewStream(pr, io.Discard, nil)
	defer s.Close()

	readErr := errors.New("line unplugged")
	pw.CloseWithError(readErr)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit")
	}

	_, err := s.GetChar()
	assert.ErrorIs(t, err, readErr)
}

func TestStream_Close(t *testing.T) {
	pr, _ := io.Pipe()
	s := NewStream(pr, io.Discard, nil)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit")
	}

	assert.ErrorIs(t, s.PutString("x"), ErrClosed)
	_, err := s.GetChar()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	b.Feed("ok")

	assert.Equal(t, 2, b.BytesAvailable())
	c, err := b.GetChar()
	require.NoError(t, err)
	assert.Equal(t, byte('o'), c)

	require.NoError(t, b.PutString("a"))
	require.NoError(t, b.PutChar('b'))
	assert.Equal(t, "ab", b.Take())
	assert.Equal(t, "", b.Output())

	b.WriteErr = io.ErrShortWrite
	assert.ErrorIs(t, b.PutChar('c'), io.ErrShortWrite)
}
