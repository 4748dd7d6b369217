package transport

import (
	"bytes"
	"sync"
)

// Buffer is an in-memory Port: Feed queues input, Output collects what was
// written.
type Buffer struct {
	mu  sync.Mutex
	in  []byte
	out bytes.Buffer

	// WriteErr, when set, is returned by every write.
	WriteErr error
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Feed queues s as received input.
func (b *Buffer) Feed(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.in = append(b.in, s...)
}

// Output returns everything written so far.
func (b *Buffer) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String()
}

// Take returns everything written so far and clears it.
func (b *Buffer) Take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.out.String()
	b.out.Reset()
	return s
}

// PutChar writes one byte.
func (b *Buffer) PutChar(c byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.WriteErr != nil {
		return b.WriteErr
	}
	return b.out.WriteByte(c)
}

// PutString writes s.
func (b *Buffer) PutString(s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.WriteErr != nil {
		return b.WriteErr
	}
	_, err := b.out.WriteString(s)
	return err
}

// GetChar pops the next queued input byte.
func (b *Buffer) GetChar() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.in) == 0 {
		return 0, ErrNoData
	}
	c := b.in[0]
	b.in = b.in[1:]
	return c, nil
}

// BytesAvailable returns the number of queued input bytes.
func (b *Buffer) BytesAvailable() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.in)
}
