package calibration

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfBounds is returned for accesses past the logical partition.
	ErrOutOfBounds = errors.New("access outside logical partition")
	// ErrWrite is returned by byte stores when a write does not complete.
	ErrWrite = errors.New("byte store write failed")
)

// ByteStore is a durable, byte-addressable logical partition. Wear
// levelling and redundancy are the implementation's business.
type ByteStore interface {
	Size() int
	Read(offset int, p []byte) error
	Write(offset int, p []byte) error
}

func checkBounds(size, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfBounds, offset, n, size)
	}
	return nil
}

// MemStore is a ByteStore held in memory.
type MemStore struct {
	mu   sync.Mutex
	data []byte
	// FailWrites makes every Write fail with ErrWrite.
	FailWrites bool
}

var _ ByteStore = (*MemStore)(nil)

// NewMemStore creates a zero-filled in-memory partition.
func NewMemStore(size int) *MemStore {
	return &MemStore{data: make([]byte, size)}
}

// Size returns the partition size in bytes.
func (m *MemStore) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Read copies len(p) bytes at offset into p.
func (m *MemStore) Read(offset int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkBounds(len(m.data), offset, len(p)); err != nil {
		return err
	}
	copy(p, m.data[offset:])
	return nil
}

// Write copies p into the partition at offset.
func (m *MemStore) Write(offset int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return ErrWrite
	}
	if err := checkBounds(len(m.data), offset, len(p)); err != nil {
		return err
	}
	copy(m.data[offset:], p)
	return nil
}

// Bytes returns a copy of the partition contents.
func (m *MemStore) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
