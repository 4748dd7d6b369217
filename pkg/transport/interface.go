// Package transport provides the byte-oriented serial console used by the
// control loop.
package transport

import "errors"

var (
	// ErrNoData is returned by GetChar when nothing has been received.
	ErrNoData = errors.New("no data available")
	// ErrClosed is returned after the port has been closed.
	ErrClosed = errors.New("port closed")
)

// Port is a serial console. GetChar and BytesAvailable never block.
type Port interface {
	PutChar(b byte) error
	PutString(s string) error
	GetChar() (byte, error)
	BytesAvailable() int
}

// Ensure Stream implements Port.
var _ Port = (*Stream)(nil)

// Ensure Buffer implements Port.
var _ Port = (*Buffer)(nil)
