package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// DefaultRxBufferSize bounds the bytes held between polls.
const DefaultRxBufferSize = 256

// Stream adapts a reader/writer pair into a Port. A goroutine drains the
// reader into a bounded receive buffer so polling never blocks. Bytes that
// arrive while the buffer is full are dropped, like a UART FIFO overrun.
type Stream struct {
	r      io.Reader
	w      io.Writer
	closer io.Closer
	log    *slog.Logger

	mu      sync.Mutex
	rx      []byte
	rxLimit int
	rxErr   error
	closed  bool
	done    chan struct{}
}

// NewStream starts reading from r. A nil logger uses slog.Default().
func NewStream(r io.Reader, w io.Writer, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		r:       r,
		w:       w,
		log:     logger,
		rxLimit: DefaultRxBufferSize,
		done:    make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	go s.readLoop()
	return s
}

// PutChar writes one byte.
func (s *Stream) PutChar(b byte) error {
	return s.write([]byte{b})
}

// PutString writes s verbatim.
func (s *Stream) PutString(str string) error {
	return s.write([]byte(str))
}

func (s *Stream) write(p []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("serial write failed: %w", err)
	}
	return nil
}

// GetChar returns the next received byte, ErrNoData when none is buffered,
// or the reader's terminal error once the buffer is drained.
func (s *Stream) GetChar() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rx) == 0 {
		if s.closed {
			return 0, ErrClosed
		}
		if s.rxErr != nil {
			return 0, s.rxErr
		}
		return 0, ErrNoData
	}
	b := s.rx[0]
	s.rx = s.rx[1:]
	return b, nil
}

// BytesAvailable returns the number of buffered received bytes.
func (s *Stream) BytesAvailable() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

// Done is closed when the reader goroutine exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close stops reading and closes the underlying port if it is closable.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return fmt.Errorf("failed to close port: %w", err)
		}
	}
	return nil
}

func (s *Stream) readLoop() {
	defer close(s.done)

	buf := make([]byte, 64)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			s.push(buf[:n])
		}
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.rxErr = err
			s.mu.Unlock()

			if !closed && !errors.Is(err, io.EOF) {
				s.log.Error("serial read failed", "error", err)
			}
			return
		}
	}
}

func (s *Stream) push(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rxLimit - len(s.rx)
	if room < len(p) {
		s.log.Warn("receive buffer full, dropping bytes", "dropped", len(p)-max(room, 0))
		p = p[:max(room, 0)]
	}
	s.rx = append(s.rx, p...)
}
