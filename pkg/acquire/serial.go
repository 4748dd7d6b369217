//go:build !tinygo

package acquire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/golevel/pkg/level"
)

// Ensure Serial implements Scanner.
var _ Scanner = (*Serial)(nil)

// DefaultBaudRate is the rate sensor boards stream frames at.
const DefaultBaudRate = 115200

// Serial reads raw-count frames from a sensor board. The board streams one
// line per scan: twelve comma-separated decimal counts, bottom sensor first.
// A scan completes when a frame newer than the one current at Scan arrives.
type Serial struct {
	port     string
	baudRate int
	log      *slog.Logger

	mu        sync.Mutex
	conn      io.ReadWriteCloser
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	readErr   error

	latest    level.Counts
	latestSeq uint64
	wantSeq   uint64
	scanning  bool
	raw       level.Counts
}

// NewSerial creates a frame source for the given port. A zero baud rate uses
// DefaultBaudRate and a nil logger uses slog.Default().
func NewSerial(port string, baudRate int, logger *slog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
		log:      logger,
	}
}

// Connect opens the serial port and starts reading frames.
func (s *Serial) Connect() error {
	conn, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	if err := s.attach(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// attach starts reading frames from conn.
func (s *Serial) attach(conn io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.connected = true
	s.readErr = nil

	go s.readFrames(s.ctx, conn)
	return nil
}

// Close closes the connection and stops reading frames.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.cancel()
	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the source is currently attached.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Scan waits for the next frame from the board.
func (s *Serial) Scan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if s.readErr != nil {
		return s.readErr
	}
	s.scanning = true
	s.wantSeq = s.latestSeq + 1
	return nil
}

// Busy reports whether the awaited frame has not arrived yet. A failed
// reader is never busy so the caller gets the error from Process.
func (s *Serial) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning && s.readErr == nil && s.latestSeq < s.wantSeq
}

// Process latches the latest frame.
func (s *Serial) Process() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return ErrNoScan
	}
	if s.latestSeq < s.wantSeq {
		if s.readErr != nil {
			return s.readErr
		}
		return fmt.Errorf("scan not complete")
	}
	s.scanning = false
	s.raw = s.latest
	return nil
}

// Raw returns the count of sensor i from the last processed frame.
func (s *Serial) Raw(i int) (int32, error) {
	if err := checkIndex(i); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw[i], nil
}

// readFrames reads lines from conn until it fails or ctx is cancelled.
func (s *Serial) readFrames(ctx context.Context, conn io.Reader) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame, err := parseLine(line)
		if err != nil {
			s.log.Warn("dropping sensor frame", "line", line, "err", err)
			continue
		}

		s.mu.Lock()
		s.latest = frame
		s.latestSeq++
		s.mu.Unlock()
	}

	if ctx.Err() != nil {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.log.Error("sensor stream stopped", "port", s.port, "err", err)

	s.mu.Lock()
	s.readErr = fmt.Errorf("sensor stream %s: %w", s.port, errors.Join(ErrNotConnected, err))
	s.mu.Unlock()
}

// parseLine parses one frame.
// Format: r0,r1,...,r11
// Example: 812,790,801,795,788,799,803,810,797,792,805,1204
func parseLine(line string) (level.Counts, error) {
	var out level.Counts

	parts := strings.Split(line, ",")
	if len(parts) != level.NumSensors {
		return out, fmt.Errorf("invalid line format: expected %d comma-separated values, got %d", level.NumSensors, len(parts))
	}

	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return out, fmt.Errorf("invalid count for sensor %d: %w", i, err)
		}
		if v < 0 {
			return out, fmt.Errorf("count out of range for sensor %d: %d", i, v)
		}
		out[i] = int32(v)
	}
	return out, nil
}
