package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/golevel/pkg/command"
)

const (
	// DefaultBaudRate is the console rate of the level loop.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
)

// ErrNotConnected is returned by commands sent before Connect.
var ErrNotConnected = errors.New("not connected")

// Client is a connection to a level loop's console.
type Client struct {
	port     string
	baudRate int
	bufSize  int
	log      *slog.Logger
	now      func() time.Time

	conn      io.ReadWriteCloser
	readings  chan Reading
	lines     chan string
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a client for the given port. Zero values select the defaults
// and a nil logger uses slog.Default().
func New(port string, baudRate int, bufSize int, logger *slog.Logger) *Client {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		log:      logger,
		now:      time.Now,
		readings: make(chan Reading, bufSize),
		lines:    make(chan string, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns the names of available serial ports.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Connect opens the serial port, starts reading and switches the loop to
// CSV output.
func (c *Client) Connect() error {
	port, err := serial.Open(c.port, &serial.Mode{BaudRate: c.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", c.port, err)
	}
	if err := c.Attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// Attach starts reading from conn and requests CSV output.
func (c *Client) Attach(conn io.ReadWriteCloser) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLines()

	return c.Send(command.CSV)
}

// Close closes the connection and stops reading.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.cancel()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("error closing serial port", "err", err)
		}
		c.conn = nil
	}

	c.connected = false
	return nil
}

// Readings returns the channel of parsed CSV rows. It is closed when the
// connection ends.
func (c *Client) Readings() <-chan Reading {
	return c.readings
}

// Lines returns the channel of console lines that are not CSV rows, such
// as EmptyCal dumps and sample-log output.
func (c *Client) Lines() <-chan string {
	return c.lines
}

// IsConnected returns whether the client is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send writes one console command terminated by a carriage return.
func (c *Client) Send(cmd string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}
	if _, err := io.WriteString(c.conn, cmd+"\r"); err != nil {
		return fmt.Errorf("failed to send command %q: %w", cmd, err)
	}
	return nil
}

// Calibrate asks the loop to capture the empty-container offsets.
func (c *Client) Calibrate() error {
	return c.Send(command.Calibrate)
}

// readLines splits the console stream into lines, parses CSV rows and
// forwards everything else to Lines.
func (c *Client) readLines() {
	defer close(c.readings)
	defer close(c.lines)

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if c.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || IsHeader(stripEcho(line)) {
			continue
		}

		r, err := ParseRow(stripEcho(line))
		if err != nil {
			c.forward(line)
			continue
		}
		r.Timestamp = c.now()

		select {
		case c.readings <- r:
		case <-c.ctx.Done():
			return
		default:
			c.log.Warn("readings channel full, dropping reading")
		}
	}

	if err := scanner.Err(); err != nil && c.ctx.Err() == nil {
		c.log.Error("error reading from serial port", "err", err)
	}
}

func (c *Client) forward(line string) {
	select {
	case c.lines <- line:
	default:
	}
}

// echoes are the commands whose echo can precede a line of output.
var echoes = []string{command.CSV, command.Basic, command.Calibrate, command.Reset, command.Stop}

// stripEcho drops a command echo the loop printed in front of a line, as in
// "csv812,812,..." or "csvRaw0,Diff0,...".
func stripEcho(line string) string {
	for _, cmd := range echoes {
		if rest, ok := strings.CutPrefix(line, cmd); ok && rest != "" {
			return rest
		}
	}
	i := strings.IndexFunc(line, func(r rune) bool {
		return r == '-' || (r >= '0' && r <= '9')
	})
	if i <= 0 {
		return line
	}
	return line[i:]
}
