//go:build !tinygo

package transport

import (
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// DefaultBaudRate is the console baud rate of the sensor board.
const DefaultBaudRate = 115200

// Ports returns the names of the serial ports present on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// OpenSerial opens a serial port as a Stream.
func OpenSerial(name string, baudRate int, logger *slog.Logger) (*Stream, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	return NewStream(port, port, logger), nil
}
