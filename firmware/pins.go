//go:build tinygo

package main

import "machine"

const (
	// Sensing configuration
	MAX_CHARGE_COUNT = 20000 // Charge loop iterations before a segment is read as saturated
	DISCHARGE_US     = 50    // Time to drain a segment electrode before charging it

	// Serial configuration
	// The CSV row is ~200 bytes; at 10 rows/s that is 2,000 bytes/s,
	// well inside the 11,520 bytes/s of 115200 8N1.
	UART_BAUD_RATE = 115200
	UART_TX        = machine.UART0_TX_PIN
	UART_RX        = machine.UART0_RX_PIN
)

// Segment electrodes, bottom segment first. Each is tied to 3V3 through a
// 1M resistor.
var sensorPins = [...]machine.Pin{
	machine.GP2, machine.GP3, machine.GP4, machine.GP5,
	machine.GP6, machine.GP7, machine.GP8, machine.GP9,
	machine.GP10, machine.GP11, machine.GP12, machine.GP13,
}
