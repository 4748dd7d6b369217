//go:build tinygo

//go:generate tinygo flash -target=pico

// Firmware for the 12-segment level sensor on an RP2040 board. The level
// loop runs on UART0; calibration lives in the last flash block.
package main

import (
	"context"
	"errors"
	"machine"
	"runtime/interrupt"

	"github.com/itohio/golevel/pkg/calibration"
	"github.com/itohio/golevel/pkg/controller"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/state"
	"github.com/itohio/golevel/pkg/transport"
)

var uart = machine.UART0

// uartPort is the console on a hardware UART.
type uartPort struct {
	uart *machine.UART
}

var _ transport.Port = uartPort{}

func (p uartPort) PutChar(b byte) error {
	return p.uart.WriteByte(b)
}

func (p uartPort) PutString(s string) error {
	_, err := p.uart.Write([]byte(s))
	return err
}

func (p uartPort) GetChar() (byte, error) {
	if p.uart.Buffered() == 0 {
		return 0, transport.ErrNoData
	}
	b, err := p.uart.ReadByte()
	if err != nil {
		return 0, transport.ErrNoData
	}
	return b, nil
}

func (p uartPort) BytesAvailable() int {
	return p.uart.Buffered()
}

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
		TX:       UART_TX,
		RX:       UART_RX,
	})
	port := uartPort{uart: uart}

	bs, err := openFlashStore(calibration.PartitionSize)
	if err != nil {
		halt(port, controller.StoreInitNotice)
	}
	store, err := calibration.New(bs, nil)
	if err != nil {
		halt(port, controller.StoreInitNotice)
	}

	loop, err := controller.New(controller.Options{
		Port:    port,
		Scanner: newRCSensor(),
		Store:   store,
		Params:  level.DefaultParams(),
		Mode:    state.ModeBasic,
	})
	if err != nil {
		halt(port, err.Error()+"\r\n")
	}

	err = loop.Run(context.Background())
	// The loop has already printed the notice for a halt.
	var he *controller.HaltError
	if errors.As(err, &he) {
		halt(port, "")
	}
	halt(port, err.Error()+"\r\n")
}

// halt prints msg and stops the board until it is reset.
func halt(port transport.Port, msg string) {
	if msg != "" {
		port.PutString(msg)
	}
	interrupt.Disable()
	for {
	}
}
