//go:build tinygo

package main

import (
	"errors"
	"machine"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/itohio/golevel/pkg/acquire"
	"github.com/itohio/golevel/pkg/level"
)

// rcSensor measures each segment's capacitance as the time its electrode
// takes to charge through the pull-up resistor. Liquid raises the
// capacitance and with it the count.
type rcSensor struct {
	busy     atomic.Bool
	scanning bool
	pending  level.Counts
	raw      level.Counts
}

var _ acquire.Scanner = (*rcSensor)(nil)

var errScanRunning = errors.New("scan not complete")

func newRCSensor() *rcSensor {
	s := &rcSensor{}
	for _, p := range sensorPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	return s
}

// Scan starts measuring all segments in the background.
func (s *rcSensor) Scan() error {
	s.busy.Store(true)
	s.scanning = true
	go s.measure()
	return nil
}

// Busy reports whether the running scan has not finished yet.
func (s *rcSensor) Busy() bool {
	return s.busy.Load()
}

// Process publishes the finished scan.
func (s *rcSensor) Process() error {
	if !s.scanning {
		return acquire.ErrNoScan
	}
	if s.busy.Load() {
		return errScanRunning
	}
	s.raw = s.pending
	s.scanning = false
	return nil
}

// Raw returns the last processed count of segment i.
func (s *rcSensor) Raw(i int) (int32, error) {
	if i < 0 || i >= level.NumSensors {
		return 0, level.ErrSensorIndex
	}
	return s.raw[i], nil
}

func (s *rcSensor) measure() {
	defer s.busy.Store(false)
	for i, p := range sensorPins {
		s.pending[i] = chargeTime(p)
		runtime.Gosched()
	}
}

// chargeTime discharges the electrode, releases it and counts until it
// reads high.
func chargeTime(p machine.Pin) int32 {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	time.Sleep(DISCHARGE_US * time.Microsecond)

	p.Configure(machine.PinConfig{Mode: machine.PinInput})
	var n int32
	for n < MAX_CHARGE_COUNT && !p.Get() {
		n++
	}

	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return n
}
