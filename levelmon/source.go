package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/itohio/golevel/pkg/acquire"
	"github.com/itohio/golevel/pkg/calibration"
	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/controller"
	"github.com/itohio/golevel/pkg/monitor"
	"github.com/itohio/golevel/pkg/transport"
)

// session is a connected client plus whatever feeds it.
type session struct {
	client   *monitor.Client
	readings <-chan monitor.Reading
	stop     func()
}

// connect opens the monitor client, either to the configured serial port
// or to a simulated loop running in-process.
func connect(cfg *config.Config, useMock bool, logger *slog.Logger) (*session, error) {
	client := monitor.New(cfg.Monitor.Port, cfg.Monitor.BaudRate, monitor.DefaultBufferSize, logger)
	stop := func() { client.Close() }

	if useMock {
		conn, stopLoop, err := startSimulatedLoop(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := client.Attach(conn); err != nil {
			stopLoop()
			return nil, err
		}
		stop = func() {
			client.Close()
			stopLoop()
		}
	} else if err := client.Connect(); err != nil {
		return nil, err
	}

	// Chain smoothing when enabled
	readings := client.Readings()
	if cfg.Monitor.AverageSamples > 0 {
		readings = monitor.NewMovingAverage(cfg.Monitor.AverageSamples, monitor.DefaultBufferSize)(readings)
	}

	go func() {
		for line := range client.Lines() {
			logger.Info("console", "line", line)
		}
	}()

	return &session{client: client, readings: readings, stop: stop}, nil
}

// pipeConn joins the two halves of the simulated console.
type pipeConn struct {
	*io.PipeReader
	*io.PipeWriter
}

func (c pipeConn) Close() error {
	return errors.Join(c.PipeReader.Close(), c.PipeWriter.Close())
}

// startSimulatedLoop runs a level loop over a simulated tank with an
// in-memory calibration partition, wired to the returned console.
func startSimulatedLoop(cfg *config.Config, logger *slog.Logger) (io.ReadWriteCloser, func(), error) {
	loopIn, clientOut := io.Pipe()
	clientIn, loopOut := io.Pipe()

	port := transport.NewStream(loopIn, loopOut, logger)

	store, err := calibration.New(calibration.NewMemStore(calibration.PartitionSize), logger)
	if err != nil {
		return nil, nil, err
	}

	opts := controller.Options{
		Port:    port,
		Scanner: acquire.NewMock(&cfg.Mock),
		Store:   store,
		Logger:  logger,
	}
	if err := opts.Configure(cfg); err != nil {
		return nil, nil, err
	}
	loop, err := controller.New(opts)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("simulated loop stopped", "err", err)
		}
	}()

	stop := func() {
		cancel()
		port.Close()
		loopOut.Close()
		<-done
	}
	return pipeConn{PipeReader: clientIn, PipeWriter: clientOut}, stop, nil
}
