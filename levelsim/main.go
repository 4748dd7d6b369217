// Command levelsim runs the level sensing loop on a host. The console is a
// serial port or stdin/stdout; raw counts come from a simulated tank or a
// sensor board streaming frames over serial.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/itohio/golevel/pkg/acquire"
	"github.com/itohio/golevel/pkg/calibration"
	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/controller"
	"github.com/itohio/golevel/pkg/transport"
)

func main() {
	var (
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		portFlag    = flag.String("p", "", "Console serial port override (empty = stdin/stdout)")
		sensorFlag  = flag.String("sensor", "", "Raw count source override: mock or serial")
		sensorPort  = flag.String("sensor-port", "", "Sensor board serial port override")
		modeFlag    = flag.String("mode", "", "Output mode at boot override: none, basic or csv")
		storageFlag = flag.String("storage", "", "Calibration image path override")
		levelFlag   = flag.Float64("level", -1, "Pin the simulated level in mm (mock only)")
		verboseFlag = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *sensorFlag != "" {
		cfg.Sensor.Source = *sensorFlag
	}
	if *sensorPort != "" {
		cfg.Sensor.Port = *sensorPort
	}
	if *modeFlag != "" {
		cfg.Output.Mode = *modeFlag
	}
	if *storageFlag != "" {
		cfg.Storage.Path = *storageFlag
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, float32(*levelFlag), logger); err != nil {
		logger.Error("level loop stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, pinned float32, logger *slog.Logger) error {
	port, err := openConsole(cfg.Serial, logger)
	if err != nil {
		if ports, perr := transport.Ports(); perr == nil {
			logger.Info("available serial ports", "ports", ports)
		}
		return err
	}
	defer port.Close()

	// The loop has nothing left to serve once its console goes away.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-port.Done():
			logger.Info("console closed", "console", consoleName(cfg.Serial))
			cancel()
		case <-ctx.Done():
		}
	}()

	scanner, closeScanner, err := openScanner(cfg, pinned, logger)
	if err != nil {
		return err
	}
	defer closeScanner()

	loop, opts, err := newLoop(cfg, port, scanner, logger)
	if err != nil {
		return err
	}

	logger.Info("level loop running",
		"console", consoleName(cfg.Serial),
		"sensor", cfg.Sensor.Source,
		"storage", cfg.Storage.Path,
		"mode", opts.Mode)

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, controller.ErrHalted):
		// A halted loop stays down until someone intervenes.
		logger.Error("level loop halted, waiting for interrupt", "err", err)
		<-ctx.Done()
		return err
	case errors.Is(err, context.Canceled):
		logger.Info("level loop stopped")
		return nil
	default:
		return err
	}
}

// newLoop binds the calibration image and builds the controller. A store
// that cannot be opened is reported on the console like on the board.
func newLoop(cfg *config.Config, port transport.Port, scanner acquire.Scanner, logger *slog.Logger) (*controller.Controller, controller.Options, error) {
	opts := controller.Options{
		Port:    port,
		Scanner: scanner,
		Logger:  logger,
	}

	store, err := openStore(cfg.Storage.Path, logger)
	if err != nil {
		if werr := port.PutString(controller.StoreInitNotice); werr != nil {
			logger.Error("failed to write halt notice", "err", werr)
		}
		return nil, opts, err
	}
	opts.Store = store

	if err := opts.Configure(cfg); err != nil {
		return nil, opts, err
	}
	loop, err := controller.New(opts)
	if err != nil {
		return nil, opts, err
	}
	return loop, opts, nil
}

func openStore(path string, logger *slog.Logger) (*calibration.Store, error) {
	bs, err := calibration.OpenFileStore(path, calibration.PartitionSize)
	if err != nil {
		return nil, err
	}
	return calibration.New(bs, logger)
}

func openConsole(cfg config.SerialConfig, logger *slog.Logger) (*transport.Stream, error) {
	if cfg.Port == "" {
		return transport.NewStream(os.Stdin, os.Stdout, logger), nil
	}
	return transport.OpenSerial(cfg.Port, cfg.BaudRate, logger)
}

func consoleName(cfg config.SerialConfig) string {
	if cfg.Port == "" {
		return "stdio"
	}
	return cfg.Port
}

func openScanner(cfg *config.Config, pinned float32, logger *slog.Logger) (acquire.Scanner, func() error, error) {
	switch cfg.Sensor.Source {
	case "mock":
		mock := acquire.NewMock(&cfg.Mock)
		if pinned >= 0 {
			mock.SetLevel(pinned)
		}
		return mock, func() error { return nil }, nil
	case "serial":
		s := acquire.NewSerial(cfg.Sensor.Port, cfg.Sensor.BaudRate, logger)
		if err := s.Connect(); err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sensor source %q", cfg.Sensor.Source)
	}
}
