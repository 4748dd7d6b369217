// Command levelmon watches a running level loop: it switches the loop to
// CSV output and shows the level and per-sensor signal, in a window or
// with -headless on the terminal.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"github.com/lmittmann/tint"

	"github.com/itohio/golevel/pkg/config"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Run a simulated loop in-process instead of opening a serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of rows to average (0 = disabled, overrides config)")
		headlessFlag       = flag.Bool("headless", false, "Render on the terminal instead of opening a window")
	)
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Monitor.Port = *portFlag
	}

	// Override average samples if provided via command line
	if *averageSamplesFlag >= 0 {
		cfg.Monitor.AverageSamples = *averageSamplesFlag
	}

	if *headlessFlag {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runHeadless(ctx, cfg, *mockFlag, logger); err != nil {
			logger.Error("monitor stopped", "err", err)
			os.Exit(1)
		}
		return
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.golevel")

	// Create main window
	window := application.NewWindow("Liquid Level Monitor")
	window.Resize(fyne.NewSize(700, 600))
	window.CenterOnScreen()

	state := &appState{
		cfg:     cfg,
		window:  window,
		useMock: *mockFlag,
		log:     logger,
		view:    newLevelView(cfg),
	}

	toolbar := createToolbar(state)

	window.SetContent(container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.view.CanvasObject(),
	))
	window.SetOnClosed(func() {
		disconnect(state)
	})
	window.ShowAndRun()
}
