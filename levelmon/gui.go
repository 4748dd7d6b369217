package main

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/monitor"
)

// updateInterval throttles view refreshes to ~60 FPS.
const updateInterval = 16 * time.Millisecond

// appState holds the application state.
type appState struct {
	cfg     *config.Config
	window  fyne.Window
	useMock bool
	log     *slog.Logger

	view       *levelView
	connectBtn *widget.Button
	calBtn     *widget.Button

	mu      sync.Mutex
	session *session
	done    chan struct{} // Closed when the readings goroutine exits
}

// createToolbar creates the toolbar with Connect, Settings and Calibrate buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	calBtn := widget.NewButtonWithIcon("Calibrate empty", theme.MediaRecordIcon(), func() {
		handleCalibrate(state)
	})
	calBtn.Disable()
	state.calBtn = calBtn

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn), // left
		calBtn, // right
		nil,    // center (spacer)
	)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	state.mu.Lock()
	connected := state.session != nil
	state.mu.Unlock()

	if connected {
		disconnect(state)
		state.calBtn.Disable()
		state.connectBtn.SetIcon(theme.LoginIcon())
		return
	}

	s, err := connect(state.cfg, state.useMock, state.log)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", sourceName(state), err), state.window)
		return
	}
	state.log.Info("connected", "source", sourceName(state))

	done := make(chan struct{})
	state.mu.Lock()
	state.session = s
	state.done = done
	state.mu.Unlock()

	state.calBtn.Enable()
	state.connectBtn.SetIcon(theme.LogoutIcon())

	go func() {
		defer close(done)
		var last time.Time
		for r := range s.readings {
			// Skip update if too soon since last update
			if now := time.Now(); now.Sub(last) >= updateInterval {
				last = now
				fyne.Do(func() {
					state.view.Update(r)
				})
			}
		}
	}()
}

// disconnect closes the session and waits for the readings goroutine.
func disconnect(state *appState) {
	state.mu.Lock()
	s, done := state.session, state.done
	state.session, state.done = nil, nil
	state.mu.Unlock()

	if s == nil {
		return
	}
	s.stop()
	<-done
	state.log.Info("disconnected", "source", sourceName(state))
}

func handleCalibrate(state *appState) {
	state.mu.Lock()
	s := state.session
	state.mu.Unlock()
	if s == nil {
		return
	}

	dialog.ShowConfirm("Calibrate", "Store the current readings as the empty container?", func(ok bool) {
		if !ok {
			return
		}
		if err := s.client.Calibrate(); err != nil {
			dialog.ShowError(err, state.window)
		}
	}, state.window)
}

func sourceName(state *appState) string {
	if state.useMock {
		return "simulated loop"
	}
	return state.cfg.Monitor.Port
}

// showSettingsDialog displays the monitor settings.
func showSettingsDialog(state *appState) {
	ports, err := monitor.Ports()
	if err != nil {
		state.log.Warn("failed to list serial ports", "err", err)
	}
	if cur := state.cfg.Monitor.Port; cur != "" && !slices.Contains(ports, cur) {
		ports = append(ports, cur)
	}

	portSelect := widget.NewSelect(ports, nil)
	portSelect.SetSelected(state.cfg.Monitor.Port)

	avgEntry := widget.NewEntry()
	avgEntry.SetText(strconv.Itoa(state.cfg.Monitor.AverageSamples))

	items := []*widget.FormItem{
		widget.NewFormItem("Port", portSelect),
		widget.NewFormItem("Average rows", avgEntry),
	}

	dialog.ShowForm("Settings", "Apply", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		n, err := strconv.Atoi(avgEntry.Text)
		if err != nil || n < 0 {
			dialog.ShowError(fmt.Errorf("invalid average rows %q", avgEntry.Text), state.window)
			return
		}
		state.cfg.Monitor.Port = portSelect.Selected
		state.cfg.Monitor.AverageSamples = n
		// Takes effect on the next connect.
	}, state.window)
}
