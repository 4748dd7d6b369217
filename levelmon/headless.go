package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/pterm/pterm"

	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/level"
	"github.com/itohio/golevel/pkg/monitor"
)

const barWidth = 40

// runHeadless renders readings on the terminal until ctx is done or the
// source closes.
func runHeadless(ctx context.Context, cfg *config.Config, useMock bool, logger *slog.Logger) error {
	params, err := cfg.LevelParams()
	if err != nil {
		return err
	}

	s, err := connect(cfg, useMock, logger)
	if err != nil {
		return err
	}
	defer s.stop()

	pterm.DefaultHeader.WithFullWidth().
		WithBackgroundStyle(pterm.NewStyle(pterm.BgBlue)).
		Println("Liquid Level Monitor")

	area, err := pterm.DefaultArea.Start()
	if err != nil {
		return err
	}
	defer area.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-s.readings:
			if !ok {
				pterm.Warning.Println("source closed")
				return nil
			}
			if now := time.Now(); now.Sub(last) >= 10*updateInterval {
				last = now
				area.Update(renderFrame(r, params.Thresholds))
			}
		}
	}
}

// renderFrame draws one reading: the level summary and a bar per segment,
// top segment first.
func renderFrame(r monitor.Reading, thresholds [level.NumSensors]int32) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Level %s  %s  (%d/%d)\n\n",
		pterm.FgLightCyan.Sprintf("%6.1f mm", r.Millimetres()),
		pterm.FgLightCyan.Sprintf("%5.1f %%", r.Percent()),
		r.ActiveCount, level.MaxActiveCount)

	for row := range level.NumSensors {
		i := level.NumSensors - 1 - row
		fill := int(math32.Floor(segmentFraction(r.Processed[i], thresholds[i])*barWidth + 0.5))
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)
		if segmentActive(r.Processed[i], thresholds[i]) {
			bar = pterm.FgGreen.Sprint(bar)
		} else {
			bar = pterm.FgGray.Sprint(bar)
		}
		fmt.Fprintf(&sb, "S%02d %s %7d %7d\n", i, bar, r.Raw[i], r.Processed[i])
	}
	return sb.String()
}
