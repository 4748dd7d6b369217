//go:build !tinygo

package controller

import (
	"fmt"

	"github.com/itohio/golevel/pkg/config"
	"github.com/itohio/golevel/pkg/state"
)

// Configure fills the loop settings of o from cfg, leaving the
// collaborators untouched.
func (o *Options) Configure(cfg *config.Config) error {
	mode, err := state.ParseMode(cfg.Output.Mode)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	params, err := cfg.LevelParams()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	o.Mode = mode
	o.Params = params
	o.Delay = cfg.Loop.Delay
	o.PollInterval = cfg.Loop.PollInterval
	return nil
}
