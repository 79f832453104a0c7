package orchestrator

import (
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/tui"
)

// tuiConfig builds the dashboard configuration. Replay has no controls.
func (o *Orchestrator) tuiConfig(mode telemetry.SourceMode) tui.Config {
	cfg := tui.Config{
		Mode:        mode.String(),
		Vehicle:     o.vehicleName,
		MetricsAddr: o.config.MetricsAddr,
		Feed:        o,
	}
	if o.producer != nil {
		cfg.Controls = o.producer
	}
	return cfg
}
