package orchestrator

import (
	"errors"

	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
)

var errControlQueueFull = errors.New("control queue full, try again")

type controlKind int

const (
	controlLogging controlKind = iota
	controlResetLeaderboard
	controlProfile
)

func (k controlKind) String() string {
	switch k {
	case controlLogging:
		return "logging"
	case controlResetLeaderboard:
		return "reset_leaderboard"
	case controlProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// control is a runtime change requested from outside the producer loop.
type control struct {
	kind    controlKind
	enabled bool
	profile engine.EngineProfile
}

// send queues c without blocking.
func (p *Producer) send(c control) bool {
	select {
	case p.controls <- c:
		return true
	default:
		p.logger.Warn("control_dropped", "control", c.kind.String())
		return false
	}
}

// applyControls drains the queue into the engine. It runs on the
// goroutine calling Step, before the frame is polled.
func (p *Producer) applyControls() {
	for {
		select {
		case c := <-p.controls:
			p.apply(c)
		default:
			return
		}
	}
}

func (p *Producer) apply(c control) {
	switch c.kind {
	case controlLogging:
		if p.recorder == nil || p.LogError() != nil {
			return
		}
		if c.enabled {
			p.engine.SetRecorder(p.recorder)
		} else {
			p.engine.SetRecorder(nil)
		}
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.SetLoggingEnabled(c.enabled)
		}
		p.logger.Info("logging_toggled", "enabled", c.enabled)

	case controlResetLeaderboard:
		p.engine.ResetLeaderboard()
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.ResetLaps()
		}
		p.logger.Info("leaderboard_reset")

	case controlProfile:
		if err := p.engine.SetProfile(c.profile); err != nil {
			p.logger.Warn("engine_profile_rejected", "error", err)
			return
		}
		p.logger.Info("engine_profile_changed", "displacement_liters", c.profile.DisplacementLiters)
	}
}
