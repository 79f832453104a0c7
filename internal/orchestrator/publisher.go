package orchestrator

import (
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/derived"
	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
	"github.com/randomizedcoder/go-obd-telemetry/internal/metrics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/snapshot"
	"github.com/randomizedcoder/go-obd-telemetry/internal/stats"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/timeseries"
)

// fuelSampleInterval is how often cumulative fuel is sampled into the
// rolling consumption windows.
const fuelSampleInterval = time.Second

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// frame is one engine or replay output plus the state that travels with it.
type frame struct {
	metrics     telemetry.DerivedMetrics
	connected   bool
	logging     bool
	fuelMap     *engine.FuelMapGrid
	leaderboard []time.Duration
	took        time.Duration
}

// publisher diagnoses a frame, feeds the aggregators and publishes the
// resulting snapshot. Each publisher is driven by exactly one goroutine.
type publisher struct {
	mode    telemetry.SourceMode
	rules   []diagnostics.Rule
	plugin  derived.Plugin
	slot    *snapshot.Slot
	metrics *metrics.Collector
	stats   *stats.RunStats
	fuel    *timeseries.FuelTracker
	sink    telemetry.Sink
	clock   Clock

	lastFuelSample time.Time
}

func (p *publisher) publish(f frame) *snapshot.Snapshot {
	now := p.clock.Now()
	m := f.metrics

	d := diagnostics.Evaluate(p.rules, m)
	extras := p.plugin.Extra(m)

	var fuelStats timeseries.FuelStats
	if p.fuel != nil {
		p.fuel.Observe(m.CumulativeFuelL)
		if now.Sub(p.lastFuelSample) >= fuelSampleInterval {
			p.fuel.RecordSample()
			p.lastFuelSample = now
			if p.metrics != nil {
				p.metrics.RecordFuelWindows(p.fuel.GetStats())
			}
		}
		fuelStats = p.fuel.GetStats()
	}

	if p.stats != nil {
		p.stats.Observe(m, d)
	}
	if p.metrics != nil {
		p.metrics.RecordFrame(m, d, extras, f.took)
		p.metrics.SetSourceConnected(f.connected)
	}

	snap := snapshot.Snapshot{
		Time:        now,
		Mode:        p.mode,
		Connected:   f.connected,
		Logging:     f.logging,
		Metrics:     m,
		Diagnosis:   d,
		Extras:      extras,
		Fuel:        fuelStats,
		FuelMap:     f.fuelMap,
		Leaderboard: f.leaderboard,
	}

	var published *snapshot.Snapshot
	if p.slot != nil {
		published = p.slot.Publish(snap)
	} else {
		published = &snap
	}

	if p.sink != nil {
		p.sink(m)
	}
	return published
}
