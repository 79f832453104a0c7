// Package stats accumulates whole-run statistics for the exit summary.
package stats

import (
	"math"
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// digestCompression is ~100 centroids, ~10KB per digest.
const digestCompression = 100

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Distribution summarises one metric over the frames where the engine ran.
type Distribution struct {
	Count int64
	P50   float64
	P95   float64
	Max   float64
}

// RunSummary is a point-in-time view of a run.
type RunSummary struct {
	Elapsed time.Duration

	// Frames counts every frame; ActiveFrames only those with rpm > 0.
	Frames       int64
	ActiveFrames int64

	HP       Distribution
	Torque   Distribution
	VE       Distribution
	FuelRate Distribution

	TotalFuelL float64

	// Severities counts diagnoses by severity level.
	Severities map[diagnostics.Severity]int64
}

// digest pairs a t-digest with an exact maximum.
type digest struct {
	td    *tdigest.TDigest
	count int64
	max   float64
}

func newDigest() digest {
	return digest{td: tdigest.NewWithCompression(digestCompression)}
}

func (d *digest) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	d.td.Add(v, 1)
	if d.count == 0 || v > d.max {
		d.max = v
	}
	d.count++
}

func (d *digest) distribution() Distribution {
	if d.count == 0 {
		return Distribution{}
	}
	return Distribution{
		Count: d.count,
		P50:   d.td.Quantile(0.50),
		P95:   d.td.Quantile(0.95),
		Max:   d.max,
	}
}

// RunStats collects per-frame statistics. Safe for concurrent use.
type RunStats struct {
	mu sync.Mutex

	frames       int64
	activeFrames int64

	hp       digest
	torque   digest
	ve       digest
	fuelRate digest

	totalFuel  float64
	severities map[diagnostics.Severity]int64

	startTime time.Time
	clock     Clock
}

// NewRunStats creates an empty collector with real clock.
func NewRunStats() *RunStats {
	return NewRunStatsWithClock(realClock{})
}

// NewRunStatsWithClock creates an empty collector with custom clock for testing.
func NewRunStatsWithClock(clock Clock) *RunStats {
	return &RunStats{
		hp:         newDigest(),
		torque:     newDigest(),
		ve:         newDigest(),
		fuelRate:   newDigest(),
		severities: make(map[diagnostics.Severity]int64),
		startTime:  clock.Now(),
		clock:      clock,
	}
}

// Observe records one frame and its diagnosis. Distributions only take
// frames where the engine is running, so idle zeros from a disconnected
// source do not drag the medians down.
func (s *RunStats) Observe(m telemetry.DerivedMetrics, d diagnostics.Diagnosis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.severities[d.Severity]++
	if m.CumulativeFuelL > s.totalFuel {
		s.totalFuel = m.CumulativeFuelL
	}

	if m.RPM <= 0 {
		return
	}
	s.activeFrames++
	s.hp.add(m.HP)
	s.torque.add(m.Torque)
	s.ve.add(m.VEPercent)
	s.fuelRate.add(m.FuelRateLPH)
}

// Summary returns the statistics collected so far.
func (s *RunStats) Summary() RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sev := make(map[diagnostics.Severity]int64, len(s.severities))
	for k, v := range s.severities {
		sev[k] = v
	}

	return RunSummary{
		Elapsed:      s.clock.Now().Sub(s.startTime),
		Frames:       s.frames,
		ActiveFrames: s.activeFrames,
		HP:           s.hp.distribution(),
		Torque:       s.torque.distribution(),
		VE:           s.ve.distribution(),
		FuelRate:     s.fuelRate.distribution(),
		TotalFuelL:   s.totalFuel,
		Severities:   sev,
	}
}
