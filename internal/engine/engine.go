// Package engine converts raw sensor frames into derived telemetry.
//
// An Engine owns running state (cumulative fuel, trim window, fuel map and
// 0-100 leaderboard) and must only be driven from a single goroutine.
// Accessors return copies so other goroutines never see live state.
package engine

import (
	"context"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/source"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// Conversion constants.
const (
	hpPerMAF         = 1.32
	torqueConstant   = 7127.0
	torqueMinRPM     = 500.0
	veMinRPM         = 400.0
	seaLevelDensity  = 1.225
	standardTempK    = 288.15
	kelvinOffset     = 273.15
	stoichAFR        = 14.7
	fuelDensityGPerL = 740.0
)

// DefaultPollInterval is the assumed time between frames used to integrate
// cumulative fuel.
const DefaultPollInterval = 100 * time.Millisecond

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures an Engine.
type Options struct {
	// PollInterval is the configured frame interval. Cumulative fuel is
	// integrated with this fixed step, not measured wall-clock deltas.
	PollInterval time.Duration

	// Recorder, when set, receives every record with rpm > 0.
	Recorder telemetry.Recorder

	// OnRecordError is called once when the recorder fails. The recorder
	// is detached afterwards and computation continues.
	OnRecordError func(err error)

	// OnLapComplete is called when a 0-100 run finishes.
	OnLapComplete func(d time.Duration)

	Clock Clock
}

// Engine is the metric engine.
type Engine struct {
	profile EngineProfile
	opts    Options
	clock   Clock

	cumFuel     float64
	trim        TrimWindow
	fuelMap     FuelMap
	perf        PerfTimer
	leaderboard Leaderboard
}

// New creates an engine for the given profile. The profile must come from
// NewEngineProfile or DefaultProfile.
func New(profile EngineProfile, opts Options) (*Engine, error) {
	if _, err := NewEngineProfile(profile.DisplacementLiters); err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Engine{
		profile: profile,
		opts:    opts,
		clock:   clock,
	}, nil
}

// SetProfile swaps the engine profile between frames.
func (e *Engine) SetProfile(p EngineProfile) error {
	if _, err := NewEngineProfile(p.DisplacementLiters); err != nil {
		return err
	}
	e.profile = p
	return nil
}

// Profile returns the current profile.
func (e *Engine) Profile() EngineProfile {
	return e.profile
}

// SetRecorder attaches or detaches (nil) the log recorder.
func (e *Engine) SetRecorder(r telemetry.Recorder) {
	e.opts.Recorder = r
}

// Recording reports whether a recorder is attached.
func (e *Engine) Recording() bool {
	return e.opts.Recorder != nil
}

// Poll reads one frame from src and processes it. A nil or disconnected
// source yields all-zero metrics and leaves running state untouched.
func (e *Engine) Poll(ctx context.Context, src source.SampleSource) telemetry.DerivedMetrics {
	if src == nil || !src.IsConnected() {
		return telemetry.DerivedMetrics{}
	}
	return e.Process(source.ReadFrame(ctx, src))
}

// Process derives metrics from one frame and updates running state.
// Absent readings count as zero, except intake temperature which
// defaults to telemetry.DefaultIntakeTemp.
func (e *Engine) Process(raw telemetry.RawFrame) telemetry.DerivedMetrics {
	now := e.clock.Now()

	rpm := raw.RPM.Or(0)
	speed := raw.Speed.Or(0)
	maf := raw.MAF.Or(0)
	coolant := raw.Coolant.Or(0)
	load := raw.Load.Or(0)
	trim := raw.FuelTrim.Or(0)
	intake := raw.IntakeTemp.Or(telemetry.DefaultIntakeTemp)

	hp := maf * hpPerMAF

	var torque float64
	if rpm > torqueMinRPM {
		torque = hp * torqueConstant / rpm
	}

	density := seaLevelDensity * standardTempK / (kelvinOffset + intake)

	var ve float64
	if rpm > veMinRPM {
		theoretical := rpm * e.profile.DisplacementLiters * density / 120 * 1000
		if theoretical > 0 {
			ve = maf / theoretical * 100
		}
	}

	fuelRate := maf * 3600 / (stoichAFR * fuelDensityGPerL)
	e.cumFuel += fuelRate * e.opts.PollInterval.Seconds() / 3600

	e.trim.Add(trim)
	stability := e.trim.Stability()

	if d, done := e.perf.Observe(speed, now); done {
		e.leaderboard.Insert(d)
		if e.opts.OnLapComplete != nil {
			e.opts.OnLapComplete(d)
		}
	}

	e.fuelMap.Update(rpm, load, fuelRate)

	m := telemetry.DerivedMetrics{
		RPM:             rpm,
		Speed:           speed,
		HP:              hp,
		Torque:          torque,
		VEPercent:       ve,
		FuelRateLPH:     fuelRate,
		Coolant:         coolant,
		Load:            load,
		CumulativeFuelL: e.cumFuel,
		TrimStability:   stability,
		IntakeTemp:      intake,
	}

	if e.opts.Recorder != nil && rpm > 0 {
		if err := e.opts.Recorder.Append(telemetry.LogRecord{Timestamp: now, Metrics: m}); err != nil {
			e.opts.Recorder = nil
			if e.opts.OnRecordError != nil {
				e.opts.OnRecordError(err)
			}
		}
	}

	return m
}

// CumulativeFuel returns liters consumed so far.
func (e *Engine) CumulativeFuel() float64 {
	return e.cumFuel
}

// TrimSamples returns the current trim window, oldest first.
func (e *Engine) TrimSamples() []float64 {
	return e.trim.Samples()
}

// FuelMap returns a copy of the fuel map.
func (e *Engine) FuelMap() FuelMapGrid {
	return e.fuelMap.Snapshot()
}

// Leaderboard returns a copy of the best 0-100 times.
func (e *Engine) Leaderboard() []time.Duration {
	return e.leaderboard.Times()
}

// ResetLeaderboard clears the 0-100 times.
func (e *Engine) ResetLeaderboard() {
	e.leaderboard.Reset()
}
