// Package source defines the boundary to the vehicle sensor adapter.
//
// The physical transport (serial, Bluetooth, Wi-Fi) lives outside this
// module. Hosts supply a SampleSource; MockSource is the built-in
// simulated one.
package source

import (
	"context"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// Signal names a sensor the adapter can be queried for.
type Signal string

// Signals polled once per frame.
const (
	SignalRPM         Signal = "RPM"
	SignalSpeed       Signal = "SPEED"
	SignalMAF         Signal = "MAF"
	SignalCoolantTemp Signal = "COOLANT_TEMP"
	SignalEngineLoad  Signal = "ENGINE_LOAD"
	SignalFuelTrim    Signal = "SHORT_FUEL_TRIM_1"
	SignalIntakeTemp  Signal = "INTAKE_TEMP"
)

// Signals lists every polled signal in poll order.
var Signals = []Signal{
	SignalRPM,
	SignalSpeed,
	SignalMAF,
	SignalCoolantTemp,
	SignalEngineLoad,
	SignalFuelTrim,
	SignalIntakeTemp,
}

// SampleSource is a sensor adapter. Query may block on transport latency;
// a null Reading means the signal is unsupported or unavailable this poll.
type SampleSource interface {
	IsConnected() bool
	Query(ctx context.Context, sig Signal) telemetry.Reading
}

// Connector is implemented by sources that can (re)establish their link.
type Connector interface {
	Connect(ctx context.Context) error
}

// ReadFrame queries every signal once and assembles a RawFrame.
// A cancelled context stops querying; the remaining signals are left null.
func ReadFrame(ctx context.Context, src SampleSource) telemetry.RawFrame {
	var f telemetry.RawFrame
	for _, sig := range Signals {
		if ctx.Err() != nil {
			break
		}
		r := src.Query(ctx, sig)
		switch sig {
		case SignalRPM:
			f.RPM = r
		case SignalSpeed:
			f.Speed = r
		case SignalMAF:
			f.MAF = r
		case SignalCoolantTemp:
			f.Coolant = r
		case SignalEngineLoad:
			f.Load = r
		case SignalFuelTrim:
			f.FuelTrim = r
		case SignalIntakeTemp:
			f.IntakeTemp = r
		}
	}
	return f
}
