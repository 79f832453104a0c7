// Package telemetry defines the data model shared by the metric engine,
// the telemetry log, the replayer and presentation consumers.
//
// DerivedMetrics has a fixed positional layout. Consumers that work with
// the flat form (log rows, replay, sinks) rely on FieldNames ordering, so
// fields must never be reordered, added or removed.
package telemetry

import "time"

// FieldCount is the number of fields in a DerivedMetrics record.
const FieldCount = 11

// DefaultIntakeTemp is used whenever an intake-temperature reading is absent.
const DefaultIntakeTemp = 25.0

// FieldNames are the persisted column names of DerivedMetrics, in contract order.
var FieldNames = [FieldCount]string{
	"rpm",
	"speed",
	"hp",
	"torque",
	"ve",
	"fuel_rate",
	"coolant",
	"load",
	"fuel_total",
	"stability",
	"temp_in",
}

// Reading is one nullable sensor value. A sensor that did not answer in a
// given poll yields an invalid Reading, which is distinct from zero.
type Reading struct {
	Value float64
	Valid bool
}

// Value returns a valid Reading holding v.
func Value(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Null is the absent Reading.
var Null = Reading{}

// Or returns the reading's value, or def when the reading is absent.
func (r Reading) Or(def float64) float64 {
	if !r.Valid {
		return def
	}
	return r.Value
}

// RawFrame is one polled observation from a SampleSource.
type RawFrame struct {
	RPM        Reading
	Speed      Reading
	MAF        Reading
	Coolant    Reading
	Load       Reading
	FuelTrim   Reading
	IntakeTemp Reading
}

// DerivedMetrics is the record produced by the engine for every RawFrame.
type DerivedMetrics struct {
	RPM             float64
	Speed           float64
	HP              float64
	Torque          float64
	VEPercent       float64
	FuelRateLPH     float64
	Coolant         float64
	Load            float64
	CumulativeFuelL float64
	TrimStability   float64
	IntakeTemp      float64
}

// Values returns the metrics in contract order.
func (m DerivedMetrics) Values() [FieldCount]float64 {
	return [FieldCount]float64{
		m.RPM,
		m.Speed,
		m.HP,
		m.Torque,
		m.VEPercent,
		m.FuelRateLPH,
		m.Coolant,
		m.Load,
		m.CumulativeFuelL,
		m.TrimStability,
		m.IntakeTemp,
	}
}

// FromValues builds DerivedMetrics from a contract-ordered array.
func FromValues(v [FieldCount]float64) DerivedMetrics {
	return DerivedMetrics{
		RPM:             v[0],
		Speed:           v[1],
		HP:              v[2],
		Torque:          v[3],
		VEPercent:       v[4],
		FuelRateLPH:     v[5],
		Coolant:         v[6],
		Load:            v[7],
		CumulativeFuelL: v[8],
		TrimStability:   v[9],
		IntakeTemp:      v[10],
	}
}

// LogRecord is one persisted DerivedMetrics row.
type LogRecord struct {
	Timestamp time.Time
	Metrics   DerivedMetrics
}

// Sink receives every new record, live or replayed. Implementations must
// return quickly; a slow sink stalls the loop that feeds it.
type Sink func(m DerivedMetrics)

// Recorder persists records in the order they are produced.
type Recorder interface {
	Append(rec LogRecord) error
}
