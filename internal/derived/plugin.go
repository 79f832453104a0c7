// Package derived computes presentation-only ratios from derived metrics.
package derived

import "github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"

// DefaultTonnage is the vehicle mass assumed when none is configured.
const DefaultTonnage = 1.5

// minEconomySpeed is the speed at or below which l/100km is undefined.
const minEconomySpeed = 5.0

// Extras holds the plugin output.
type Extras struct {
	LPer100Km  float64
	HPPerTonne float64
}

// Plugin is stateless apart from its configured tonnage.
type Plugin struct {
	tonnage float64
}

// New creates a plugin. A non-positive tonnage falls back to DefaultTonnage.
func New(tonnage float64) Plugin {
	if !(tonnage > 0) {
		tonnage = DefaultTonnage
	}
	return Plugin{tonnage: tonnage}
}

// Tonnage returns the configured vehicle mass in tonnes.
func (p Plugin) Tonnage() float64 {
	if p.tonnage == 0 {
		return DefaultTonnage
	}
	return p.tonnage
}

// Extra computes fuel economy and power-to-weight for one record.
func (p Plugin) Extra(m telemetry.DerivedMetrics) Extras {
	var e Extras
	if m.Speed > minEconomySpeed && m.FuelRateLPH > 0 {
		e.LPer100Km = m.FuelRateLPH / m.Speed * 100
	}
	e.HPPerTonne = m.HP / p.Tonnage()
	return e
}
