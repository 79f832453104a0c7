// Package diagnostics turns derived metrics into a health advisory.
//
// Diagnosis is an ordered rule table evaluated first-match-wins. It is a
// pure function of one record and never fails.
package diagnostics

import "github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"

// Severity is a three-level ordinal. Presentation maps it to colour.
type Severity int

const (
	// SeverityInfo is informational (green).
	SeverityInfo Severity = iota

	// SeverityCaution needs attention (yellow).
	SeverityCaution

	// SeverityCritical is a fault (red).
	SeverityCritical
)

// String returns a human-readable name for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityCaution:
		return "caution"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Thresholds used by the default rules.
const (
	ColdCoolantC      = 70.0
	ColdRPMLimit      = 3500.0
	OverheatCoolantC  = 105.0
	ShiftUpSpeed      = 80.0
	ShiftUpMaxLoad    = 30.0
	ShiftUpRPM        = 3000.0
	RoughIdleMaxSpeed = 5.0
	RoughIdleTrimStd  = 3.0
)

// Rule is one entry of the diagnostic table.
type Rule struct {
	Name     string
	Match    func(m telemetry.DerivedMetrics) bool
	Severity Severity
	Advice   string
}

// Diagnosis is the result of evaluating a rule table.
type Diagnosis struct {
	Rule     string
	Severity Severity
	Advice   string
}

// Fallback is returned when no rule matches.
var Fallback = Diagnosis{Rule: "normal", Severity: SeverityInfo, Advice: "System normal"}

// DefaultRules is the diagnostic table in precedence order.
var DefaultRules = []Rule{
	{
		Name:     "cold_high_rpm",
		Match:    func(m telemetry.DerivedMetrics) bool { return m.Coolant < ColdCoolantC && m.RPM > ColdRPMLimit },
		Severity: SeverityCritical,
		Advice:   "High RPM on cold engine",
	},
	{
		Name:     "cold_engine",
		Match:    func(m telemetry.DerivedMetrics) bool { return m.Coolant < ColdCoolantC },
		Severity: SeverityCaution,
		Advice:   "Limit RPM, engine cold",
	},
	{
		Name:     "overheating",
		Match:    func(m telemetry.DerivedMetrics) bool { return m.Coolant > OverheatCoolantC },
		Severity: SeverityCritical,
		Advice:   "Overheating",
	},
	{
		Name: "shift_up",
		Match: func(m telemetry.DerivedMetrics) bool {
			return m.Speed > ShiftUpSpeed && m.Load < ShiftUpMaxLoad && m.RPM > ShiftUpRPM
		},
		Severity: SeverityInfo,
		Advice:   "Shift up to save fuel",
	},
	{
		Name: "rough_idle",
		Match: func(m telemetry.DerivedMetrics) bool {
			return m.Speed < RoughIdleMaxSpeed && m.TrimStability > RoughIdleTrimStd
		},
		Severity: SeverityCaution,
		Advice:   "Rough idle / possible misfire",
	},
}

// Evaluate returns the first matching rule's diagnosis, or Fallback.
func Evaluate(rules []Rule, m telemetry.DerivedMetrics) Diagnosis {
	for _, r := range rules {
		if r.Match(m) {
			return Diagnosis{Rule: r.Name, Severity: r.Severity, Advice: r.Advice}
		}
	}
	return Fallback
}

// Diagnose evaluates DefaultRules.
func Diagnose(m telemetry.DerivedMetrics) Diagnosis {
	return Evaluate(DefaultRules, m)
}
