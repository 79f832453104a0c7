package diagnostics

import (
	"testing"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

func TestDiagnose_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		m        telemetry.DerivedMetrics
		wantRule string
		wantSev  Severity
	}{
		{
			name:     "cold high rpm beats cold",
			m:        telemetry.DerivedMetrics{Coolant: 60, RPM: 4000},
			wantRule: "cold_high_rpm",
			wantSev:  SeverityCritical,
		},
		{
			name:     "cold high rpm beats shift up",
			m:        telemetry.DerivedMetrics{Coolant: 60, RPM: 4000, Speed: 90, Load: 20},
			wantRule: "cold_high_rpm",
			wantSev:  SeverityCritical,
		},
		{
			name:     "cold at moderate rpm",
			m:        telemetry.DerivedMetrics{Coolant: 40, RPM: 2000},
			wantRule: "cold_engine",
			wantSev:  SeverityCaution,
		},
		{
			name:     "cold at exactly 3500 is not high rpm",
			m:        telemetry.DerivedMetrics{Coolant: 69.9, RPM: 3500},
			wantRule: "cold_engine",
			wantSev:  SeverityCaution,
		},
		{
			name:     "cold beats rough idle",
			m:        telemetry.DerivedMetrics{Coolant: 50, RPM: 900, TrimStability: 8},
			wantRule: "cold_engine",
			wantSev:  SeverityCaution,
		},
		{
			name:     "overheating",
			m:        telemetry.DerivedMetrics{Coolant: 110, RPM: 2500},
			wantRule: "overheating",
			wantSev:  SeverityCritical,
		},
		{
			name:     "overheating beats shift up",
			m:        telemetry.DerivedMetrics{Coolant: 106, Speed: 90, Load: 20, RPM: 3200},
			wantRule: "overheating",
			wantSev:  SeverityCritical,
		},
		{
			name:     "shift up advisory",
			m:        telemetry.DerivedMetrics{Coolant: 90, Speed: 90, Load: 20, RPM: 3200},
			wantRule: "shift_up",
			wantSev:  SeverityInfo,
		},
		{
			name:     "rough idle",
			m:        telemetry.DerivedMetrics{Coolant: 90, Speed: 0, RPM: 800, TrimStability: 3.5},
			wantRule: "rough_idle",
			wantSev:  SeverityCaution,
		},
		{
			name:     "unstable trim while moving is not rough idle",
			m:        telemetry.DerivedMetrics{Coolant: 90, Speed: 40, RPM: 2000, TrimStability: 5},
			wantRule: "normal",
			wantSev:  SeverityInfo,
		},
		{
			name:     "boundaries are exclusive",
			m:        telemetry.DerivedMetrics{Coolant: 105, Speed: 80, Load: 30, RPM: 3000, TrimStability: 3.0},
			wantRule: "normal",
			wantSev:  SeverityInfo,
		},
		{
			name:     "normal",
			m:        telemetry.DerivedMetrics{Coolant: 90, Speed: 50, Load: 40, RPM: 2200},
			wantRule: "normal",
			wantSev:  SeverityInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diagnose(tt.m)
			if d.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", d.Rule, tt.wantRule)
			}
			if d.Severity != tt.wantSev {
				t.Errorf("Severity = %v, want %v", d.Severity, tt.wantSev)
			}
			if d.Advice == "" {
				t.Error("Advice should never be empty")
			}
		})
	}
}

func TestDiagnose_Messages(t *testing.T) {
	if d := Diagnose(telemetry.DerivedMetrics{Coolant: 60, RPM: 4000}); d.Advice != "High RPM on cold engine" {
		t.Errorf("Advice = %q", d.Advice)
	}
	if d := Diagnose(telemetry.DerivedMetrics{Coolant: 90, Speed: 90, Load: 20, RPM: 3200}); d.Advice != "Shift up to save fuel" {
		t.Errorf("Advice = %q", d.Advice)
	}
	if d := Diagnose(telemetry.DerivedMetrics{Coolant: 90}); d != Fallback {
		t.Errorf("Diagnose(normal) = %+v, want %+v", d, Fallback)
	}
}

func TestDiagnose_ZeroRecord(t *testing.T) {
	// A disconnected source yields an all-zero record, which reads as cold.
	d := Diagnose(telemetry.DerivedMetrics{})
	if d.Rule != "cold_engine" {
		t.Errorf("Rule = %q, want cold_engine", d.Rule)
	}
}

func TestEvaluate_CustomTable(t *testing.T) {
	rules := []Rule{
		{Name: "always", Match: func(telemetry.DerivedMetrics) bool { return true }, Severity: SeverityCaution, Advice: "a"},
		{Name: "never_reached", Match: func(telemetry.DerivedMetrics) bool { return true }, Severity: SeverityCritical, Advice: "b"},
	}
	if d := Evaluate(rules, telemetry.DerivedMetrics{}); d.Rule != "always" {
		t.Errorf("Evaluate picked %q, want first match", d.Rule)
	}
	if d := Evaluate(nil, telemetry.DerivedMetrics{}); d != Fallback {
		t.Errorf("Evaluate(nil) = %+v, want Fallback", d)
	}
}

func TestDefaultRules_Order(t *testing.T) {
	want := []string{"cold_high_rpm", "cold_engine", "overheating", "shift_up", "rough_idle"}
	if len(DefaultRules) != len(want) {
		t.Fatalf("len(DefaultRules) = %d, want %d", len(DefaultRules), len(want))
	}
	for i, name := range want {
		if DefaultRules[i].Name != name {
			t.Errorf("DefaultRules[%d] = %q, want %q", i, DefaultRules[i].Name, name)
		}
	}
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityInfo, "info"},
		{SeverityCaution, "caution"},
		{SeverityCritical, "critical"},
		{Severity(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
