package tui

import (
	"strings"
	"testing"

	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
)

// =============================================================================
// Tests: Redline
// =============================================================================

func TestRedline(t *testing.T) {
	tests := []struct {
		coolant float64
		want    float64
	}{
		{20, ColdRedlineRPM},
		{75, ColdRedlineRPM},
		{75.1, WarmRedlineRPM},
		{95, WarmRedlineRPM},
	}
	for _, tt := range tests {
		if got := Redline(tt.coolant); got != tt.want {
			t.Errorf("Redline(%v) = %v, want %v", tt.coolant, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: RPMStyle
// =============================================================================

func TestRPMStyle(t *testing.T) {
	tests := []struct {
		name    string
		rpm     float64
		coolant float64
		want    any
	}{
		{"warm cruise", 2500, 90, colorGreen},
		{"warm near redline", 5200, 90, colorAmber},
		{"warm at redline", 6000, 90, colorRed},
		{"cold cruise", 2000, 40, colorGreen},
		{"cold near redline", 3100, 40, colorAmber},
		{"cold over redline", 4000, 40, colorRed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RPMStyle(tt.rpm, tt.coolant).GetForeground()
			if got != tt.want {
				t.Errorf("RPMStyle(%v, %v) foreground = %v, want %v", tt.rpm, tt.coolant, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: StabilityStyle / SeverityStyle
// =============================================================================

func TestStabilityStyle(t *testing.T) {
	if got := StabilityStyle(2.5).GetForeground(); got != colorGreen {
		t.Errorf("StabilityStyle(2.5) = %v, want success", got)
	}
	if got := StabilityStyle(2.6).GetForeground(); got != colorAmber {
		t.Errorf("StabilityStyle(2.6) = %v, want warning", got)
	}
}

func TestSeverityStyle(t *testing.T) {
	tests := []struct {
		sev  diagnostics.Severity
		want any
	}{
		{diagnostics.SeverityInfo, colorGreen},
		{diagnostics.SeverityCaution, colorAmber},
		{diagnostics.SeverityCritical, colorRed},
	}
	for _, tt := range tests {
		t.Run(tt.sev.String(), func(t *testing.T) {
			if got := SeverityStyle(tt.sev).GetForeground(); got != tt.want {
				t.Errorf("SeverityStyle(%v) = %v, want %v", tt.sev, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: HeatColor
// =============================================================================

func TestHeatColor(t *testing.T) {
	last := heatPalette[len(heatPalette)-1]
	tests := []struct {
		name      string
		v, lo, hi float64
		want      any
	}{
		{"flat range", 5, 5, 5, heatPalette[0]},
		{"minimum", 0, 0, 10, heatPalette[0]},
		{"maximum", 10, 0, 10, last},
		{"below range", -5, 0, 10, heatPalette[0]},
		{"above range", 50, 0, 10, last},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeatColor(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Errorf("HeatColor(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: RenderGauge
// =============================================================================

func TestRenderGauge(t *testing.T) {
	tests := []struct {
		name       string
		value, max float64
		width      int
		wantFilled int
	}{
		{"empty", 0, 100, 20, 0},
		{"half", 50, 100, 20, 10},
		{"full", 100, 100, 20, 20},
		{"overflow clamps", 150, 100, 20, 20},
		{"negative clamps", -10, 100, 20, 0},
		{"zero max", 10, 0, 20, 0},
		{"minimum width", 50, 100, 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderGauge(tt.value, tt.max, tt.width, valueStyle, "x")
			if n := strings.Count(got, "█"); n != tt.wantFilled {
				t.Errorf("filled = %d, want %d (%q)", n, tt.wantFilled, got)
			}
		})
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v    float64
		prec int
		want string
	}{
		{3.14159, 2, "3.14"},
		{90, 0, "90"},
		{0.1256, 3, "0.126"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.v, tt.prec); got != tt.want {
			t.Errorf("formatFloat(%v, %d) = %q, want %q", tt.v, tt.prec, got, tt.want)
		}
	}
}
