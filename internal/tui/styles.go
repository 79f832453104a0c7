// Package tui provides a live terminal dashboard for a telemetry run.
//
// The model is a Bubble Tea program styled with Lipgloss. Each tick it
// reads the latest snapshot and redraws gauges, the diagnosis, fuel
// economy, the 0-100 leaderboard, the ghost comparison and the fuel map.
package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
)

// Gauge colour thresholds.
const (
	// WarmCoolantC is the coolant temperature above which the warm redline applies.
	WarmCoolantC = 75.0

	WarmRedlineRPM = 6000.0
	ColdRedlineRPM = 3500.0

	// StabilityWarning is the trim standard deviation shown as a warning.
	StabilityWarning = 2.5
)

// =============================================================================
// Instrument Cluster Palette
// =============================================================================

var (
	colorBacklight = lipgloss.Color("#0B3D91") // header bar
	colorNeedle    = lipgloss.Color("#FF8C00") // section titles

	colorGreen = lipgloss.Color("#39D353")
	colorAmber = lipgloss.Color("#FFB000")
	colorRed   = lipgloss.Color("#FF3B30")

	colorDial     = lipgloss.Color("#F2F2F2")
	colorDialSoft = lipgloss.Color("#A8B3C2")
	colorDialDim  = lipgloss.Color("#5C6773")
	colorBezel    = lipgloss.Color("#2B3340")
)

// heatPalette runs lean to rich for fuel map cells.
var heatPalette = []lipgloss.Color{
	"#0B3D91", "#1565C0", "#00897B", "#43A047",
	"#C0CA33", "#FFB000", "#FB8C00", "#FF3B30",
}

var (
	mutedStyle = lipgloss.NewStyle().Foreground(colorDialSoft)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDialDim)
	unitStyle  = dimStyle

	boxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBezel).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDial).
			Background(colorBacklight).Padding(0, 1).MarginBottom(1)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorNeedle).
				Border(lipgloss.NormalBorder(), false, false, true, false).
				BorderForeground(colorBezel)
	footerStyle = mutedStyle.MarginTop(1)

	statusOK      = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	statusWarning = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)
	statusError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)

	valueStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorDial)
	labelStyle      = mutedStyle.Width(14)
	gaugeEmptyStyle = lipgloss.NewStyle().Foreground(colorBezel)
)

// =============================================================================
// Thresholds
// =============================================================================

// Redline returns the rpm limit for the current coolant temperature.
func Redline(coolant float64) float64 {
	if coolant > WarmCoolantC {
		return WarmRedlineRPM
	}
	return ColdRedlineRPM
}

// RPMStyle colours rpm against the redline: red at or above it, amber in
// the last 15% below it.
func RPMStyle(rpm, coolant float64) lipgloss.Style {
	limit := Redline(coolant)
	switch {
	case rpm >= limit:
		return statusError
	case rpm >= limit*0.85:
		return statusWarning
	default:
		return statusOK
	}
}

// StabilityStyle flags an unsteady fuel trim.
func StabilityStyle(stability float64) lipgloss.Style {
	if stability > StabilityWarning {
		return statusWarning
	}
	return statusOK
}

// SeverityStyle maps a diagnosis severity to a colour.
func SeverityStyle(s diagnostics.Severity) lipgloss.Style {
	switch s {
	case diagnostics.SeverityCritical:
		return statusError
	case diagnostics.SeverityCaution:
		return statusWarning
	default:
		return statusOK
	}
}

// HeatColor picks a palette entry for v scaled between lo and hi.
func HeatColor(v, lo, hi float64) lipgloss.Color {
	if hi <= lo {
		return heatPalette[0]
	}
	idx := int((v - lo) / (hi - lo) * float64(len(heatPalette)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(heatPalette) {
		idx = len(heatPalette) - 1
	}
	return heatPalette[idx]
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderGauge draws value against full as a bar of at least 10 cells,
// followed by the formatted reading.
func RenderGauge(value, full float64, width int, style lipgloss.Style, formatted string) string {
	width = max(width, 10)
	filled := 0
	if full > 0 {
		filled = min(max(int(value/full*float64(width)), 0), width)
	}
	return style.Render(strings.Repeat("█", filled)) +
		gaugeEmptyStyle.Render(strings.Repeat("░", width-filled)) +
		" " + style.Render(formatted)
}

// RenderKeyValue renders "label: value unit".
func RenderKeyValue(label, value, unit string) string {
	out := labelStyle.Render(label+":") + valueStyle.Render(value)
	if unit != "" {
		out += unitStyle.Render(" " + unit)
	}
	return out
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
