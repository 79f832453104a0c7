// This file implements the exit summary formatter which displays run
// statistics at program exit.

package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Mode is the source mode of the run (live, mock, replay)
	Mode string

	// Duration is the total run duration
	Duration time.Duration

	// LogPath is the telemetry log written during the run, if any
	LogPath string

	// LogRows is the number of records persisted
	LogRows int64

	// LogError is the reason logging was disabled mid-run, if it was
	LogError string

	// Leaderboard holds the best 0-100 times, fastest first
	Leaderboard []time.Duration

	// Reconnects is the number of successful source reconnects
	Reconnects int

	// ReplayedFrames counts frames emitted by the replay and ghost streams
	ReplayedFrames int64
	GhostFrames    int64

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string
}

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

func writeSection(b *strings.Builder, title string) {
	b.WriteString(ruleLight)
	fmt.Fprintf(b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(ruleLight)
	b.WriteString("\n")
}

// FormatExitSummary formats run statistics for display at program exit.
//
// The summary includes:
// - Run information
// - Engine output percentiles (only frames with the engine running)
// - Fuel totals
// - 0-100 leaderboard
// - Diagnosis counts per severity
// - Logging and connection notes
func FormatExitSummary(sum RunSummary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                          go-obd-telemetry Exit Summary\n")
	b.WriteString(ruleHeavy)
	b.WriteString("\n")

	// Run info
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	if cfg.Mode != "" {
		fmt.Fprintf(&b, "Source Mode:            %s\n", cfg.Mode)
	}
	fmt.Fprintf(&b, "Frames:                 %s (%s with engine running)\n\n",
		FormatNumber(sum.Frames),
		FormatNumber(sum.ActiveFrames),
	)

	// Engine output
	if sum.ActiveFrames > 0 {
		writeSection(&b, "Engine Output")

		fmt.Fprintf(&b, "  %-20s %12s %12s %12s\n", "Metric", "P50", "P95", "Max")
		b.WriteString("  " + strings.Repeat("─", 58) + "\n")
		rows := []struct {
			name string
			d    Distribution
		}{
			{"Horsepower (hp)", sum.HP},
			{"Torque (Nm)", sum.Torque},
			{"VE (%)", sum.VE},
			{"Fuel rate (L/h)", sum.FuelRate},
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "  %-20s %12.1f %12.1f %12.1f\n", r.name, r.d.P50, r.d.P95, r.d.Max)
		}
		b.WriteString("\n")
	}

	// Fuel
	writeSection(&b, "Fuel")
	fmt.Fprintf(&b, "  Total Consumed:       %s\n", FormatLiters(sum.TotalFuelL))
	if hours := cfg.Duration.Hours(); hours > 0 {
		fmt.Fprintf(&b, "  Average Rate:         %.2f L/h\n", sum.TotalFuelL/hours)
	}
	b.WriteString("\n")

	// Leaderboard
	if len(cfg.Leaderboard) > 0 {
		writeSection(&b, "0-100 km/h")
		for i, d := range cfg.Leaderboard {
			fmt.Fprintf(&b, "  #%d  %s\n", i+1, FormatLapTime(d))
		}
		b.WriteString("\n")
	}

	// Diagnostics
	if len(sum.Severities) > 0 {
		writeSection(&b, "Diagnostics")
		for _, sev := range []diagnostics.Severity{
			diagnostics.SeverityInfo,
			diagnostics.SeverityCaution,
			diagnostics.SeverityCritical,
		} {
			n := sum.Severities[sev]
			pct := 0.0
			if sum.Frames > 0 {
				pct = float64(n) / float64(sum.Frames) * 100
			}
			fmt.Fprintf(&b, "  %-20s %10s  (%5.1f%%)\n", sev.String()+":", FormatNumber(n), pct)
		}
		b.WriteString("\n")
	}

	// Replay
	if cfg.ReplayedFrames > 0 || cfg.GhostFrames > 0 {
		writeSection(&b, "Replay")
		if cfg.ReplayedFrames > 0 {
			fmt.Fprintf(&b, "  Replayed Frames:      %s\n", FormatNumber(cfg.ReplayedFrames))
		}
		if cfg.GhostFrames > 0 {
			fmt.Fprintf(&b, "  Ghost Frames:         %s\n", FormatNumber(cfg.GhostFrames))
		}
		b.WriteString("\n")
	}

	// Notes
	notes := renderNotes(cfg)
	if notes != "" {
		b.WriteString(notes)
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(ruleHeavy)

	return b.String()
}

// renderNotes adds logging and connection info that doesn't belong in the main metrics.
func renderNotes(cfg SummaryConfig) string {
	var notes []string

	if cfg.LogPath != "" {
		notes = append(notes, fmt.Sprintf("Telemetry log: %s (%s rows)", cfg.LogPath, FormatNumber(cfg.LogRows)))
	}
	if cfg.LogError != "" {
		notes = append(notes, fmt.Sprintf("Logging disabled mid-run: %s", cfg.LogError))
	}
	if cfg.Reconnects > 0 {
		notes = append(notes, fmt.Sprintf("Source reconnects: %d", cfg.Reconnects))
	}

	if len(notes) == 0 {
		return ""
	}

	var b strings.Builder
	writeSection(&b, "Notes")
	for _, n := range notes {
		fmt.Fprintf(&b, "  %s\n", n)
	}
	b.WriteString("\n")
	return b.String()
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatLiters formats a fuel volume, switching to millilitres below 1 L.
func FormatLiters(l float64) string {
	if l < 1 {
		return fmt.Sprintf("%.0f mL", l*1000)
	}
	return fmt.Sprintf("%.2f L", l)
}

// FormatLapTime formats a 0-100 time with hundredths of a second.
func FormatLapTime(d time.Duration) string {
	return fmt.Sprintf("%.2f s", d.Seconds())
}
