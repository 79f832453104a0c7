package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
	"github.com/randomizedcoder/go-obd-telemetry/internal/stats"
)

// Gauge full-scale values.
const (
	gaugeMaxRPM   = 8000.0
	gaugeMaxSpeed = 240.0
	gaugeMaxLoad  = 100.0
)

// heatRPMStride merges rpm bins so the grid fits an 80 column terminal.
const heatRPMStride = 2

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderDashboard() string {
	sections := []string{m.renderHeader()}

	if m.snap == nil {
		sections = append(sections,
			boxStyle.Width(m.boxWidth()).Render(mutedStyle.Render("Waiting for first frame...")))
		sections = append(sections, m.renderFooter())
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections,
		m.renderDiagnosis(),
		m.renderGauges(),
		m.renderEconomy(),
	)
	if m.ghost != nil {
		sections = append(sections, m.renderGhost())
	}
	sections = append(sections, m.renderLeaderboard())
	if m.snap.FuelMap != nil {
		sections = append(sections, m.renderFuelMap())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) boxWidth() int {
	if m.width < 40 {
		return 38
	}
	return m.width - 2
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	link := statusError.Render("● offline")
	logState := "log off"
	if m.snap != nil {
		if m.snap.Connected {
			link = statusOK.Render("● connected")
		}
		if m.snap.Logging {
			logState = "log on"
		}
	}

	title := " go-obd-telemetry"
	if m.vehicle != "" {
		title += " │ " + m.vehicle
	}
	header := fmt.Sprintf("%s │ %s │ %s │ %s │ Elapsed: %s ",
		title, m.mode, link, logState, stats.FormatDuration(m.Elapsed()))

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Diagnosis
// =============================================================================

func (m Model) renderDiagnosis() string {
	d := m.snap.Diagnosis
	line := SeverityStyle(d.Severity).Render(fmt.Sprintf("[%s] %s", strings.ToUpper(d.Severity.String()), d.Advice))
	return boxStyle.Width(m.boxWidth()).Render(line)
}

// =============================================================================
// Gauges
// =============================================================================

func (m Model) renderGauges() string {
	mt := m.snap.Metrics
	barWidth := m.boxWidth() - 32
	if barWidth < 10 {
		barWidth = 10
	}

	rpmStyle := RPMStyle(mt.RPM, mt.Coolant)
	rows := []string{
		sectionHeaderStyle.Render("Engine"),
		gaugeRow("RPM", RenderGauge(mt.RPM, gaugeMaxRPM, barWidth, rpmStyle,
			fmt.Sprintf("%.0f / %.0f", mt.RPM, Redline(mt.Coolant)))),
		gaugeRow("Speed", RenderGauge(mt.Speed, gaugeMaxSpeed, barWidth, valueStyle,
			fmt.Sprintf("%.0f km/h", mt.Speed))),
		gaugeRow("Load", RenderGauge(mt.Load, gaugeMaxLoad, barWidth, valueStyle,
			fmt.Sprintf("%.0f%%", mt.Load))),
		RenderKeyValue("Power", formatFloat(mt.HP, 1), "hp"),
		RenderKeyValue("Torque", formatFloat(mt.Torque, 1), "Nm"),
		RenderKeyValue("VE", formatFloat(mt.VEPercent, 1), "%"),
		RenderKeyValue("Coolant", formatFloat(mt.Coolant, 0), "°C"),
		RenderKeyValue("Intake", formatFloat(mt.IntakeTemp, 0), "°C"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Trim σ:"),
			StabilityStyle(mt.TrimStability).Render(formatFloat(mt.TrimStability, 2)),
		),
	}
	return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func gaugeRow(label, gauge string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render(label+":"), gauge)
}

// =============================================================================
// Fuel and Economy
// =============================================================================

func (m Model) renderEconomy() string {
	mt := m.snap.Metrics
	f := m.snap.Fuel
	x := m.snap.Extras

	economy := "-"
	if x.LPer100Km > 0 {
		economy = formatFloat(x.LPer100Km, 1)
	}

	rows := []string{
		sectionHeaderStyle.Render("Fuel"),
		RenderKeyValue("Rate", formatFloat(mt.FuelRateLPH, 2), "L/h"),
		RenderKeyValue("Used", formatFloat(mt.CumulativeFuelL, 3), "L"),
		RenderKeyValue("Economy", economy, "L/100km"),
		RenderKeyValue("Power/weight", formatFloat(x.HPPerTonne, 1), "hp/t"),
		mutedStyle.Render(fmt.Sprintf("avg L/h  1s %.2f │ 30s %.2f │ 60s %.2f │ 5m %.2f",
			f.Avg1s, f.Avg30s, f.Avg60s, f.Avg300s)),
	}
	return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Ghost
// =============================================================================

func (m Model) renderGhost() string {
	delta, _ := m.GhostDelta()
	style := statusOK
	if delta < 0 {
		style = statusWarning
	}

	progress := "-"
	if m.ghost.Total > 0 {
		progress = fmt.Sprintf("%d/%d", m.ghost.Emitted, m.ghost.Total)
	}

	rows := []string{
		sectionHeaderStyle.Render("Ghost"),
		RenderKeyValue("Ghost speed", formatFloat(m.ghost.Metrics.Speed, 0), "km/h"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Delta:"),
			style.Render(fmt.Sprintf("%+.1f", delta)),
			unitStyle.Render(" km/h"),
		),
		RenderKeyValue("Frames", progress, ""),
	}
	return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Leaderboard
// =============================================================================

func (m Model) renderLeaderboard() string {
	rows := []string{sectionHeaderStyle.Render("0-100 km/h")}
	if len(m.snap.Leaderboard) == 0 {
		rows = append(rows, dimStyle.Render("no runs yet"))
	}
	for i, d := range m.snap.Leaderboard {
		line := fmt.Sprintf("%d. %s", i+1, formatLap(d))
		if i == 0 {
			line = statusOK.Render(line)
		}
		rows = append(rows, line)
	}
	return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Fuel Map
// =============================================================================

// renderFuelMap draws the grid with high load at the top and rpm rising
// to the right.
func (m Model) renderFuelMap() string {
	grid := m.snap.FuelMap
	lo, hi := grid.Range()

	rows := []string{sectionHeaderStyle.Render(fmt.Sprintf("Fuel map (L/h %.1f-%.1f)", lo, hi))}
	for l := engine.LoadBinCount - 1; l >= 0; l-- {
		var b strings.Builder
		b.WriteString(dimStyle.Render(fmt.Sprintf("%3.0f%% ", float64(l)*engine.LoadBinStep)))
		for r := 0; r < engine.RPMBinCount; r += heatRPMStride {
			v := grid[l][r]
			if r+1 < engine.RPMBinCount && grid[l][r+1] > v {
				v = grid[l][r+1]
			}
			cell := lipgloss.NewStyle().Foreground(HeatColor(v, lo, hi))
			if v == 0 {
				cell = gaugeEmptyStyle
			}
			b.WriteString(cell.Render("██"))
		}
		rows = append(rows, b.String())
	}
	rows = append(rows, dimStyle.Render(fmt.Sprintf("     0 rpm %s %.0f rpm",
		strings.Repeat(" ", engine.RPMBinCount-12), float64(engine.RPMBinCount-1)*engine.RPMBinStep)))

	return boxStyle.Width(m.boxWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	keys := "q quit"
	if m.controls != nil {
		keys = "q quit │ r reset leaderboard │ l toggle log"
	}
	if m.metricsAddr != "" {
		keys += " │ metrics http://" + m.metricsAddr + "/metrics"
	}
	if m.status != "" {
		keys += "\n" + m.status
	}
	return footerStyle.Render(keys)
}
