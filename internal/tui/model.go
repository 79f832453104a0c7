package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-obd-telemetry/internal/snapshot"
)

// refreshInterval is how often the dashboard re-reads the feed.
const refreshInterval = 100 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Feed supplies the frames to display.
type Feed interface {
	Snapshot() *snapshot.Snapshot
	Ghost() *snapshot.Ghost
}

// Controls are the runtime actions bound to keys. Nil disables them.
type Controls interface {
	ResetLeaderboard()
	SetLogging(enabled bool) bool
	Logging() bool
}

// Config holds TUI configuration.
type Config struct {
	Mode        string
	Vehicle     string
	MetricsAddr string
	Feed        Feed
	Controls    Controls
}

// Model represents the TUI state.
type Model struct {
	mode        string
	vehicle     string
	metricsAddr string

	feed     Feed
	controls Controls

	snap  *snapshot.Snapshot
	ghost *snapshot.Ghost

	// status is a one-line notice from the last key action.
	status string

	startTime time.Time
	width     int
	height    int
	quitting  bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		mode:        cfg.Mode,
		vehicle:     cfg.Vehicle,
		metricsAddr: cfg.MetricsAddr,
		feed:        cfg.Feed,
		controls:    cfg.Controls,
		startTime:   time.Now(),
		width:       80,
		height:      24,
	}
}

// Run drives the dashboard until the user quits or ctx is cancelled.
// Cancellation is not an error.
func Run(ctx context.Context, cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil) {
		return nil
	}
	return err
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.controls == nil {
				m.status = "leaderboard reset unavailable in this mode"
				return m, nil
			}
			m.controls.ResetLeaderboard()
			m.status = "leaderboard reset"
			return m, nil
		case "l":
			if m.controls == nil {
				m.status = "logging unavailable in this mode"
				return m, nil
			}
			want := !m.controls.Logging()
			if got := m.controls.SetLogging(want); got != want {
				m.status = "log unavailable"
			} else {
				m.status = fmt.Sprintf("logging %s", onOff(got))
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) refresh() {
	if m.feed == nil {
		return
	}
	m.snap = m.feed.Snapshot()
	m.ghost = m.feed.Ghost()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Commands
// =============================================================================

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns the frame currently displayed.
func (m Model) Snapshot() *snapshot.Snapshot {
	return m.snap
}

// Status returns the notice from the last key action.
func (m Model) Status() string {
	return m.status
}

// GhostDelta returns main speed minus ghost speed, and false when there is
// no ghost frame to compare against.
func (m Model) GhostDelta() (float64, bool) {
	if m.snap == nil || m.ghost == nil {
		return 0, false
	}
	return m.snap.Metrics.Speed - m.ghost.Metrics.Speed, true
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatLap formats a lap time as M:SS.mmm.
func formatLap(d time.Duration) string {
	m := int(d.Minutes())
	s := d.Seconds() - float64(m*60)
	return fmt.Sprintf("%d:%06.3f", m, s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
