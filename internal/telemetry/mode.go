package telemetry

import "fmt"

// SourceMode identifies where the derived stream comes from.
type SourceMode int

const (
	// ModeLive reads from a physical adapter supplied by the host.
	ModeLive SourceMode = iota

	// ModeMock reads from the built-in simulated source.
	ModeMock

	// ModeReplay plays back a persisted run instead of computing one.
	ModeReplay
)

// String returns the configuration name of the mode.
func (m SourceMode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeMock:
		return "mock"
	case ModeReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// ParseSourceMode converts a configuration name into a SourceMode.
func ParseSourceMode(s string) (SourceMode, error) {
	switch s {
	case "live":
		return ModeLive, nil
	case "mock":
		return ModeMock, nil
	case "replay":
		return ModeReplay, nil
	default:
		return 0, fmt.Errorf("unknown source mode %q", s)
	}
}

// Computes reports whether the mode drives the metric engine.
func (m SourceMode) Computes() bool {
	return m == ModeLive || m == ModeMock
}
