// Package config provides configuration management for go-obd-telemetry.
package config

import (
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// Config holds all configuration options for the orchestrator.
type Config struct {
	// Source
	Mode          string        `json:"mode"` // live, mock, replay
	ReplayPath    string        `json:"replay_path"`
	GhostPath     string        `json:"ghost_path"`
	ReplayCadence time.Duration `json:"replay_cadence"`
	ReplaySpeed   float64       `json:"replay_speed"`
	MockSeed      int64         `json:"mock_seed"`

	// Engine
	PollInterval       time.Duration `json:"poll_interval"`
	DisplacementLiters float64       `json:"displacement_liters"`
	Tonnage            float64       `json:"tonnage"`

	// Vehicle catalog
	VehicleDB     string `json:"vehicle_db"` // empty = no catalog
	Vehicle       string `json:"vehicle"`
	VehicleSearch string `json:"vehicle_search"` // list matches and exit

	// Telemetry log
	LogDir         string `json:"log_dir"`
	LoggingEnabled bool   `json:"logging_enabled"`
	LogSync        bool   `json:"log_sync"`

	// Source reconnect
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	BackoffInitial  time.Duration `json:"backoff_initial"`
	BackoffMax      time.Duration `json:"backoff_max"`
	BackoffMultiply float64       `json:"backoff_multiply"`

	// Run control
	Duration        time.Duration `json:"duration"` // 0 = forever
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = no HTTP server
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
	TUIEnabled  bool   `json:"tui"`

	// Diagnostic modes
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`

	// ConfigFile is the file the values were loaded from, if any.
	ConfigFile string `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Source
		Mode:          "mock",
		ReplayCadence: 100 * time.Millisecond,
		ReplaySpeed:   1.0,
		MockSeed:      1,

		// Engine
		PollInterval:       100 * time.Millisecond,
		DisplacementLiters: 2.0,
		Tonnage:            1.5,

		// Telemetry log
		LogDir:         "TelemetryLogs",
		LoggingEnabled: true,

		// Source reconnect
		ConnectTimeout:  2 * time.Second,
		BackoffInitial:  500 * time.Millisecond,
		BackoffMax:      15 * time.Second,
		BackoffMultiply: 1.7,

		// Run control
		Duration:        0, // Forever
		ShutdownTimeout: 5 * time.Second,

		// Observability
		MetricsAddr: "127.0.0.1:17093",
		Verbose:     false,
		LogFormat:   "json",
		TUIEnabled:  true,
	}
}

// SourceMode returns the parsed Mode. Call Validate first; an unknown mode
// falls back to ModeMock.
func (c *Config) SourceMode() telemetry.SourceMode {
	mode, err := telemetry.ParseSourceMode(c.Mode)
	if err != nil {
		return telemetry.ModeMock
	}
	return mode
}

// GhostEnabled reports whether a ghost replay runs beside the main stream.
func (c *Config) GhostEnabled() bool {
	return c.GhostPath != ""
}

// SearchOnly reports whether the run only lists catalog matches.
func (c *Config) SearchOnly() bool {
	return c.VehicleSearch != ""
}

// VehicleCatalogEnabled reports whether the SQLite vehicle catalog is used.
func (c *Config) VehicleCatalogEnabled() bool {
	return c.VehicleDB != ""
}
