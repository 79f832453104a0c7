package config

import (
	"bytes"
	"errors"
	"flag"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

func TestFlagType(t *testing.T) {
	testCases := []struct {
		name     string
		defValue string
		expected string
	}{
		{"bool true", "true", ""},
		{"bool false", "false", ""},
		{"int", "42", "int"},
		{"string", "hello", "string"},
		{"duration seconds", "5s", "duration"},
		{"duration millis", "100ms", "duration"},
		{"duration hours", "1h", "duration"},
		{"float", "1.5", "int"}, // Sscanf parses "1" then stops at decimal
		{"empty", "", "string"},
		{"zero", "0", "int"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &flag.Flag{DefValue: tc.defValue}
			if got := flagType(f); got != tc.expected {
				t.Errorf("flagType(%q) = %q, want %q", tc.defValue, got, tc.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Verify critical defaults
	if cfg.Mode != "mock" {
		t.Errorf("Mode = %q, want mock", cfg.Mode)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", cfg.PollInterval)
	}
	if cfg.ReplayCadence != 100*time.Millisecond {
		t.Errorf("ReplayCadence = %v, want 100ms", cfg.ReplayCadence)
	}
	if cfg.Tonnage != 1.5 {
		t.Errorf("Tonnage = %v, want 1.5", cfg.Tonnage)
	}
	if cfg.LogDir != "TelemetryLogs" {
		t.Errorf("LogDir = %q, want TelemetryLogs", cfg.LogDir)
	}
	if !cfg.LoggingEnabled {
		t.Error("LoggingEnabled should be true by default")
	}
	if !cfg.TUIEnabled {
		t.Error("TUIEnabled should be true by default")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if cfg.BackoffMultiply < 1.0 {
		t.Errorf("BackoffMultiply = %f, should be >= 1.0", cfg.BackoffMultiply)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SourceMode(t *testing.T) {
	tests := []struct {
		mode string
		want telemetry.SourceMode
	}{
		{"live", telemetry.ModeLive},
		{"mock", telemetry.ModeMock},
		{"replay", telemetry.ModeReplay},
		{"bogus", telemetry.ModeMock},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = tt.mode
			if got := cfg.SourceMode(); got != tt.want {
				t.Errorf("SourceMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "serial" }, "mode"},
		{"replay without path", func(c *Config) { c.Mode = "replay" }, "replay_path"},
		{"zero cadence", func(c *Config) { c.ReplayCadence = 0 }, "replay_cadence"},
		{"zero speed", func(c *Config) { c.ReplaySpeed = 0 }, "replay_speed"},
		{"NaN speed", func(c *Config) { c.ReplaySpeed = math.NaN() }, "replay_speed"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"zero displacement", func(c *Config) { c.DisplacementLiters = 0 }, "displacement_liters"},
		{"negative displacement", func(c *Config) { c.DisplacementLiters = -1.6 }, "displacement_liters"},
		{"infinite displacement", func(c *Config) { c.DisplacementLiters = math.Inf(1) }, "displacement_liters"},
		{"zero tonnage", func(c *Config) { c.Tonnage = 0 }, "tonnage"},
		{"vehicle without catalog", func(c *Config) { c.Vehicle = "Golf" }, "vehicle"},
		{"search without catalog", func(c *Config) { c.VehicleSearch = "golf" }, "vehicle_search"},
		{"logging without dir", func(c *Config) { c.LogDir = "" }, "log_dir"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, "connect_timeout"},
		{"zero backoff initial", func(c *Config) { c.BackoffInitial = 0 }, "backoff_initial"},
		{"max below initial", func(c *Config) { c.BackoffMax = 100 * time.Millisecond }, "backoff_max"},
		{"multiplier below one", func(c *Config) { c.BackoffMultiply = 0.5 }, "backoff_multiply"},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }, "duration"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %s", err, tt.field)
			}
		})
	}
}

func TestValidate_LoggingDisabledNeedsNoDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoggingEnabled = false
	cfg.LogDir = ""

	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ReplayWithPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "replay"
	cfg.ReplayPath = "run_log_1.csv"

	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "serial"
	cfg.PollInterval = 0
	cfg.Tonnage = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected multiple errors")
	}

	errStr := err.Error()
	for _, field := range []string{"mode", "poll_interval", "tonnage"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("Error should mention %s", field)
		}
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "replay"

	ApplyCheckMode(cfg)

	if cfg.Mode != "mock" {
		t.Errorf("Mode = %q, want mock", cfg.Mode)
	}
	if cfg.Duration != 10*time.Second {
		t.Errorf("Duration = %v, want 10s", cfg.Duration)
	}
	if cfg.TUIEnabled {
		t.Error("TUI should be disabled in check mode")
	}
	if !cfg.Verbose {
		t.Error("Verbose should be enabled in check mode")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "mode", Message: "must be one of: live, mock, replay"}
	if got := err.Error(); got != "mode: must be one of: live, mock, replay" {
		t.Errorf("Error() = %q", got)
	}
}

// =============================================================================
// ParseArgs
// =============================================================================

func TestParseArgs_Defaults(t *testing.T) {
	cfg, err := ParseArgs(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("ParseArgs(nil) = %+v, want defaults", cfg)
	}
}

func TestParseArgs_Flags(t *testing.T) {
	args := []string{
		"-mode", "replay",
		"-replay", "run.csv",
		"-replay-speed", "2.5",
		"-displacement", "1.6",
		"-poll-interval", "50ms",
		"-log=false",
		"-tui=false",
		"-metrics", "",
	}
	cfg, err := ParseArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if cfg.Mode != "replay" || cfg.ReplayPath != "run.csv" {
		t.Errorf("mode/replay = %q/%q", cfg.Mode, cfg.ReplayPath)
	}
	if cfg.ReplaySpeed != 2.5 || cfg.DisplacementLiters != 1.6 {
		t.Errorf("speed/displacement = %v/%v", cfg.ReplaySpeed, cfg.DisplacementLiters)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.LoggingEnabled || cfg.TUIEnabled || cfg.MetricsAddr != "" {
		t.Errorf("logging=%v tui=%v metrics=%q", cfg.LoggingEnabled, cfg.TUIEnabled, cfg.MetricsAddr)
	}
}

func TestParseArgs_Help(t *testing.T) {
	var out bytes.Buffer
	_, err := ParseArgs([]string{"-h"}, &out)
	if !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("err = %v, want ErrHelpRequested", err)
	}
	for _, want := range []string{"Source Flags:", "-mode", "-ghost", "Run Log:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-clients", "10"}},
		{"bad duration", []string{"-poll-interval", "fast"}},
		{"positional argument", []string{"extra"}},
		{"missing config file", []string{"-config", "/nonexistent/obd.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.args, &bytes.Buffer{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// =============================================================================
// Config file
// =============================================================================

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "obd.yaml", `
mode: replay
replay_path: runs/run_log_1.csv
ghost_path: runs/run_log_0.csv
replay_speed: 2
poll_interval: 200ms
displacement_liters: 1.4
logging_enabled: false
tui: false
mock_seed: 7
`)
	cfg := DefaultConfig()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Mode != "replay" || cfg.ReplayPath != "runs/run_log_1.csv" || cfg.GhostPath != "runs/run_log_0.csv" {
		t.Errorf("paths = %q %q %q", cfg.Mode, cfg.ReplayPath, cfg.GhostPath)
	}
	if cfg.ReplaySpeed != 2 || cfg.DisplacementLiters != 1.4 {
		t.Errorf("speed/displacement = %v/%v", cfg.ReplaySpeed, cfg.DisplacementLiters)
	}
	if cfg.PollInterval != 200*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.LoggingEnabled || cfg.TUIEnabled {
		t.Errorf("logging=%v tui=%v, want both false", cfg.LoggingEnabled, cfg.TUIEnabled)
	}
	if cfg.MockSeed != 7 {
		t.Errorf("MockSeed = %d, want 7", cfg.MockSeed)
	}

	// Keys absent from the file keep their defaults.
	if cfg.LogDir != "TelemetryLogs" || cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("defaults lost: log_dir=%q shutdown=%v", cfg.LogDir, cfg.ShutdownTimeout)
	}
}

func TestParseArgs_VehicleSearch(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantSearch bool
		wantErr    bool
	}{
		{"unset", []string{"-vehicle-db", "cars.db"}, false, false},
		{"with catalog", []string{"-vehicle-db", "cars.db", "-vehicle-search", "subaru"}, true, false},
		{"without catalog", []string{"-vehicle-search", "subaru"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseArgs(tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("ParseArgs: %v", err)
			}
			if cfg.SearchOnly() != tt.wantSearch {
				t.Errorf("SearchOnly() = %v, want %v", cfg.SearchOnly(), tt.wantSearch)
			}
			if err := Validate(cfg); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "obd.json", `{"vehicle_db": "cars.db", "vehicle": "Golf GTI", "tonnage": 1.3}`)
	cfg := DefaultConfig()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.VehicleDB != "cars.db" || cfg.Vehicle != "Golf GTI" || cfg.Tonnage != 1.3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParseArgs_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "obd.yaml", "mode: replay\nreplay_path: a.csv\ndisplacement_liters: 1.4\n")

	cfg, err := ParseArgs([]string{"-config", path, "-displacement", "3.0"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if cfg.DisplacementLiters != 3.0 {
		t.Errorf("DisplacementLiters = %v, want flag value 3.0", cfg.DisplacementLiters)
	}
	if cfg.Mode != "replay" || cfg.ReplayPath != "a.csv" {
		t.Errorf("file values lost: mode=%q replay=%q", cfg.Mode, cfg.ReplayPath)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}
