package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrHelpRequested is returned when -h or -help is given.
var ErrHelpRequested = errors.New("help requested")

// ParseFlags parses os.Args and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args into a Config. Values come from DefaultConfig,
// then the -config file if one is given, then explicitly set flags.
func ParseArgs(args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("go-obd-telemetry", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printUsage(fs, output) }

	// Source
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, `Source: "live", "mock" or "replay"`)
	fs.StringVar(&cfg.ReplayPath, "replay", cfg.ReplayPath, "Run log to play back (replay mode)")
	fs.StringVar(&cfg.GhostPath, "ghost", cfg.GhostPath, "Run log to play back beside the main stream")
	fs.DurationVar(&cfg.ReplayCadence, "replay-cadence", cfg.ReplayCadence, "Interval between replayed records")
	fs.Float64Var(&cfg.ReplaySpeed, "replay-speed", cfg.ReplaySpeed, "Replay speed multiplier")
	fs.Int64Var(&cfg.MockSeed, "mock-seed", cfg.MockSeed, "Seed for the simulated drive cycle")

	// Engine
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Sensor poll interval")
	fs.Float64Var(&cfg.DisplacementLiters, "displacement", cfg.DisplacementLiters, "Engine displacement in liters")
	fs.Float64Var(&cfg.Tonnage, "tonnage", cfg.Tonnage, "Vehicle mass in tonnes for hp/tonne")

	// Vehicle catalog
	fs.StringVar(&cfg.VehicleDB, "vehicle-db", cfg.VehicleDB, "SQLite vehicle catalog (empty = disabled)")
	fs.StringVar(&cfg.Vehicle, "vehicle", cfg.Vehicle, "Vehicle model to load from the catalog")
	fs.StringVar(&cfg.VehicleSearch, "vehicle-search", cfg.VehicleSearch, "List catalog models containing this text, then exit")

	// Telemetry log
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for run logs")
	fs.BoolVar(&cfg.LoggingEnabled, "log", cfg.LoggingEnabled, "Persist derived frames (use -log=false to disable)")
	fs.BoolVar(&cfg.LogSync, "log-sync", cfg.LogSync, "fsync the run log after every row")

	// Source reconnect
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Timeout for one source connect attempt")
	fs.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "First reconnect delay")
	fs.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "Maximum reconnect delay")
	fs.Float64Var(&cfg.BackoffMultiply, "backoff-multiply", cfg.BackoffMultiply, "Reconnect delay multiplier")

	// Run control
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (0 = forever)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Bound on graceful shutdown")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (use -tui=false to disable)")

	// Diagnostics
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Run the mock source for 10 seconds without the dashboard")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Config file (yaml, json or toml)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if cfg.ConfigFile == "" {
		return cfg, nil
	}

	// Remember explicit flags so they win over the file.
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := LoadFile(cfg, cfg.ConfigFile); err != nil {
		return nil, err
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return nil, fmt.Errorf("reapply -%s: %w", name, err)
		}
	}

	return cfg, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `go-obd-telemetry - vehicle telemetry engine with logging and replay

Usage:
  go-obd-telemetry [flags]

Source Flags:
`)
	printFlagCategory(fs, w, []string{"mode", "replay", "ghost", "replay-cadence", "replay-speed", "mock-seed"})

	fmt.Fprintf(w, "\nEngine:\n")
	printFlagCategory(fs, w, []string{"poll-interval", "displacement", "tonnage"})

	fmt.Fprintf(w, "\nVehicle Catalog:\n")
	printFlagCategory(fs, w, []string{"vehicle-db", "vehicle", "vehicle-search"})

	fmt.Fprintf(w, "\nRun Log:\n")
	printFlagCategory(fs, w, []string{"log-dir", "log", "log-sync"})

	fmt.Fprintf(w, "\nReconnect:\n")
	printFlagCategory(fs, w, []string{"connect-timeout", "backoff-initial", "backoff-max", "backoff-multiply"})

	fmt.Fprintf(w, "\nRun Control:\n")
	printFlagCategory(fs, w, []string{"duration", "shutdown-timeout", "config"})

	fmt.Fprintf(w, "\nObservability:\n")
	printFlagCategory(fs, w, []string{"metrics", "v", "log-format", "tui"})

	fmt.Fprintf(w, "\nSafety & Diagnostics:\n")
	printFlagCategory(fs, w, []string{"check", "skip-preflight"})

	fmt.Fprintf(w, `
Examples:
  # Simulated drive with the dashboard
  go-obd-telemetry

  # Replay a previous run at double speed
  go-obd-telemetry -mode replay -replay TelemetryLogs/run_log_1717243200.csv -replay-speed 2

  # Race a previous run as a ghost
  go-obd-telemetry -ghost TelemetryLogs/run_log_1717243200.csv

  # Find a catalog model, then drive with it
  go-obd-telemetry -vehicle-db cars.db -vehicle-search subaru
  go-obd-telemetry -vehicle-db cars.db -vehicle "Subaru WRX STi"

`)
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
