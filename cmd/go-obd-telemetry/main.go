// Package main provides the go-obd-telemetry CLI entry point.
//
// go-obd-telemetry polls an engine sensor adapter (or a simulated one),
// derives power, torque, efficiency and fuel metrics, logs each run to
// CSV and can replay a previous run beside or instead of the live one.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/randomizedcoder/go-obd-telemetry/internal/config"
	"github.com/randomizedcoder/go-obd-telemetry/internal/logging"
	"github.com/randomizedcoder/go-obd-telemetry/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-obd-telemetry
var version = "dev"

// recentWarnings is how many retained warnings are printed after a
// dashboard run.
const recentWarnings = 10

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-obd-telemetry %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if errors.Is(err, config.ErrHelpRequested) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}
	if cfg.SearchOnly() {
		cfg.TUIEnabled = false
	}

	// The dashboard owns the terminal, so logs are discarded and only
	// warnings are kept for after the run.
	var out io.Writer = os.Stderr
	if cfg.TUIEnabled {
		out = io.Discard
	}
	recent := logging.NewRecentHandler(logging.NewHandler(out, cfg.LogFormat, "info", cfg.Verbose))
	logger := slog.New(recent)
	logging.SetDefault(logger)

	if cfg.Check {
		logger.Info("check_mode_enabled", "mode", cfg.Mode, "duration", cfg.Duration)
	}

	logger.Info("starting",
		"version", version,
		"mode", cfg.Mode,
		"poll_interval", cfg.PollInterval,
		"log_dir", cfg.LogDir,
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled && !cfg.SearchOnly() {
		printBanner(cfg)
	}

	orch := orchestrator.New(cfg, logger, orchestrator.Options{Version: version})
	runErr := orch.Run(context.Background())

	if cfg.TUIEnabled {
		printWarnings(recent)
	}

	if runErr != nil {
		logger.Error("orchestrator_failed", "error", runErr)
		if cfg.TUIEnabled {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		}
		return 1
	}
	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        go-obd-telemetry                           ║")
	fmt.Println("║        Engine telemetry: live, simulated or replayed              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Mode:        %s\n", cfg.Mode)
	switch {
	case cfg.Mode == "replay":
		fmt.Printf("  Replay:      %s (x%.1f)\n", cfg.ReplayPath, cfg.ReplaySpeed)
	case cfg.Vehicle != "":
		fmt.Printf("  Vehicle:     %s\n", cfg.Vehicle)
	default:
		fmt.Printf("  Engine:      %.1f L, %.2f t\n", cfg.DisplacementLiters, cfg.Tonnage)
	}
	if cfg.GhostPath != "" {
		fmt.Printf("  Ghost:       %s\n", cfg.GhostPath)
	}
	if cfg.LoggingEnabled && cfg.Mode != "replay" {
		fmt.Printf("  Log dir:     %s\n", cfg.LogDir)
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printWarnings reports what the discarded log would have shown.
func printWarnings(h *logging.RecentHandler) {
	counts := h.Counts()
	if len(counts) == 0 {
		return
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Warnings during run:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-28s x%d\n", name, counts[name])
	}
	for _, line := range h.RecentLines(recentWarnings) {
		fmt.Fprintf(os.Stderr, "  %s\n", line)
	}
}
