// Package preflight verifies the files and limits a run depends on
// before any source is opened.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// minFileDescriptors covers the run log, its lock, the vehicle catalog,
// the metrics listener and its connections.
const minFileDescriptors = 64

// Status is the outcome of one check.
type Status int

const (
	Pass Status = iota
	Warn        // usable, but worth a look
	Fail
)

func (s Status) glyph() string {
	switch s {
	case Pass:
		return "✓"
	case Warn:
		return "⚠"
	default:
		return "✗"
	}
}

// Check is the outcome of one probe. Fix is printed for failures.
type Check struct {
	Name   string
	Status Status
	Detail string
	Fix    string
}

// Passed reports whether the check allows the run to go ahead.
func (c Check) Passed() bool { return c.Status != Fail }

func (c Check) String() string {
	return fmt.Sprintf("  %s %s: %s", c.Status.glyph(), c.Name, c.Detail)
}

// Result collects every check. Passed is false if any check failed.
type Result struct {
	Checks []Check
	Passed bool
}

// Options selects which checks run. Empty paths skip their check.
type Options struct {
	LogDir     string
	ReplayPath string
	GhostPath  string
	VehicleDB  string
}

// RunAll runs the descriptor limit check plus one check per configured path.
func RunAll(opts Options) *Result {
	r := &Result{Passed: true}
	add := func(c Check) {
		r.Checks = append(r.Checks, c)
		r.Passed = r.Passed && c.Passed()
	}

	add(checkFileDescriptors())
	if opts.LogDir != "" {
		add(checkLogDir(opts.LogDir))
	}
	if opts.ReplayPath != "" {
		add(checkRunLog("replay_file", opts.ReplayPath))
	}
	if opts.GhostPath != "" {
		add(checkRunLog("ghost_file", opts.GhostPath))
	}
	if opts.VehicleDB != "" {
		add(checkVehicleDB(opts.VehicleDB))
	}
	return r
}

func checkFileDescriptors() Check {
	c := Check{Name: "file_descriptors", Fix: "ulimit -n 1024 (or edit /etc/security/limits.conf)"}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		c.Status, c.Detail = Warn, fmt.Sprintf("unable to check: %v", err)
		return c
	}
	c.Detail = fmt.Sprintf("%d available (need %d)", limit.Cur, minFileDescriptors)
	if limit.Cur < minFileDescriptors {
		c.Status = Fail
	}
	return c
}

// checkLogDir creates dir if needed and proves a file can be written there.
func checkLogDir(dir string) Check {
	c := Check{Name: "log_dir", Fix: "choose a writable -log-dir, or disable logging with -log=false"}

	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		var probe *os.File
		if probe, err = os.CreateTemp(dir, ".preflight-*"); err == nil {
			probe.Close()
			os.Remove(probe.Name())
		}
	}
	if err != nil {
		c.Status, c.Detail = Fail, fmt.Sprintf("%s not writable: %v", dir, err)
		return c
	}
	c.Detail = dir + " writable"
	return c
}

// checkRunLog verifies path is a regular, openable file. An empty file
// only warns; the loader reports it as having no rows.
func checkRunLog(name, path string) Check {
	c := Check{Name: name, Fix: "pass a run_log_<epoch>.csv written by a previous run"}

	f, err := os.Open(path)
	if err != nil {
		c.Status, c.Detail = Fail, fmt.Sprintf("cannot open %s: %v", path, err)
		return c
	}
	defer f.Close()

	info, err := f.Stat()
	switch {
	case err != nil:
		c.Status, c.Detail = Fail, fmt.Sprintf("cannot stat %s: %v", path, err)
	case info.IsDir():
		c.Status, c.Detail = Fail, path+" is a directory"
	case info.Size() == 0:
		c.Status, c.Detail = Warn, path+" is empty"
	default:
		c.Detail = fmt.Sprintf("%s (%d bytes)", path, info.Size())
	}
	return c
}

// checkVehicleDB needs the catalog's directory to exist. A missing file
// only warns; it is created and seeded on open.
func checkVehicleDB(path string) Check {
	c := Check{Name: "vehicle_db", Fix: "create the directory or point -vehicle-db elsewhere", Detail: path}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		c.Status, c.Detail = Fail, fmt.Sprintf("directory %s: %v", dir, err)
	case !info.IsDir():
		c.Status, c.Detail = Fail, dir+" is not a directory"
	default:
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			c.Status, c.Detail = Warn, path+" will be created with the sample catalog"
		}
	}
	return c
}

// PrintResults writes one line per check, plus the fix under each failure.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, c := range result.Checks {
		fmt.Fprintln(w, c)
		if !c.Passed() && c.Fix != "" {
			fmt.Fprintf(w, "    Fix: %s\n", c.Fix)
		}
	}
	fmt.Fprintln(w)
}
