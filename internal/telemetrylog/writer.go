package telemetrylog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// maxNameAttempts bounds the suffixes tried when a run file already exists.
const maxNameAttempts = 100

var (
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("telemetry log closed")

	// ErrLocked is returned when another writer holds the run file.
	ErrLocked = errors.New("telemetry log locked by another writer")
)

// Options configures a Writer.
type Options struct {
	// Sync forces an fsync after every row in addition to the flush.
	Sync bool

	Logger *slog.Logger
}

// Writer appends records to a single run file. Rows are flushed to the
// operating system on every Append, so a crash loses at most the row
// being written.
//
// Thread-safe, though appends are expected from a single producer.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	csv    *csv.Writer
	lock   *flock.Flock
	opts   Options
	rows   int64
	closed bool
}

// Open creates the run file for runStart in dir and writes the header.
func Open(dir string, runStart time.Time, opts Options) (*Writer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, path, err := createRunFile(dir, runStart)
	if err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		file.Close()
		os.Remove(path)
		if err == nil {
			err = ErrLocked
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	w := &Writer{
		path: path,
		file: file,
		csv:  csv.NewWriter(file),
		lock: lock,
		opts: opts,
	}

	if err := w.writeRow(Header()); err != nil {
		w.release()
		return nil, fmt.Errorf("write header: %w", err)
	}

	opts.Logger.Info("telemetry_log_opened", "path", path)
	return w, nil
}

// createRunFile creates a new file, never truncating an existing run.
func createRunFile(dir string, runStart time.Time) (*os.File, string, error) {
	base := FileName(runStart)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < maxNameAttempts; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create run file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create run file: too many runs named %s", base)
}

// Append writes and flushes one record.
func (w *Writer) Append(rec telemetry.LogRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.writeRow(EncodeRecord(rec)); err != nil {
		return fmt.Errorf("append row %d: %w", w.rows+1, err)
	}
	w.rows++
	return nil
}

// writeRow must be called with mu held (or before the writer is shared).
func (w *Writer) writeRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if w.opts.Sync {
		return w.file.Sync()
	}
	return nil
}

// Close flushes the file and releases the lock. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	syncErr := w.file.Sync()
	closeErr := w.release()

	w.opts.Logger.Info("telemetry_log_closed", "path", w.path, "rows", w.rows)
	return errors.Join(flushErr, syncErr, closeErr)
}

// release closes the file and drops the lock. Must be called with mu held.
func (w *Writer) release() error {
	w.closed = true
	closeErr := w.file.Close()
	unlockErr := w.lock.Unlock()
	os.Remove(w.lock.Path())
	return errors.Join(closeErr, unlockErr)
}

// Path returns the run file path.
func (w *Writer) Path() string {
	return w.path
}

// Rows returns the number of records written.
func (w *Writer) Rows() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
