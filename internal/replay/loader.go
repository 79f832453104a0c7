// Package replay loads recorded telemetry runs and re-emits them at a
// fixed cadence, either in place of live data or beside it as a ghost.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetrylog"
)

// ReplayLoadError reports why a run file could not be loaded. Line is the
// 1-based line in the file, or 0 when the failure is not tied to a line.
type ReplayLoadError struct {
	Path string
	Line int
	Err  error
}

func (e *ReplayLoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("replay %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("replay %s: %v", e.Path, e.Err)
}

func (e *ReplayLoadError) Unwrap() error {
	return e.Err
}

var (
	// ErrNoHeader means the file is empty or its first row names no known column.
	ErrNoHeader = errors.New("missing header row")

	// ErrRowLength means a row's field count differs from the header's.
	ErrRowLength = errors.New("row length does not match header")
)

// columnIndex maps a record slot to its position in the file, -1 if absent.
type columnIndex struct {
	timestamp int
	fields    [telemetry.FieldCount]int
}

func indexHeader(header []string) (columnIndex, bool) {
	idx := columnIndex{timestamp: -1}
	for i := range idx.fields {
		idx.fields[i] = -1
	}

	known := false
	for pos, name := range header {
		name = strings.TrimSpace(name)
		if pos == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == telemetrylog.TimestampColumn {
			idx.timestamp = pos
			known = true
			continue
		}
		for i, field := range telemetry.FieldNames {
			if name == field {
				idx.fields[i] = pos
				known = true
			}
		}
	}
	return idx, known
}

// defaultFor returns the value used when a column is missing or empty.
func defaultFor(i int) float64 {
	if telemetry.FieldNames[i] == "temp_in" {
		return telemetry.DefaultIntakeTemp
	}
	return 0
}

// Load reads a complete run file. Either every row parses or an error is
// returned and no records are.
func Load(path string) ([]telemetry.LogRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ReplayLoadError{Path: path, Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ReplayLoadError{Path: path, Line: 1, Err: ErrNoHeader}
	}
	if err != nil {
		return nil, &ReplayLoadError{Path: path, Line: 1, Err: err}
	}
	idx, ok := indexHeader(header)
	if !ok {
		return nil, &ReplayLoadError{Path: path, Line: 1, Err: ErrNoHeader}
	}

	var records []telemetry.LogRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &ReplayLoadError{Path: path, Line: line, Err: err}
		}

		line, _ := reader.FieldPos(0)
		if len(row) != len(header) {
			return nil, &ReplayLoadError{
				Path: path,
				Line: line,
				Err:  fmt.Errorf("%w: %d fields, header has %d", ErrRowLength, len(row), len(header)),
			}
		}

		rec, err := decodeRow(row, idx)
		if err != nil {
			return nil, &ReplayLoadError{Path: path, Line: line, Err: err}
		}
		records = append(records, rec)
	}

	if records == nil {
		records = []telemetry.LogRecord{}
	}
	return records, nil
}

func decodeRow(row []string, idx columnIndex) (telemetry.LogRecord, error) {
	var rec telemetry.LogRecord

	rec.Timestamp = time.Unix(0, 0)
	if idx.timestamp >= 0 {
		if cell := strings.TrimSpace(row[idx.timestamp]); cell != "" {
			ts, err := telemetrylog.ParseTimestamp(cell)
			if err != nil {
				return rec, fmt.Errorf("column %s: %w", telemetrylog.TimestampColumn, err)
			}
			rec.Timestamp = ts
		}
	}

	var values [telemetry.FieldCount]float64
	for i, pos := range idx.fields {
		values[i] = defaultFor(i)
		if pos < 0 {
			continue
		}
		cell := strings.TrimSpace(row[pos])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return rec, fmt.Errorf("column %s: %w", telemetry.FieldNames[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rec, fmt.Errorf("column %s: value %q is not finite", telemetry.FieldNames[i], cell)
		}
		values[i] = v
	}
	rec.Metrics = telemetry.FromValues(values)
	return rec, nil
}
