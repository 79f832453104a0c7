// Package telemetrylog persists derived telemetry as one CSV file per run.
//
// Format: a header row followed by one row per record. The timestamp is
// epoch seconds with a fractional part; every other column is a derived
// metric in telemetry.FieldNames order. Numbers use the shortest decimal
// form that parses back to the same float64.
package telemetrylog

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// TimestampColumn is the name of the first column.
const TimestampColumn = "timestamp"

// Header returns the header row.
func Header() []string {
	h := make([]string, 0, telemetry.FieldCount+1)
	h = append(h, TimestampColumn)
	h = append(h, telemetry.FieldNames[:]...)
	return h
}

// FormatFloat renders a value as decimal text.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTimestamp renders t as epoch seconds.
func FormatTimestamp(t time.Time) string {
	return FormatFloat(float64(t.UnixNano()) / 1e9)
}

// ParseTimestamp parses epoch seconds.
func ParseTimestamp(s string) (time.Time, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, fmt.Errorf("timestamp %q is not finite", s)
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))), nil
}

// EncodeRecord renders one record as a row.
func EncodeRecord(rec telemetry.LogRecord) []string {
	row := make([]string, 0, telemetry.FieldCount+1)
	row = append(row, FormatTimestamp(rec.Timestamp))
	for _, v := range rec.Metrics.Values() {
		row = append(row, FormatFloat(v))
	}
	return row
}

// FileName returns the log file name for a run started at runStart.
func FileName(runStart time.Time) string {
	return fmt.Sprintf("run_log_%d.csv", runStart.Unix())
}
