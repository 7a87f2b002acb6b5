// Package samplelog reads and writes the per-cycle exposure log, a CSV file
// with one record per control loop cycle.
package samplelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the layout of the timestamp column, in local time.
const TimeLayout = "2006-01-02T15:04:05"

// Header is the first line of every log.
const Header = "timestamp,blue_avg,active,filter_level"

var (
	ErrNoRecords     = errors.New("no records")
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is a single log line.
type Record struct {
	Time        time.Time
	BlueAvg     float64 // mean blue intensity of the sampled region, [0, 1]
	Active      bool
	FilterLevel float64 // 1 is no correction, [0, 1]
}

// Validate checks that the record can be written.
func (r Record) Validate() error {
	if r.Time.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	if !inUnit(r.BlueAvg) {
		return fmt.Errorf("%w: blue_avg %v out of range", ErrInvalidRecord, r.BlueAvg)
	}
	if !inUnit(r.FilterLevel) {
		return fmt.Errorf("%w: filter_level %v out of range", ErrInvalidRecord, r.FilterLevel)
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// AppendCSV appends the CSV line for r (without a trailing newline) to b.
func (r Record) AppendCSV(b []byte) []byte {
	b = r.Time.Local().AppendFormat(b, TimeLayout)
	b = append(b, ',')
	b = strconv.AppendFloat(b, r.BlueAvg, 'f', 3, 64)
	if r.Active {
		b = append(b, ",1,"...)
	} else {
		b = append(b, ",0,"...)
	}
	b = strconv.AppendFloat(b, r.FilterLevel, 'f', 3, 64)
	return b
}

func (r Record) String() string {
	return string(r.AppendCSV(nil))
}

// ParseRecord parses a single CSV line.
func ParseRecord(line string) (Record, error) {
	f := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(f) != 4 {
		return Record{}, fmt.Errorf("%w: %q: expected 4 fields, got %d", ErrInvalidRecord, line, len(f))
	}
	var (
		r   Record
		err error
	)
	if r.Time, err = time.ParseInLocation(TimeLayout, f[0], time.Local); err != nil {
		return Record{}, fmt.Errorf("%w: %q: timestamp: %w", ErrInvalidRecord, line, err)
	}
	if r.BlueAvg, err = strconv.ParseFloat(f[1], 64); err != nil {
		return Record{}, fmt.Errorf("%w: %q: blue_avg: %w", ErrInvalidRecord, line, err)
	}
	if r.Active, err = strconv.ParseBool(f[2]); err != nil {
		return Record{}, fmt.Errorf("%w: %q: active: %w", ErrInvalidRecord, line, err)
	}
	if r.FilterLevel, err = strconv.ParseFloat(f[3], 64); err != nil {
		return Record{}, fmt.Errorf("%w: %q: filter_level: %w", ErrInvalidRecord, line, err)
	}
	if err := r.Validate(); err != nil {
		return Record{}, fmt.Errorf("%q: %w", line, err)
	}
	return r, nil
}

// Read parses all records from r. The header is optional, and blank lines are
// skipped.
func Read(r io.Reader) ([]Record, error) {
	var (
		records []Record
		n       int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || (n == 1 && line == Header) {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return records, fmt.Errorf("line %d: %w", n, err)
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}

// Participant returns the participant identifier for a log, which is the file
// name without the extension.
func Participant(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
