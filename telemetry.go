package main

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
)

const (
	timestampColumn = "Systemdate"
	missingToken    = "n/a"

	// displayLayout is the zone-less presentation of sample times
	displayLayout = "2006-01-02T15:04:05"
)

var ErrMissingTimestamp = errors.New("missing required column \"" + timestampColumn + "\"")

// timestampLayouts are tried in order when parsing Systemdate
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Snapshot is the full CSV as read on one tick
type Snapshot struct {
	Header []string
	Rows   [][]string
}

// Column is a resolved column reference. Found is false when no header matched.
type Column struct {
	Name  string
	Index int
	Found bool
}

// ColumnSet holds every column the reporter looks at, resolved once per tick
type ColumnSet struct {
	Time    Column
	RSSI    Column
	RSRP    Column
	RSRQ    Column
	Band    Column
	State   Column
	Latency Column
}

// Signal returns the column for a signal kind
func (cs ColumnSet) Signal(kind MetricKind) Column {
	switch kind {
	case KindRSSI:
		return cs.RSSI
	case KindRSRP:
		return cs.RSRP
	case KindRSRQ:
		return cs.RSRQ
	}
	return Column{Index: -1}
}

func (k MetricKind) Upper() string {
	return strings.ToUpper(string(k))
}

// Sample is a typed telemetry record. Undefined numbers are NaN and an
// undefined band is the empty string.
type Sample struct {
	Time    time.Time
	RSSI    float64
	RSRP    float64
	RSRQ    float64
	Latency float64
	State   float64
	Band    string
}

// Signal returns the sample's value for a signal kind
func (s Sample) Signal(kind MetricKind) float64 {
	switch kind {
	case KindRSSI:
		return s.RSSI
	case KindRSRP:
		return s.RSRP
	case KindRSRQ:
		return s.RSRQ
	}
	return math.NaN()
}

// LoadSnapshot reads the telemetry CSV at path
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// ReadSnapshot parses CSV content. The missing token is normalised to the
// empty string in every cell.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	snap := &Snapshot{Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(snap.Rows)+1, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", len(snap.Rows)+1, len(header), len(record))
		}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == missingToken {
				cell = ""
			}
			record[i] = cell
		}
		snap.Rows = append(snap.Rows, record)
	}
	return snap, nil
}

// matchContains builds a case-insensitive substring predicate
func matchContains(substr string) func(string) bool {
	substr = strings.ToLower(substr)
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), substr)
	}
}

func matchExact(want string) func(string) bool {
	return func(name string) bool { return name == want }
}

// findColumn returns the first header satisfying match
func findColumn(header []string, match func(string) bool) Column {
	for i, name := range header {
		if match(name) {
			return Column{Name: name, Index: i, Found: true}
		}
	}
	return Column{Index: -1}
}

// ResolveColumns locates every column used by the reporter
func (s *Snapshot) ResolveColumns() (ColumnSet, error) {
	cs := ColumnSet{
		Time:    findColumn(s.Header, matchExact(timestampColumn)),
		RSSI:    findColumn(s.Header, matchContains(string(KindRSSI))),
		RSRP:    findColumn(s.Header, matchContains(string(KindRSRP))),
		RSRQ:    findColumn(s.Header, matchContains(string(KindRSRQ))),
		Band:    findColumn(s.Header, matchContains("band")),
		State:   findColumn(s.Header, matchContains("lte_state")),
		Latency: findColumn(s.Header, matchContains("latency_max_ms")),
	}
	if !cs.Time.Found {
		return cs, ErrMissingTimestamp
	}
	return cs, nil
}

// SiteName derives the display name from the first column carrying marker
func (s *Snapshot) SiteName(marker, fallback string) string {
	for _, name := range s.Header {
		if strings.Contains(name, marker) {
			prefix, _, _ := strings.Cut(name, ".")
			return strings.ToUpper(prefix)
		}
	}
	return fallback
}

// Samples converts rows into typed records, with times converted from UTC
// into loc. Rows without a timestamp are skipped.
func (s *Snapshot) Samples(cs ColumnSet, loc *time.Location) ([]Sample, error) {
	samples := make([]Sample, 0, len(s.Rows))
	for i, row := range s.Rows {
		raw := cell(row, cs.Time)
		if raw == "" {
			// no timestamp: excluded from latest/previous and uptime too
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		samples = append(samples, Sample{
			Time:    ts.In(loc),
			RSSI:    numeric(row, cs.RSSI),
			RSRP:    numeric(row, cs.RSRP),
			RSRQ:    numeric(row, cs.RSRQ),
			Latency: numeric(row, cs.Latency),
			State:   numeric(row, cs.State),
			Band:    cell(row, cs.Band),
		})
	}
	return samples, nil
}

// parseTimestamp reads a Systemdate value. Values without an explicit
// offset are UTC.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown datetime string format, unable to parse: %s", raw)
}

func cell(row []string, col Column) string {
	if !col.Found || col.Index >= len(row) {
		return ""
	}
	return row[col.Index]
}

// numeric coerces a cell to float; anything unparseable or non-finite is NaN
func numeric(row []string, col Column) float64 {
	raw := cell(row, col)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
