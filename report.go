package main

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ReportOptions are the per-deployment knobs of the reporter
type ReportOptions struct {
	Location       *time.Location
	ConnectedState float64
	SiteMarker     string
	SiteFallback   string
	TopLatency     int
}

func defaultReportOptions() ReportOptions {
	return ReportOptions{
		Location:       time.UTC,
		ConnectedState: 4,
		SiteMarker:     ".InfoHighDump",
		SiteFallback:   "LTE",
		TopLatency:     5,
	}
}

// Badge is the colored health card for one signal kind
type Badge struct {
	Kind   MetricKind `json:"kind"`
	Label  string     `json:"label"`
	Value  string     `json:"value"`
	Trend  Trend      `json:"trend"`
	Health string     `json:"health"`
	Color  string     `json:"color"`
}

// LatencyRow is one entry of the latency spike table
type LatencyRow struct {
	Time      string  `json:"time"`
	Band      string  `json:"band"`
	LatencyMs float64 `json:"latency_ms"`
}

// BandChange marks a sample whose band differs from the previous defined band
type BandChange struct {
	Time time.Time
	Band string
}

// Report is the full set of outputs of a successful tick
type Report struct {
	Title        string       `json:"title"`
	Uptime       string       `json:"uptime"`
	Band         string       `json:"band"`
	Badges       []Badge      `json:"badges"`
	SignalChart  *ChartSpec   `json:"signal_chart"`
	LatencyChart *ChartSpec   `json:"latency_chart"`
	LatencyTable []LatencyRow `json:"latency_table"`
}

type ResultKind int

const (
	ResultReport ResultKind = iota
	ResultNoData
	ResultFailed
)

// Result is what one evaluation produced. Only ResultReport carries a
// Report; the other kinds only change the title.
type Result struct {
	Kind   ResultKind
	Report *Report
	Title  string
	Err    error
}

func failedResult(err error) Result {
	return Result{Kind: ResultFailed, Title: "ERROR: " + err.Error(), Err: err}
}

// Compute evaluates one window over a snapshot
func Compute(snap *Snapshot, window TimeWindow, opts ReportOptions) Result {
	cols, err := snap.ResolveColumns()
	if err != nil {
		return failedResult(err)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	all, err := snap.Samples(cols, loc)
	if err != nil {
		return failedResult(err)
	}
	site := snap.SiteName(opts.SiteMarker, opts.SiteFallback)

	samples := window.Filter(all)
	if len(samples) == 0 {
		return Result{Kind: ResultNoData, Title: fmt.Sprintf("%s MONITOR (No Data)", site)}
	}

	latest := samples[len(samples)-1]
	prev := latest
	if len(samples) > 1 {
		prev = samples[len(samples)-2]
	}

	uptime := 0.0
	if cols.State.Found {
		uptime = uptimePercent(samples, opts.ConnectedState)
	}

	badges := make([]Badge, 0, len(signalKinds))
	for _, kind := range signalKinds {
		badges = append(badges, buildBadge(kind, latest.Signal(kind), prev.Signal(kind)))
	}

	var changes []BandChange
	if cols.Band.Found {
		changes = bandChanges(samples)
	}

	currentBand := latest.Band
	if currentBand == "" {
		currentBand = "N/A"
	}

	report := &Report{
		Title:        fmt.Sprintf("%s LTE MONITORING", site),
		Uptime:       fmt.Sprintf("Uptime in View: %.2f%%", uptime),
		Band:         fmt.Sprintf("Current Band: %s", currentBand),
		Badges:       badges,
		SignalChart:  signalChart(samples, cols, changes),
		LatencyChart: latencyChart(samples, cols, changes),
		LatencyTable: []LatencyRow{},
	}
	if cols.Latency.Found {
		report.LatencyTable = topLatency(samples, opts.TopLatency)
	}
	return Result{Kind: ResultReport, Report: report, Title: report.Title}
}

// uptimePercent is the share of samples in the connected state
func uptimePercent(samples []Sample, connected float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	up := 0
	for _, s := range samples {
		if s.State == connected {
			up++
		}
	}
	return float64(up) / float64(len(samples)) * 100
}

func buildBadge(kind MetricKind, latest, prev float64) Badge {
	trend := trendOf(latest, prev)
	health := classifyHealth(latest, kind)
	value := formatValue(latest)
	return Badge{
		Kind:   kind,
		Label:  fmt.Sprintf("%s: %s %s", kind.Upper(), value, trend.Arrow()),
		Value:  value,
		Trend:  trend,
		Health: health.Label,
		Color:  health.Color,
	}
}

// bandChanges drops samples without a band, then reports every sample
// whose band differs from its predecessor. The first sample never counts.
func bandChanges(samples []Sample) []BandChange {
	var changes []BandChange
	prev := ""
	for _, s := range samples {
		if s.Band == "" {
			continue
		}
		if prev != "" && s.Band != prev {
			changes = append(changes, BandChange{Time: s.Time, Band: s.Band})
		}
		prev = s.Band
	}
	return changes
}

// topLatency returns the n highest latency samples, highest first.
// Ties keep file order.
func topLatency(samples []Sample, n int) []LatencyRow {
	ranked := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !math.IsNaN(s.Latency) {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Latency > ranked[j].Latency
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	rows := make([]LatencyRow, 0, len(ranked))
	for _, s := range ranked {
		rows = append(rows, LatencyRow{
			Time:      s.Time.Format(displayLayout),
			Band:      s.Band,
			LatencyMs: s.Latency,
		})
	}
	return rows
}

// View is the last-known-good dashboard state for one window selection.
// Failed and empty evaluations only replace the title.
type View struct {
	Window       TimeWindow   `json:"window"`
	Tick         int64        `json:"tick"`
	Title        string       `json:"title"`
	Uptime       string       `json:"uptime"`
	Band         string       `json:"band"`
	Badges       []Badge      `json:"badges"`
	SignalChart  *ChartSpec   `json:"signal_chart"`
	LatencyChart *ChartSpec   `json:"latency_chart"`
	LatencyTable []LatencyRow `json:"latency_table"`
	Error        string       `json:"error,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func newView(window TimeWindow) *View {
	return &View{Window: window}
}

// Apply folds a result into the view
func (v *View) Apply(r Result, tick int64, now time.Time) {
	v.Tick = tick
	v.Title = r.Title
	v.Error = ""
	switch r.Kind {
	case ResultReport:
		rep := r.Report
		v.Uptime = rep.Uptime
		v.Band = rep.Band
		v.Badges = rep.Badges
		v.SignalChart = rep.SignalChart
		v.LatencyChart = rep.LatencyChart
		v.LatencyTable = rep.LatencyTable
		v.UpdatedAt = now
	case ResultFailed:
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
	}
}

// clone returns a copy safe to hand to readers outside the tick goroutine.
// Slices and charts are replaced wholesale on Apply, never mutated.
func (v *View) clone() *View {
	c := *v
	return &c
}
