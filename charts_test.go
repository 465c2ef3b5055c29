package main

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func chartSamples() []Sample {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []Sample{
		{Time: base, RSRP: -95, RSSI: -65, RSRQ: math.NaN(), Latency: 40, Band: "B3"},
		{Time: base.Add(2 * time.Second), RSRP: math.NaN(), RSSI: -66, RSRQ: -10, Latency: 120, Band: "B3"},
		{Time: base.Add(4 * time.Second), RSRP: -92, RSSI: -64, RSRQ: -11, Latency: 85, Band: "B7"},
		{Time: base.Add(6 * time.Second), RSRP: -90, RSSI: -63, RSRQ: -9, Latency: 60, Band: "B7"},
	}
}

func allColumns() ColumnSet {
	found := Column{Found: true}
	return ColumnSet{Time: found, RSSI: found, RSRP: found, RSRQ: found, Band: found, State: found, Latency: found}
}

func TestSignalChartGaps(t *testing.T) {
	samples := chartSamples()
	spec := signalChart(samples, allColumns(), bandChanges(samples))
	if spec.Title != "Signal History" || spec.Height != 350 || spec.Template != "plotly_dark" {
		t.Errorf("spec header = %+v", spec)
	}
	rsrp := spec.Series[0]
	if rsrp.Name != "RSRP" || rsrp.Color != "#3498db" {
		t.Fatalf("first series = %s %s", rsrp.Name, rsrp.Color)
	}
	if rsrp.Y[1] != nil {
		t.Errorf("undefined RSRP should be a gap, got %v", *rsrp.Y[1])
	}
	if rsrp.Y[0] == nil || *rsrp.Y[0] != -95 {
		t.Errorf("RSRP[0] = %v", rsrp.Y[0])
	}
	if rsrp.X[2] != "2024-05-01T12:00:04" {
		t.Errorf("x[2] = %s", rsrp.X[2])
	}
	if len(spec.Markers) != 1 || spec.Markers[0].X != "2024-05-01T12:00:04" || spec.Markers[0].Dash != "dot" {
		t.Errorf("markers = %+v", spec.Markers)
	}
}

func TestLatencyChartSharesMarkers(t *testing.T) {
	samples := chartSamples()
	changes := bandChanges(samples)
	sig := signalChart(samples, allColumns(), changes)
	lat := latencyChart(samples, allColumns(), changes)
	if len(lat.Series) != 1 || lat.Series[0].Color != latencyColor {
		t.Fatalf("latency series = %+v", lat.Series)
	}
	if len(sig.Markers) != len(lat.Markers) || sig.Markers[0].X != lat.Markers[0].X {
		t.Error("both charts must carry the same band markers")
	}
}

func TestRenderSVG(t *testing.T) {
	samples := chartSamples()
	spec := signalChart(samples, allColumns(), bandChanges(samples))
	var buf bytes.Buffer
	if err := spec.RenderSVG(&buf, 800); err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("output is not SVG")
	}
}

func TestRenderSVGNoSeries(t *testing.T) {
	samples := chartSamples()
	var cols ColumnSet
	spec := latencyChart(samples, cols, nil)
	var buf bytes.Buffer
	if err := spec.RenderSVG(&buf, 800); !errors.Is(err, ErrNoSeries) {
		t.Errorf("err = %v, want ErrNoSeries", err)
	}

	var nilSpec *ChartSpec
	if err := nilSpec.RenderSVG(&buf, 800); !errors.Is(err, ErrNoSeries) {
		t.Errorf("nil spec err = %v", err)
	}

	allGaps := &ChartSpec{Height: 350, Series: []SeriesSpec{buildSeries("RSRQ", "#9b59b6", samples, func(Sample) float64 { return math.NaN() })}}
	if err := allGaps.RenderSVG(&buf, 800); !errors.Is(err, ErrNoSeries) {
		t.Errorf("all-gap spec err = %v", err)
	}
}
