package main

import (
	"errors"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartHeight     = 350
	chartTemplate   = "plotly_dark"
	chartUIRevision = "constant"

	markerColor = "rgba(255,255,255,0.2)"
)

var ErrNoSeries = errors.New("chart has no data series")

// ChartSpec is the browser-side description of a time-series chart
type ChartSpec struct {
	Title      string       `json:"title"`
	Template   string       `json:"template"`
	Height     int          `json:"height"`
	UIRevision string       `json:"uirevision"`
	Series     []SeriesSpec `json:"series"`
	Markers    []MarkerSpec `json:"markers"`
}

// SeriesSpec is one line. Y values are nil where the sample had no value.
type SeriesSpec struct {
	Name  string     `json:"name"`
	Color string     `json:"color"`
	X     []string   `json:"x"`
	Y     []*float64 `json:"y"`

	times []time.Time
}

// MarkerSpec is a vertical line spanning the chart height, labelled with
// the band the connection moved to.
type MarkerSpec struct {
	X     string `json:"x"`
	Label string `json:"label"`
	Color string `json:"color"`
	Dash  string `json:"dash"`

	at time.Time
}

type seriesDef struct {
	kind  MetricKind
	name  string
	color string
}

// signalSeries is the overlay order of the signal chart
var signalSeries = []seriesDef{
	{KindRSRP, "RSRP", "#3498db"},
	{KindRSRQ, "RSRQ", "#9b59b6"},
	{KindRSSI, "RSSI", "#1abc9c"},
}

const latencyColor = "#e67e22"

func newChartSpec(title string, changes []BandChange) *ChartSpec {
	spec := &ChartSpec{
		Title:      title,
		Template:   chartTemplate,
		Height:     chartHeight,
		UIRevision: chartUIRevision,
		Series:     []SeriesSpec{},
		Markers:    make([]MarkerSpec, 0, len(changes)),
	}
	for _, c := range changes {
		spec.Markers = append(spec.Markers, MarkerSpec{
			X:     c.Time.Format(displayLayout),
			Label: " " + c.Band,
			Color: markerColor,
			Dash:  "dot",
			at:    c.Time,
		})
	}
	return spec
}

func buildSeries(name, color string, samples []Sample, value func(Sample) float64) SeriesSpec {
	s := SeriesSpec{
		Name:  name,
		Color: color,
		X:     make([]string, len(samples)),
		Y:     make([]*float64, len(samples)),
		times: make([]time.Time, len(samples)),
	}
	for i, sample := range samples {
		s.X[i] = sample.Time.Format(displayLayout)
		s.times[i] = sample.Time
		if v := value(sample); !math.IsNaN(v) {
			s.Y[i] = &v
		}
	}
	return s
}

func signalChart(samples []Sample, cols ColumnSet, changes []BandChange) *ChartSpec {
	spec := newChartSpec("Signal History", changes)
	for _, def := range signalSeries {
		if !cols.Signal(def.kind).Found {
			continue
		}
		kind := def.kind
		spec.Series = append(spec.Series, buildSeries(def.name, def.color, samples, func(s Sample) float64 {
			return s.Signal(kind)
		}))
	}
	return spec
}

func latencyChart(samples []Sample, cols ColumnSet, changes []BandChange) *ChartSpec {
	spec := newChartSpec("Latency History", changes)
	if cols.Latency.Found {
		spec.Series = append(spec.Series, buildSeries("Latency", latencyColor, samples, func(s Sample) float64 {
			return s.Latency
		}))
	}
	return spec
}

// Dark palette used by the server-rendered charts
var (
	darkBackground = drawing.ColorFromHex("111111")
	darkCanvas     = drawing.ColorFromHex("1a1a1a")
	darkForeground = drawing.ColorFromHex("ecf0f1")
	darkGrid       = drawing.Color{R: 255, G: 255, B: 255, A: 51}
)

// RenderSVG draws the chart with go-chart. Undefined points are dropped,
// markers become vertical grid lines with band labels at the top.
func (c *ChartSpec) RenderSVG(w io.Writer, width int) error {
	if c == nil {
		return ErrNoSeries
	}
	var series []chart.Series
	yMax := math.Inf(-1)
	for _, s := range c.Series {
		var xs []time.Time
		var ys []float64
		for i, y := range s.Y {
			if y == nil || i >= len(s.times) {
				continue
			}
			xs = append(xs, s.times[i])
			ys = append(ys, *y)
			yMax = math.Max(yMax, *y)
		}
		if len(xs) == 0 {
			continue
		}
		// go-chart can't range a single point
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Second))
			ys = append(ys, ys[0])
		}
		series = append(series, chart.TimeSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(trimHash(s.Color)),
				StrokeWidth: 2,
			},
		})
	}
	if len(series) == 0 {
		return ErrNoSeries
	}

	var grid []chart.GridLine
	var labels []chart.Value2
	for _, m := range c.Markers {
		x := chart.TimeToFloat64(m.at)
		grid = append(grid, chart.GridLine{Value: x})
		labels = append(labels, chart.Value2{XValue: x, YValue: yMax, Label: m.Label})
	}
	if len(labels) > 0 {
		series = append(series, chart.AnnotationSeries{
			Name: "Band",
			Style: chart.Style{
				FontColor:   darkForeground,
				FillColor:   darkCanvas,
				StrokeColor: darkGrid,
				FontSize:    8,
			},
			Annotations: labels,
		})
	}

	axisStyle := chart.Style{FontColor: darkForeground, StrokeColor: darkGrid}
	ch := chart.Chart{
		Title:      c.Title,
		TitleStyle: chart.Style{FontColor: darkForeground},
		Width:      width,
		Height:     c.Height,
		Background: chart.Style{
			FillColor: darkBackground,
			Padding:   chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28},
		},
		Canvas: chart.Style{FillColor: darkCanvas},
		XAxis: chart.XAxis{
			Style:          axisStyle,
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
			GridMajorStyle: chart.Style{
				StrokeColor:     darkGrid,
				StrokeWidth:     1,
				StrokeDashArray: []float64{2, 3},
			},
			GridLines: grid,
		},
		YAxis:  chart.YAxis{Style: axisStyle},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch, chart.Style{
		FillColor:   darkCanvas,
		FontColor:   darkForeground,
		StrokeColor: darkGrid,
	})}
	return ch.Render(chart.SVG, w)
}

func trimHash(hex string) string {
	if len(hex) > 0 && hex[0] == '#' {
		return hex[1:]
	}
	return hex
}
