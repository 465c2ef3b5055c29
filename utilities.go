package main

import (
	"fmt"
	"math"
	"strconv"
)

// MetricKind identifies one of the signal metrics shown as a badge
type MetricKind string

const (
	KindRSSI MetricKind = "rssi"
	KindRSRP MetricKind = "rsrp"
	KindRSRQ MetricKind = "rsrq"
)

// signalKinds is the badge order on the dashboard
var signalKinds = []MetricKind{KindRSSI, KindRSRP, KindRSRQ}

// Health is the classification of a single metric value
type Health struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var (
	healthExcellent = Health{Label: "Excellent", Color: "#2ecc71"}
	healthGood      = Health{Label: "Good", Color: "#27ae60"}
	healthWeak      = Health{Label: "Weak", Color: "#f1c40f"}
	healthPoor      = Health{Label: "Poor", Color: "#e74c3c"}
	healthNA        = Health{Label: "N/A", Color: "#7f8c8d"}
)

type threshold struct {
	bound  float64
	health Health
}

// thresholdTable lists bounds in descending order. A value must exceed
// the bound to take the bucket; anything below the last bound is Poor.
var thresholdTable = map[MetricKind][]threshold{
	KindRSSI: {{-60, healthExcellent}, {-70, healthGood}, {-80, healthWeak}},
	KindRSRP: {{-80, healthExcellent}, {-90, healthGood}, {-100, healthWeak}},
	KindRSRQ: {{-5, healthExcellent}, {-10, healthGood}, {-15, healthWeak}},
}

// classifyHealth maps a metric value to its health bucket
func classifyHealth(value float64, kind MetricKind) Health {
	table, ok := thresholdTable[kind]
	if !ok || math.IsNaN(value) {
		return healthNA
	}
	for _, t := range table {
		if value > t.bound {
			return t.health
		}
	}
	return healthPoor
}

// rank orders health buckets from worst to best; N/A ranks below Poor
func (h Health) rank() int {
	switch h.Label {
	case healthExcellent.Label:
		return 4
	case healthGood.Label:
		return 3
	case healthWeak.Label:
		return 2
	case healthPoor.Label:
		return 1
	}
	return 0
}

// Trend describes the movement between the previous and latest sample
type Trend int

const (
	TrendFlat Trend = iota
	TrendRising
	TrendFalling
)

// trendOf compares latest against previous. NaN on either side is flat.
func trendOf(latest, previous float64) Trend {
	switch {
	case latest > previous:
		return TrendRising
	case latest < previous:
		return TrendFalling
	}
	return TrendFlat
}

func (t Trend) Arrow() string {
	switch t {
	case TrendRising:
		return "↑"
	case TrendFalling:
		return "↓"
	}
	return "↔"
}

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	}
	return "flat"
}

func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Trend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "rising":
		*t = TrendRising
	case "falling":
		*t = TrendFalling
	case "flat":
		*t = TrendFlat
	default:
		return fmt.Errorf("unknown trend %q", text)
	}
	return nil
}

// ThresholdRow is one line of the reference table shown next to the badges
type ThresholdRow struct {
	Metric    string `json:"metric"`
	Excellent string `json:"excellent"`
	Good      string `json:"good"`
	Weak      string `json:"weak"`
	Poor      string `json:"poor"`
}

// referenceTable renders thresholdTable for display
func referenceTable() []ThresholdRow {
	rows := make([]ThresholdRow, 0, len(thresholdTable))
	for _, kind := range signalKinds {
		t := thresholdTable[kind]
		rows = append(rows, ThresholdRow{
			Metric:    kind.Upper(),
			Excellent: "> " + formatBound(t[0].bound),
			Good:      formatBound(t[1].bound),
			Weak:      formatBound(t[2].bound),
			Poor:      "< " + formatBound(t[2].bound),
		})
	}
	return rows
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatValue prints a metric value the way the badges show it
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
