package main

import (
	"errors"
	"fmt"
	"time"
)

// TimeWindow is the selection of the dashboard's time filter
type TimeWindow string

const (
	Window1H  TimeWindow = "1H"
	Window1D  TimeWindow = "1D"
	Window1W  TimeWindow = "1W"
	Window1M  TimeWindow = "1M"
	WindowAll TimeWindow = "ALL"
)

var ErrUnknownWindow = errors.New("unknown time window")

// AllWindows is the control's option order
var AllWindows = []TimeWindow{Window1H, Window1D, Window1W, Window1M, WindowAll}

var windowLabels = map[TimeWindow]string{
	Window1H:  "1 Hour",
	Window1D:  "1 Day",
	Window1W:  "1 Week",
	Window1M:  "1 Month",
	WindowAll: "All Time",
}

// ParseWindow validates a window selection
func ParseWindow(s string) (TimeWindow, error) {
	w := TimeWindow(s)
	if _, ok := windowLabels[w]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
	}
	return w, nil
}

func (w TimeWindow) Label() string {
	return windowLabels[w]
}

// span returns how far back the window reaches. Only 1H and 1D reduce the
// row set; the longer windows currently resolve to everything.
func (w TimeWindow) span() (time.Duration, bool) {
	switch w {
	case Window1H:
		return time.Hour, true
	case Window1D:
		return 24 * time.Hour, true
	}
	return 0, false
}

// Filter keeps samples newer than (latest - span). The input is not modified.
func (w TimeWindow) Filter(samples []Sample) []Sample {
	d, ok := w.span()
	if !ok || len(samples) == 0 {
		return samples
	}
	latest := samples[0].Time
	for _, s := range samples[1:] {
		if s.Time.After(latest) {
			latest = s.Time
		}
	}
	cutoff := latest.Add(-d)
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Time.After(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}
