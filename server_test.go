package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, csv string) (*Server, *httptest.Server) {
	t.Helper()
	m := newTestMonitor(t, writeCSV(t, csv))
	m.runTick(tickRequest{interval: true})
	s := NewServer(m.config, m, testLogger())
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestDashboardAPI(t *testing.T) {
	_, ts := newTestServer(t, sampleCSV)

	var view View
	if code := getJSON(t, ts.URL+"/api/dashboard?window=1H", &view); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if view.Window != Window1H || view.Title != "SITE1 LTE MONITORING" {
		t.Errorf("view = %+v", view)
	}
	if len(view.Badges) != 3 || view.Badges[0].Kind != KindRSSI {
		t.Errorf("badges = %+v", view.Badges)
	}
	if view.SignalChart == nil || len(view.SignalChart.Series) != 3 {
		t.Errorf("signal chart = %+v", view.SignalChart)
	}

	if code := getJSON(t, ts.URL+"/api/dashboard?window=5Y", nil); code != http.StatusBadRequest {
		t.Errorf("bad window status = %d", code)
	}
}

func TestThresholdsAndHealthAPI(t *testing.T) {
	_, ts := newTestServer(t, sampleCSV)

	var rows []ThresholdRow
	if code := getJSON(t, ts.URL+"/api/thresholds", &rows); code != http.StatusOK || len(rows) != 3 {
		t.Errorf("thresholds status = %d rows = %+v", code, rows)
	}

	var health MonitorHealth
	if code := getJSON(t, ts.URL+"/api/health", &health); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
	if health.Status != "healthy" || health.Tick != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestChartSVG(t *testing.T) {
	_, ts := newTestServer(t, sampleCSV)

	resp, err := http.Get(ts.URL + "/chart/signal.svg?window=ALL&width=640")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<svg") {
		t.Error("body is not SVG")
	}
}

func TestChartSVGNoSeries(t *testing.T) {
	_, ts := newTestServer(t, "Systemdate,lte_state\n2024-05-01 12:00:00,4\n2024-05-01 12:00:02,4\n")
	resp, err := http.Get(ts.URL + "/chart/latency.svg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func TestDashboardPage(t *testing.T) {
	_, ts := newTestServer(t, sampleCSV)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{"Top 5 Latency Spikes", "1 Hour", "All Time", "&gt; -60", "rf-metrics-graph"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}
}

type pushMessage struct {
	Type string `json:"type"`
	Data View   `json:"data"`
}

func TestWebSocketPush(t *testing.T) {
	s, ts := newTestServer(t, sampleCSV)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.monitor.Run(ctx)
	go s.monitor.RunBroadcaster(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?window=1D"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg pushMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial push: %v", err)
	}
	if msg.Type != "dashboard" || msg.Data.Window != Window1D || msg.Data.Title != "SITE1 LTE MONITORING" {
		t.Errorf("initial push = %+v", msg)
	}

	if err := conn.WriteJSON(clientMessage{Window: "1H"}); err != nil {
		t.Fatal(err)
	}
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read after window change: %v", err)
		}
		if msg.Data.Window == Window1H {
			break
		}
	}
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	var logs bytes.Buffer
	m := newTestMonitor(t, writeCSV(t, sampleCSV))
	s := NewServer(m.config, m, slog.New(slog.NewTextHandler(&logs, nil)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	s.writeJSON(rec, req, http.StatusOK, map[string]float64{"latency": math.Inf(1)})

	out := logs.String()
	if !strings.Contains(out, "encode response failed") || !strings.Contains(out, "/api/dashboard") {
		t.Errorf("log output = %q", out)
	}
}
