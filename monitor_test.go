package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(csvPath string) *Config {
	return &Config{
		CSVPath:         csvPath,
		ListenAddr:      "127.0.0.1:0",
		RefreshInterval: 2 * time.Second,
		RequestTimeout:  2 * time.Second,
		Timezone:        "UTC",
		ConnectedState:  4,
		SiteMarker:      ".InfoHighDump",
		DefaultWindow:   WindowAll,
		TopLatency:      5,
		BufferSize:      8,
		LogLevel:        "error",
	}
}

func newTestMonitor(t *testing.T, csvPath string) *Monitor {
	t.Helper()
	cfg := testConfig(csvPath)
	opts, err := cfg.reportOptions()
	if err != nil {
		t.Fatal(err)
	}
	return NewMonitor(cfg, opts, testLogger())
}

func TestMonitorMissingFile(t *testing.T) {
	m := newTestMonitor(t, filepath.Join(t.TempDir(), "output.csv"))
	m.runTick(tickRequest{interval: true})

	for _, w := range AllWindows {
		v := m.View(w)
		if !strings.HasPrefix(v.Title, "ERROR: ") || !strings.Contains(v.Title, "no such file") {
			t.Errorf("%s title = %q", w, v.Title)
		}
		if v.Uptime != "" || v.Band != "" || v.Badges != nil || v.SignalChart != nil || v.LatencyTable != nil {
			t.Errorf("%s: outputs changed from defaults: %+v", w, v)
		}
	}
	if h := m.Health(); h.Status != "degraded" || h.Tick != 1 {
		t.Errorf("health = %+v", h)
	}
}

func TestMonitorLastKnownGood(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	m := newTestMonitor(t, path)

	m.runTick(tickRequest{interval: true})
	good := m.View(WindowAll)
	if good.Title != "SITE1 LTE MONITORING" || good.Tick != 1 {
		t.Fatalf("view = %+v", good)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	m.runTick(tickRequest{interval: true})
	v := m.View(WindowAll)
	if !strings.HasPrefix(v.Title, "ERROR: ") {
		t.Errorf("title = %q", v.Title)
	}
	if v.Uptime != good.Uptime || len(v.Badges) != 3 || v.SignalChart != good.SignalChart {
		t.Error("failed tick must keep last-known-good outputs")
	}

	// recovers on the next tick once the file is back
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	m.runTick(tickRequest{interval: false, reason: "window"})
	v = m.View(WindowAll)
	if v.Title != "SITE1 LTE MONITORING" || v.Error != "" {
		t.Errorf("after recovery = %q %q", v.Title, v.Error)
	}
	if v.Tick != 2 {
		t.Errorf("non-interval tick advanced counter to %d", v.Tick)
	}
	if h := m.Health(); h.Status != "healthy" || h.LastError != "" {
		t.Errorf("health = %+v", h)
	}
}

func TestMonitorViewIsCopy(t *testing.T) {
	m := newTestMonitor(t, writeCSV(t, sampleCSV))
	m.runTick(tickRequest{interval: true})
	v := m.View(WindowAll)
	v.Title = "changed"
	if m.View(WindowAll).Title == "changed" {
		t.Error("View must return a copy")
	}
}

func TestMonitorTriggerDoesNotBlock(t *testing.T) {
	m := newTestMonitor(t, writeCSV(t, sampleCSV))
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(m.trigger)*2; i++ {
			m.Trigger(true, "test")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked with a full queue")
	}
}

func TestBroadcastTargetedWaitsForRoom(t *testing.T) {
	m := newTestMonitor(t, writeCSV(t, sampleCSV))
	for i := 0; i < cap(m.broadcast); i++ {
		m.broadcast <- delivery{}
	}

	received := make(chan delivery, cap(m.broadcast)+1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		for i := 0; i < cap(m.broadcast)+1; i++ {
			received <- <-m.broadcast
		}
	}()

	conn := &websocket.Conn{}
	m.Broadcast(delivery{conn: conn})

	var found bool
	for i := 0; i < cap(m.broadcast)+1; i++ {
		select {
		case d := <-received:
			if d.conn == conn {
				found = true
			}
		case <-time.After(time.Second):
			t.Fatal("queue not drained")
		}
	}
	if !found {
		t.Error("targeted delivery was dropped with a full queue")
	}
}

func TestBroadcastAllDropsWhenFull(t *testing.T) {
	m := newTestMonitor(t, writeCSV(t, sampleCSV))
	for i := 0; i < cap(m.broadcast); i++ {
		m.broadcast <- delivery{}
	}
	done := make(chan struct{})
	go func() {
		m.Broadcast(delivery{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast to all clients blocked with a full queue")
	}
}
