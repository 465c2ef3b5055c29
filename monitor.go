package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
)

// tickRequest asks the tick loop for a recompute. Only timer ticks
// advance the tick counter.
type tickRequest struct {
	interval bool
	reason   string
}

// Monitor owns the per-window views and the single tick loop that
// refreshes them from the telemetry CSV.
type Monitor struct {
	config *Config
	opts   ReportOptions
	logger *slog.Logger

	trigger   chan tickRequest
	broadcast chan delivery

	mu        sync.RWMutex
	views     map[TimeWindow]*View
	clients   map[*websocket.Conn]*client
	tick      int64
	lastTick  time.Time
	lastError string
}

func NewMonitor(config *Config, opts ReportOptions, logger *slog.Logger) *Monitor {
	m := &Monitor{
		config:    config,
		opts:      opts,
		logger:    logger,
		trigger:   make(chan tickRequest, 16),
		broadcast: make(chan delivery, config.BufferSize),
		views:     make(map[TimeWindow]*View, len(AllWindows)),
		clients:   make(map[*websocket.Conn]*client),
	}
	for _, w := range AllWindows {
		m.views[w] = newView(w)
	}
	return m
}

// Trigger queues a recompute. Requests are dropped when the queue is full,
// since a pending tick already covers them.
func (m *Monitor) Trigger(interval bool, reason string) {
	select {
	case m.trigger <- tickRequest{interval: interval, reason: reason}:
	default:
		m.logger.Debug("tick queue full, dropping request", "reason", reason)
	}
}

// Run processes tick requests one at a time until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("starting tick loop", "csv", m.config.CSVPath)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("tick loop stopping")
			return
		case req := <-m.trigger:
			m.runTick(req)
			m.Broadcast(delivery{})
		}
	}
}

// runTick reads the CSV once and folds the result into every window's view
func (m *Monitor) runTick(req tickRequest) {
	snap, loadErr := LoadSnapshot(m.config.CSVPath)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if req.interval {
		m.tick++
	}
	m.lastTick = now

	var firstErr error
	for _, w := range AllWindows {
		var res Result
		if loadErr != nil {
			res = failedResult(loadErr)
		} else {
			res = Compute(snap, w, m.opts)
		}
		if res.Kind == ResultFailed && firstErr == nil {
			firstErr = res.Err
		}
		next := m.views[w].clone()
		next.Apply(res, m.tick, now)
		m.views[w] = next
	}

	errText := ""
	if firstErr != nil {
		errText = firstErr.Error()
	}
	if errText != m.lastError {
		if errText != "" {
			m.logger.Warn("dashboard refresh failed", "error", errText)
		} else if m.lastError != "" {
			m.logger.Info("dashboard refresh recovered")
		}
	}
	m.lastError = errText
	m.logger.Debug("tick complete", "tick", m.tick, "reason", req.reason)
}

// View returns a copy of the current view for a window
func (m *Monitor) View(w TimeWindow) *View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.views[w].clone()
}

// MonitorHealth summarises the tick loop for the health endpoint
type MonitorHealth struct {
	Status    string    `json:"status"`
	Tick      int64     `json:"tick"`
	LastTick  time.Time `json:"last_tick"`
	LastError string    `json:"last_error,omitempty"`
	Clients   int       `json:"clients"`
	CSVPath   string    `json:"csv_path"`
}

func (m *Monitor) Health() MonitorHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := MonitorHealth{
		Status:    "healthy",
		Tick:      m.tick,
		LastTick:  m.lastTick,
		LastError: m.lastError,
		Clients:   len(m.clients),
		CSVPath:   m.config.CSVPath,
	}
	if m.lastError != "" {
		h.Status = "degraded"
	}
	return h
}

// StartScheduler fires an interval tick every RefreshInterval
func (m *Monitor) StartScheduler() (*cron.Cron, error) {
	logger := cronLogger{m.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	spec := fmt.Sprintf("@every %s", m.config.RefreshInterval)
	if _, err := c.AddFunc(spec, func() { m.Trigger(true, "interval") }); err != nil {
		return nil, fmt.Errorf("schedule refresh %q: %w", spec, err)
	}
	c.Start()
	m.logger.Info("refresh scheduled", "every", m.config.RefreshInterval)
	return c, nil
}

// WatchFile triggers a recompute whenever the CSV is written or replaced.
// The parent directory is watched so that rotated files are picked up.
func (m *Monitor) WatchFile(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	target := filepath.Clean(m.config.CSVPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					m.Trigger(false, "file "+ev.Op.String())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("file watcher error", "error", err)
			}
		}
	}()
	m.logger.Info("watching telemetry file", "path", target)
	return nil
}

// cronLogger adapts slog to cron's logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
