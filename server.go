package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// Server manages the HTTP surface and the monitor's background loops
type Server struct {
	config  *Config
	monitor *Monitor
	mux     *http.ServeMux
	logger  *slog.Logger
	page    *template.Template
}

func NewServer(config *Config, monitor *Monitor, logger *slog.Logger) *Server {
	s := &Server{
		config:  config,
		monitor: monitor,
		mux:     http.NewServeMux(),
		logger:  logger,
		page:    template.Must(template.New("dashboard").Parse(dashboardHTML)),
	}
	s.setupRoutes()
	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting LTE monitor", "addr", s.config.ListenAddr, "csv", s.config.CSVPath)

	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()

	go s.monitor.Run(loopCtx)
	go s.monitor.RunBroadcaster(loopCtx)

	// First render without waiting for the timer
	s.monitor.Trigger(false, "startup")

	scheduler, err := s.monitor.StartScheduler()
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	if s.config.WatchFile {
		if err := s.monitor.WatchFile(loopCtx); err != nil {
			s.logger.Warn("file watching disabled", "error", err)
		}
	}

	server := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.mux,
		ReadTimeout:  s.config.RequestTimeout,
		WriteTimeout: s.config.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.config.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, closing server")
	case runErr = <-serverErr:
		s.logger.Error("server error", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	stopLoops()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	return runErr
}

func (s *Server) setupRoutes() {
	// API endpoints
	s.mux.Handle("/api/dashboard", gzhttp.GzipHandler(http.HandlerFunc(s.handleDashboardAPI)))
	s.mux.Handle("/api/thresholds", gzhttp.GzipHandler(http.HandlerFunc(s.handleThresholdsAPI)))
	s.mux.HandleFunc("/api/health", s.handleHealthAPI)

	// Server-rendered charts
	s.mux.Handle("/chart/signal.svg", gzhttp.GzipHandler(s.chartHandler(func(v *View) *ChartSpec { return v.SignalChart })))
	s.mux.Handle("/chart/latency.svg", gzhttp.GzipHandler(s.chartHandler(func(v *View) *ChartSpec { return v.LatencyChart })))

	// Live updates
	s.mux.HandleFunc("/ws", s.monitor.handleWebSocket)

	// Web dashboard
	s.mux.Handle("/", gzhttp.GzipHandler(http.HandlerFunc(s.handleDashboard)))
}

// windowParam reads ?window=, falling back to the configured default
func (s *Server) windowParam(r *http.Request) (TimeWindow, error) {
	q := r.URL.Query().Get("window")
	if q == "" {
		return s.config.DefaultWindow, nil
	}
	return ParseWindow(q)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	window, err := s.windowParam(r)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.monitor.View(window))
}

func (s *Server) handleThresholdsAPI(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, referenceTable())
}

func (s *Server) handleHealthAPI(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.monitor.Health())
}

func (s *Server) chartHandler(pick func(*View) *ChartSpec) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		window, err := s.windowParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		width := 900
		if q := r.URL.Query().Get("width"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n >= 200 && n <= 4000 {
				width = n
			}
		}

		var buf bytes.Buffer
		if err := pick(s.monitor.View(window)).RenderSVG(&buf, width); err != nil {
			if errors.Is(err, ErrNoSeries) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			s.logger.Warn("chart render failed", "path", r.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write(buf.Bytes())
	})
}

type windowOption struct {
	Value    TimeWindow
	Label    string
	Selected bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	options := make([]windowOption, 0, len(AllWindows))
	for _, win := range AllWindows {
		options = append(options, windowOption{
			Value:    win,
			Label:    win.Label(),
			Selected: win == s.config.DefaultWindow,
		})
	}
	data := struct {
		Windows    []windowOption
		Thresholds []ThresholdRow
		Refresh    int64
	}{
		Windows:    options,
		Thresholds: referenceTable(),
		Refresh:    s.config.RefreshInterval.Milliseconds(),
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("dashboard template failed", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
