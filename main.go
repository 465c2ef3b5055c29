package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	CSVPath         string        `mapstructure:"csv_path" yaml:"csv_path"`
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Timezone        string        `mapstructure:"timezone" yaml:"timezone"`
	ConnectedState  int           `mapstructure:"connected_state" yaml:"connected_state"`
	SiteMarker      string        `mapstructure:"site_marker" yaml:"site_marker"`
	DefaultWindow   TimeWindow    `mapstructure:"default_window" yaml:"default_window"`
	TopLatency      int           `mapstructure:"top_latency" yaml:"top_latency"`
	WatchFile       bool          `mapstructure:"watch_file" yaml:"watch_file"`
	BufferSize      int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
}

func main() {
	config, printOnly, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if printOnly {
		if err := printConfig(os.Stdout, config); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := setupLogger(config.LogLevel)

	opts, err := config.reportOptions()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	monitor := NewMonitor(config, opts, logger)
	server := NewServer(config, monitor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// loadConfig layers defaults, an optional YAML file, LTEMON_* environment
// variables and flags, in increasing priority.
func loadConfig(args []string) (*Config, bool, error) {
	flags := pflag.NewFlagSet("lte-monitor", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a YAML config file")
	printOnly := flags.Bool("print-config", false, "print the effective configuration and exit")
	flags.String("csv-path", "output.csv", "telemetry CSV to read")
	flags.String("listen-addr", ":8050", "HTTP listen address")
	flags.Duration("refresh-interval", 2*time.Second, "dashboard refresh interval")
	flags.Duration("request-timeout", 10*time.Second, "HTTP read/write timeout")
	flags.String("timezone", "America/New_York", "display time zone for UTC timestamps")
	flags.Int("connected-state", 4, "lte_state code that counts as connected")
	flags.String("site-marker", ".InfoHighDump", "column marker used to derive the site name")
	flags.String("default-window", string(WindowAll), "initial time window (1H, 1D, 1W, 1M, ALL)")
	flags.Int("top-latency", 5, "rows in the latency spike table")
	flags.Bool("watch-file", true, "refresh immediately when the CSV changes")
	flags.Int("buffer-size", 64, "websocket push queue size")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		return nil, false, err
	}

	v := viper.New()
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "print-config" {
			return
		}
		v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	v.SetEnvPrefix("LTEMON")
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("lte-monitor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/lte-monitor/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || *configFile != "" {
			return nil, false, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, false, fmt.Errorf("decode config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, false, err
	}
	return &config, *printOnly, nil
}

func (c *Config) validate() error {
	if c.CSVPath == "" {
		return errors.New("csv_path must not be empty")
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh_interval must be at least 1s, got %s", c.RefreshInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	w, err := ParseWindow(string(c.DefaultWindow))
	if err != nil {
		return fmt.Errorf("default_window: %w", err)
	}
	c.DefaultWindow = w
	if c.TopLatency < 0 {
		return fmt.Errorf("top_latency must not be negative, got %d", c.TopLatency)
	}
	if c.BufferSize < 1 {
		c.BufferSize = 1
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

func (c *Config) reportOptions() (ReportOptions, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return ReportOptions{}, err
	}
	opts := defaultReportOptions()
	opts.Location = loc
	opts.ConnectedState = float64(c.ConnectedState)
	opts.SiteMarker = c.SiteMarker
	opts.TopLatency = c.TopLatency
	return opts, nil
}

func printConfig(w io.Writer, c *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func setupSignalHandler(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down gracefully", "signal", sig.String())
		cancel()

		// Force exit after timeout
		time.Sleep(10 * time.Second)
		logger.Warn("forcing shutdown due to timeout")
		os.Exit(1)
	}()
}
