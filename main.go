package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mlueckert/mist-exporter/collector"
	"github.com/mlueckert/mist-exporter/config"
	"github.com/mlueckert/mist-exporter/mist"
	"github.com/prometheus/common/version"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Parse the log level from input
func parseLogLevel(level string) slog.Level {
	ret := slog.LevelInfo
	switch level {
	case "debug":
		ret = slog.LevelDebug
	case "info":
		ret = slog.LevelInfo
	case "warn":
		ret = slog.LevelWarn
	case "error":
		ret = slog.LevelError
	}

	return ret
}

// newLogger builds the JSON logger every component receives.
func newLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With(slog.String("run_id", uuid.NewString()))
}

func newLogWriter(c config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   c.Path,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
	}
}

func logStartupFailure(c config.LogConfig, err error) {
	logWriter := newLogWriter(c)
	defer logWriter.Close()
	newLogger(logWriter, c.Level).Error("Mist Exporter failed to start", slog.Any("error", err))
}

// run executes one export and returns the process exit code. Startup failures still
// produce a status line so the scraper always sees well-formed output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(stderr, "mist_exporter: %v\n", err)
		logStartupFailure(startupLogConfig(args), err)
		fmt.Fprintln(stdout, collector.FormatStatus(false))
		return 0
	}

	logWriter := newLogWriter(cfg.Log)
	defer logWriter.Close()
	logger := newLogger(logWriter, cfg.Log.Level)
	logger.Info("Mist Exporter starting",
		slog.String("version", version.Version),
		slog.String("loglevel", parseLogLevel(cfg.Log.Level).String()),
	)

	if !export(ctx, cfg, logger, stdout) {
		logger.Warn("Mist Exporter finished with failure status")
		return 0
	}
	logger.Info("Mist Exporter finished")
	return 0
}

func export(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) bool {
	self := collector.NewSelfMetrics()
	client, err := mist.NewClient(mist.ClientConfig{
		BaseURL:            cfg.BaseURL,
		OrgID:              cfg.OrgID,
		Token:              cfg.APIToken,
		SiteNameFilter:     cfg.SiteNameFilter,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.Timeout,
		SiteConcurrency:    cfg.SiteConcurrency,
		Instrument:         self.InstrumentRoundTripper,
	}, logger)
	if err != nil {
		logger.Error("failed to create Mist client", slog.Any("error", err))
		fmt.Fprintln(stdout, collector.FormatStatus(false))
		return false
	}

	devices := collector.NewDeviceBuilder(logger)
	edges := collector.NewEdgeBuilder(logger)
	jqMetrics, err := collector.NewJQMetricsFromConfig(cfg.JQMetrics, devices, edges, cfg.Timeout, logger)
	if err != nil {
		logger.Error("failed to create jq metrics", slog.Any("error", err))
		fmt.Fprintln(stdout, collector.FormatStatus(false))
		return false
	}

	exporter := collector.NewExporter(client, devices, edges, self, logger)
	exporter.WithJQMetrics(jqMetrics)
	return exporter.Export(ctx, stdout)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
