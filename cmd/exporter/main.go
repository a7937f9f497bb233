// Command exporter serves Mailman 3 metrics for Prometheus, reading directly
// from the Mailman PostgreSQL database instead of the REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"

	"mailman-exporter/internal/collector"
	"mailman-exporter/internal/config"
	hhttp "mailman-exporter/internal/handler/http"
	"mailman-exporter/internal/infra/db"
	"mailman-exporter/internal/observability/logging"
	"mailman-exporter/internal/observability/metrics"
	"mailman-exporter/internal/resilience/circuitbreaker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("exporter failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	dsnFlag := flag.String("dsn", "",
		"PostgreSQL DSN (default: built from DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASS env vars)")
	portFlag := flag.Int("port", 0,
		"Port to listen on (default: $MAILMAN_EXPORTER_PORT or 9934)")
	logLevelFlag := flag.String("log-level", "",
		"Logging level: DEBUG, INFO, WARNING or ERROR (default: $MAILMAN_EXPORTER_LOG_LEVEL or INFO)")
	configFlag := flag.String("config", "", "Optional YAML configuration file")
	stdoutFlag := flag.Bool("stdout", false, "Print metrics to stdout and exit")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *dsnFlag != "" {
		cfg.DSN = *dsnFlag
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(level)
	logger.Debug("database configuration", slog.String("conninfo", cfg.Redacted()))

	pool, err := db.Open(cfg.BuildDSN())
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close database pool", slog.Any("error", err))
		}
	}()

	scraper := collector.NewScraper(pool, logger, cfg.ConnectTimeout)
	breaker := circuitbreaker.New(circuitbreaker.ScrapeConfig())
	registry := metrics.NewRegistry()
	registry.MustRegister(
		collector.New(scraper, breaker, logger),
		db.NewStatsCollector(pool),
	)

	if *stdoutFlag {
		return writeMetrics(os.Stdout, registry)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := hhttp.NewServer(cfg.Port, registry, pool, logger)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	return g.Wait()
}

// writeMetrics runs one collection cycle and writes the exposition text to w.
func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	}
	return nil
}
