package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthwatch/healthwatch/internal/history"
	"github.com/healthwatch/healthwatch/internal/metrics"
	"github.com/healthwatch/healthwatch/internal/orchestrator"
	"github.com/healthwatch/healthwatch/internal/probe"
	"github.com/healthwatch/healthwatch/internal/retry"
	"github.com/healthwatch/healthwatch/internal/runtime"
	"github.com/healthwatch/healthwatch/pkg/config"
	"github.com/healthwatch/healthwatch/pkg/logger"
	"github.com/healthwatch/healthwatch/pkg/telemetry"
)

// metricsShutdownGrace bounds how long the metrics HTTP server is given
// to finish in-flight scrapes once shutdown begins.
const metricsShutdownGrace = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the orchestrator and probe every configured service on its schedule",
	Long: "run starts the Scheduler/Orchestrator: it loads and validates the configuration, " +
		"begins probing every service on its own cadence with bounded concurrency, appends " +
		"outcomes to the history file, and keeps the snapshot JSON and metrics endpoint " +
		"up to date until interrupted (SIGINT/SIGTERM), at which point it drains in-flight " +
		"probes, flushes the history file, and writes a final snapshot before exiting.",
	RunE: runRunCmd,
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.InitWithConfig(logger.Config{
		Level:   os.Getenv("DEBUG"),
		Format:  "json",
		Output:  "stdout",
		Service: "healthwatch",
		Env:     envName(),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Settings.TracingEnabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     true,
			Endpoint:    cfg.Settings.TracingEndpoint,
			ServiceName: "healthwatch",
			Version:     version,
			Environment: envName(),
			SampleRate:  cfg.Settings.TracingSampleRate,
		})
		if err != nil {
			logger.Warn("failed to init telemetry; continuing without tracing", "error", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("failed to shut down telemetry", "error", err)
				}
			}()
		}
	}

	m := metrics.New()
	m.SetBuildInfo(version)

	hist, err := history.Open(cfg.Settings.HistoryFile)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer hist.Close()

	if err := os.MkdirAll(cfg.Settings.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	snapshotPath := filepath.Join(cfg.Settings.OutputDir, snapshotFileName)

	table := runtime.NewTable(serviceNames(cfg))
	controller := retry.New(probe.New())

	orch := orchestrator.New(cfg, table, controller, hist, m, snapshotPath, orchestrator.Options{
		SkipGuard: requestSkipValidation(),
	})

	metricsSrv := startMetricsServer(cfg, m)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	orchErrCh := make(chan error, 1)
	go func() { orchErrCh <- orch.Run(ctx) }()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-orchErrCh:
		shutdownMetricsServer(metricsSrv)
		return err
	}

	err = <-orchErrCh
	shutdownMetricsServer(metricsSrv)
	return err
}

// startMetricsServer serves the pull-based Prometheus exposition endpoint
// on its own HTTP server alongside the orchestrator loop, following
// pkg/metrics.StartMetricsServer's pattern of a dedicated listener rather
// than piggybacking on an application server that doesn't otherwise exist
// here.
func startMetricsServer(cfg *config.Config, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Settings.MetricsPath, m.Handler())

	srv := &http.Server{
		Addr:    cfg.Settings.MetricsAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("metrics endpoint listening", "addr", cfg.Settings.MetricsAddr, "path", cfg.Settings.MetricsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
	}
}

// envName reports the deployment environment for log/trace enrichment,
// defaulting to "development" when unset.
func envName() string {
	if e := os.Getenv("ENV"); e != "" {
		return e
	}
	return "development"
}

// requestSkipValidation reports whether the SSRF guard bypass was
// requested via NODE_ENV=test. The request only takes effect in binaries
// built with the "testhooks" tag (see internal/urlguard/guard_prod.go and
// guard_testhook.go); a production build ignores it unconditionally.
func requestSkipValidation() bool {
	return os.Getenv("NODE_ENV") == "test"
}
