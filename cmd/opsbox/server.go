package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/zeroco/opsbox/internal/config"
	"github.com/zeroco/opsbox/internal/download"
	"github.com/zeroco/opsbox/internal/gateway/httpapi"
	"github.com/zeroco/opsbox/internal/logreader"
	"github.com/zeroco/opsbox/internal/observability"
	"github.com/zeroco/opsbox/internal/runner"
)

var (
	serveConfigPath string
	servePort       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `opsbox --config path` and `opsbox serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runServe starts the opsbox HTTP server.
func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("OPSBOX_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if servePort != "" {
		cfg.Server.ListenAddr = servePort
	}

	logger.Info("starting opsbox",
		slog.String("config", serveConfigPath),
		slog.String("sandbox_dir", cfg.Sandbox.Dir),
		slog.String("downloads_dir", cfg.Downloads.Dir),
		slog.String("logs_dir", cfg.Logs.Dir),
	)

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return err
	}
	defer func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	}()

	// Readiness checks on the three base directories. The directories are
	// never created at startup: a missing one degrades readiness and fails
	// the operations that need it.
	if obs != nil && obs.Health != nil {
		obs.Health.AddDirCheck("sandbox_dir", cfg.Sandbox.Dir)
		obs.Health.AddDirCheck("downloads_dir", cfg.Downloads.Dir)
		obs.Health.AddDirCheck("logs_dir", cfg.Logs.Dir)
	}

	// Core components.
	cmdRunner := runner.New(runner.Config{
		Dir:     cfg.Sandbox.Dir,
		Timeout: cfg.Sandbox.Timeout(),
	}, logger)

	downloader := download.New(download.Config{
		Dir:     cfg.Downloads.Dir,
		Timeout: cfg.Downloads.Timeout(),
	}, logger)

	logs := logreader.New(logreader.Config{
		Dir:         cfg.Logs.Dir,
		DefaultFile: cfg.Logs.DefaultFile,
		WorkingDir:  cfg.WorkingDir,
	}, logger)

	// HTTP gateway.
	gwCfg := httpapi.Config{
		ListenAddr: cfg.Server.ListenAddr,
		EnableDocs: cfg.Server.EnableDocs,
		Auth:       cfg.Server.Auth,
	}
	if obs != nil {
		gwCfg.Metrics = obs.Metrics
		gwCfg.HealthChecker = obs.Health
		if obs.Metrics != nil {
			gwCfg.MetricsRegistry = obs.Metrics.Registry
		}
		if obs.Tracer != nil {
			gwCfg.Tracer = obs.Tracer.Tracer()
		}
		if cfg.Observability != nil && cfg.Observability.Metrics != nil {
			gwCfg.MetricsPath = cfg.Observability.Metrics.Path
		}
	}
	gw := httpapi.NewGateway(gwCfg, cmdRunner, downloader, logs, logger)

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- gw.Start(ctx)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("http gateway exited with error", slog.String("error", err.Error()))
		}
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return gw.Stop(shutdownCtx)
}
