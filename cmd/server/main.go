/*
main.go - HTTP server entry point

PURPOSE:
  Serves the KPI dashboard API and, when configured, re-runs the pipeline on a
  schedule. Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (YAML + env)
  2. Open the run history store (PostgreSQL, SQLite or memory)
  3. Build the pipeline over xlsx workbooks
  4. Configure HTTP router, start the scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: kpi.yaml, optional)
  -addr    Listen address, overrides server.addr
  -db      SQLite database path, overrides storage.sqlite_path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an active scheduled run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

ENVIRONMENT:
  See config/config.go: APP_OUTPUT_DIR, SAP_SYSTEM, SAP_VARIANT, KPI_DB_PATH,
  KPI_DATABASE_URL / DATABASE_URL, KPI_EXTRACT_COMMAND, KPI_ADDR.

SEE ALSO:
  - api/server.go: Router configuration
  - cmd/kpi: one-shot CLI
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/inspection-kpi/api"
	"github.com/warp/inspection-kpi/config"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/store"
	"github.com/warp/inspection-kpi/store/xlsx"
	"go.uber.org/zap"
)

func main() {
	// Flags
	configPath := flag.String("config", "kpi.yaml", "YAML config path")
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// Initialize store
	runs, kind, err := store.Open(context.Background(), cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize run store", zap.Error(err))
	}
	defer runs.Close()
	logger.Info("run store ready", zap.String("backend", kind))

	p := pipeline.NewFromConfig(cfg, xlsx.OpenStore, logger)
	handler := api.NewHandler(p, runs, api.Defaults{
		Variant:    cfg.SAP.Variant,
		System:     cfg.SAP.System,
		LedgerPath: cfg.Server.LedgerPath,
		FeedPath:   cfg.Server.FeedPath,
		OutputDir:  cfg.OutputDir,
		Site:       cfg.Site,
	}, logger)

	scheduler := api.NewRunScheduler(handler,
		pipeline.RequestFromConfig(cfg, cfg.Server.LedgerPath, cfg.Server.FeedPath),
		cfg.Server.Schedule)
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Extract.Timeout + time.Minute, // POST /api/runs is synchronous
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
