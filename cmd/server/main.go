/*
main.go - HTTP server entry point

PURPOSE:
  Starts the stock transfer engine API. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse flags and load configuration (defaults, .env, file, env, flags)
  2. Open the store for the configured driver
  3. Validate the schema the engine reads and writes
  4. Create API handler, replay writer and metrics
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --config      Config file (yaml, json or toml)
  --env-file    Dotenv file (default: .env)
  --addr        Listen address (default: :8080)
  --db-driver   mysql, postgres or sqlite3 (default: sqlite3)
  --db-dsn      Connection string
  --db-path     SQLite path (default: transfer.db), ":memory:" allowed
  --replay-dir  Run replay directory (default: transfer_runs)
  --preset      Default parameter preset for runs

ENVIRONMENT:
  Every key can be set as TRANSFER_<SECTION>_<KEY>, for example
  TRANSFER_DATABASE_DSN or TRANSFER_APP_LOG_LEVEL.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - cmd/transfer-engine: One-shot CLI
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/api"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/factory"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/metrics"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		config.NewLogger("error", nil).WithError(err).Fatal("Failed to load configuration")
	}
	logger := config.NewLogger(cfg.App.LogLevel, nil)

	// Run defaults from config; fail now rather than on the first request
	defaults := factory.Merge(cfg.Engine.Params)
	if cfg.Engine.Preset != "" {
		defaults["preset"] = cfg.Engine.Preset
	}
	if _, err := factory.NewParamsFactory().FromInput(defaults); err != nil {
		logger.WithError(err).Fatal("Invalid engine defaults")
	}

	// Initialize store
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.ConnString())
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer st.Close()

	if err := st.Validate(ctx); err != nil {
		config.LogError(logger, "main", "main", "schema", map[string]string{"driver": cfg.Database.Driver}, err)
		os.Exit(1)
	}

	// Initialize handler
	opts := []api.HandlerOption{
		api.WithLogger(logger),
		api.WithDefaults(defaults),
		api.WithRunLogLevel(audit.ParseLevel(cfg.App.LogLevel)),
	}
	routerCfg := api.RouterConfig{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		DevRoutes:   cfg.IsDevelopment() && cfg.Database.Driver != "mysql" && cfg.Database.Driver != "postgres",
	}
	if cfg.Metrics.Enabled {
		rec := metrics.New()
		opts = append(opts, api.WithMetrics(rec))
		routerCfg.Metrics = rec.Handler()
	}
	writer := replay.NewWriter(cfg.Replay.Dir, replay.WithWorkbook(cfg.Replay.Workbook))
	handler := api.NewHandler(st, writer, opts...)

	// Create server. Apply runs can outlast a short write timeout.
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(handler, routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
