/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  storage backend selection, dependency injection, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env supported)
  2. Open the selected store (sqlite or postgres)
  3. Wire the approval service and HTTP handlers
  4. Start the server with graceful shutdown

CONFIGURATION (environment variables):
  PORT          HTTP server port (default: 8080)
  APP_ENV       development | production (default: development)
  DB_DRIVER     sqlite | postgres (default: sqlite)
  SQLITE_PATH   SQLite database path; ":memory:" works (default: leave.db)
  DATABASE_URL  PostgreSQL connection URL (required for postgres)
  CORS_ORIGINS  Comma-separated allowed origins (default: *)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment loading
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peoplekit/leave-engine/api"
	"github.com/peoplekit/leave-engine/config"
	"github.com/peoplekit/leave-engine/leave"
	"github.com/peoplekit/leave-engine/store/postgres"
	"github.com/peoplekit/leave-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := api.NewLogger(cfg.AppEnv)

	var (
		store      leave.TxStore
		closeStore func()
	)
	switch cfg.DBDriver {
	case "postgres":
		pg, err := postgres.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("open postgres store", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			logger.Error("migrate postgres store", "error", err)
			os.Exit(1)
		}
		store, closeStore = pg, pg.Close
	default:
		sq, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			logger.Error("open sqlite store", "error", err)
			os.Exit(1)
		}
		store, closeStore = sq, func() { sq.Close() }
	}
	defer closeStore()

	service := leave.NewApprovalService(store)
	handler := api.NewHandler(service, store, logger)
	router := api.NewRouter(handler, logger, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "driver", cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
