package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgeter/internal/amqp"
	"budgeter/internal/bus"
	"budgeter/internal/config"
	"budgeter/internal/engine"
	apphttp "budgeter/internal/http"
	"budgeter/internal/ledger"
	applog "budgeter/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentApp)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Choose the ledger backend (default: memory).
	var (
		store  ledger.Ledger
		writer ledger.TransactionWriter
	)
	switch cfg.DataBackend {
	case "sqlite":
		sqliteLedger, err := ledger.NewSQLiteLedger(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite ledger", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteLedger.Close()
		store, writer = sqliteLedger, sqliteLedger
		logger.Info("Initialized SQLite ledger", "path", cfg.SQLiteDBPath)
	default:
		memLedger := ledger.NewMemoryLedger()
		store, writer = memLedger, memLedger
		logger.Info("Initialized memory ledger")
	}

	events := bus.New()
	eng := engine.New(store, events, engine.Options{
		ProgressTTL:     cfg.ProgressCacheTTL,
		AnalyticsTTL:    cfg.AnalyticsCacheTTL,
		DebounceWindow:  cfg.AlertDebounce,
		CleanupInterval: cfg.CacheCleanup,
	})
	defer eng.Close()

	service := ledger.NewService(store, writer, events)

	// Bridge alert updates out to the broker when one is configured.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		events.OnBudgetAlertsUpdated(func(ev bus.AlertsUpdated) {
			msg := &amqp.AlertsUpdatedMessage{CategoryID: ev.CategoryID, Alerts: ev.Alerts}
			if err := amqpClient.PublishAlertsUpdated(context.Background(), msg); err != nil {
				logger.Error("Failed to publish alert update", "error", err, "category_id", ev.CategoryID)
			}
		})
		logger.Info("AMQP alert bridge enabled", "exchange", cfg.AMQPExchange)
	}

	srv := apphttp.NewServer(":"+cfg.Port, eng, service)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting budgeter server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
