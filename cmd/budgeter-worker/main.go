// budgeter-worker relays ledger mutations made by external producers into
// the budget engine: it consumes change messages from the broker, replays
// them on the in-process bus, and publishes any resulting alert updates
// back out.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgeter/internal/amqp"
	"budgeter/internal/bus"
	"budgeter/internal/config"
	"budgeter/internal/core"
	"budgeter/internal/engine"
	"budgeter/internal/ledger"
	applog "budgeter/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting budgeter-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	sqliteLedger, err := ledger.NewSQLiteLedger(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite ledger", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteLedger.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	events := bus.New()
	eng := engine.New(sqliteLedger, events, engine.Options{
		ProgressTTL:     cfg.ProgressCacheTTL,
		AnalyticsTTL:    cfg.AnalyticsCacheTTL,
		DebounceWindow:  cfg.AlertDebounce,
		CleanupInterval: cfg.CacheCleanup,
	})
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events.OnBudgetAlertsUpdated(func(ev bus.AlertsUpdated) {
		msg := &amqp.AlertsUpdatedMessage{CategoryID: ev.CategoryID, Alerts: ev.Alerts}
		if err := amqpClient.PublishAlertsUpdated(ctx, msg); err != nil {
			logger.Error("Failed to publish alert update", "error", err, "category_id", ev.CategoryID)
		}
	})

	go func() {
		if err := amqpClient.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangeMessage) error {
			relay(events, msg)
			return nil
		}); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	case <-ctx.Done():
	}

	logger.Info("Worker stopped gracefully")
}

func relay(events *bus.Bus, msg *amqp.LedgerChangeMessage) {
	switch msg.Kind {
	case "transaction":
		ev := bus.TransactionChange{
			Type:          bus.ChangeType(msg.ChangeType),
			TransactionID: msg.TransactionID,
			CategoryID:    msg.CategoryID,
			Amount:        core.Money{Cents: msg.AmountCents},
		}
		if msg.PrevAmountCents != nil {
			ev.PreviousAmount = &core.Money{Cents: *msg.PrevAmountCents}
		}
		events.EmitTransactionChanged(ev)
	case "budget":
		events.EmitBudgetChanged(bus.BudgetChange{
			Type:       bus.ChangeType(msg.ChangeType),
			BudgetID:   msg.BudgetID,
			CategoryID: msg.CategoryID,
			Amount:     core.Money{Cents: msg.AmountCents},
		})
	default:
		slog.Warn("Unknown ledger change kind", "kind", msg.Kind)
	}
}
