package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/app"
	"restopay_app/internal/config"
	"restopay_app/internal/logging"
	"restopay_app/internal/tasks"
)

const pollInterval = time.Minute

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}
	defer a.Close()

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, a.TaskDeps())

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Job.RRule != "" {
		if _, err := a.Queue.EnsureRecurringTask(ctx, tasks.InvoiceBackfillTask.TaskID(), cfg.Job.RRule, map[string]interface{}{}, 1); err != nil {
			logger.Warn("Failed to schedule invoice backfill", zap.Error(err))
		}
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

	logger.Info("Worker started", zap.Strings("tasks", registry.Names()), zap.Duration("poll_interval", pollInterval))
	tasks.NewRunner(a.TaskStore, registry, logger).Start(ctx, pollInterval)
}
