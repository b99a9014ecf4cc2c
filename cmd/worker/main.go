package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"catalogsync/internal/app"
	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if len(cfg.Brokers()) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the worker")
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Env)
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer application.Close()

	// Initialize worker
	w := worker.New(cfg, application.RunFunc("kafka"), logger)

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker...")
	if err := w.Start(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}

	logger.Info("Shutting down worker...")
	if err := w.Stop(); err != nil {
		logger.Error("Failed to close reader: %v", err)
	}
}
