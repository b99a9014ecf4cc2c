package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"catalogsync/internal/api"
	"catalogsync/internal/api/handlers"
	"catalogsync/internal/app"
	"catalogsync/internal/config"
	"catalogsync/internal/logger"
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

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Env)
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var history handlers.RunHistory
	if application.Runs != nil {
		history = application.Runs
	}
	syncHandler := handlers.NewSyncHandler(ctx, application.RunFunc("api"), history, logger)
	catalogHandler := handlers.NewCatalogHandler(application.Source, application.Destination, logger)

	// Initialize API server
	server := api.New(cfg, logger, syncHandler, catalogHandler)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
	// A cancelled run stops at the next product.
	syncHandler.Wait()
}
