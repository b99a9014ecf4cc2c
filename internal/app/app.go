// Package app wires the clients, stores and sinks shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"catalogsync/internal/config"
	"catalogsync/internal/database"
	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/services/rackbeat"
	"catalogsync/internal/services/shopify"
	"catalogsync/internal/syncer"
)

type App struct {
	Config      *config.Config
	Logger      *logger.Logger
	Source      *rackbeat.Client
	Destination *shopify.Client
	// Runs is nil when DATABASE_URL is empty.
	Runs *database.RunStore
	// Events is nil when KAFKA_BROKERS is empty.
	Events *events.Publisher

	db *database.Database
}

// New builds the application from a validated configuration. The run history
// and the event publisher are only set up when configured.
func New(cfg *config.Config, logger *logger.Logger) (*App, error) {
	a := &App{
		Config:      cfg,
		Logger:      logger,
		Source:      rackbeat.NewClient(cfg.Rackbeat, logger),
		Destination: shopify.NewClient(cfg.Shopify, logger),
	}

	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL, cfg.LogLevel == "debug")
		if err != nil {
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		a.db = db
		a.Runs = database.NewRunStore(db.DB)
	} else {
		logger.Debug("DATABASE_URL not set, run history disabled")
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		a.Events = events.NewPublisher(brokers, cfg.KafkaEventsTopic, logger)
	} else {
		logger.Debug("KAFKA_BROKERS not set, event publishing disabled")
	}

	return a, nil
}

// Orchestrator returns a sync orchestrator labelled with trigger.
func (a *App) Orchestrator(trigger string, extra ...syncer.Option) *syncer.Orchestrator {
	options := []syncer.Option{
		syncer.WithLimiter(syncer.NewLimiter(a.Config.Sync.RateLimitRPS, a.Config.Sync.RateLimitBurst)),
	}
	if a.Runs != nil {
		options = append(options, syncer.WithRecorder(a.Runs))
	}
	if a.Events != nil {
		options = append(options, syncer.WithEventSink(a.Events))
	}
	options = append(options, extra...)

	return syncer.New(a.Source, a.Destination, syncer.OptionsFromConfig(a.Config.Sync, trigger), a.Logger, options...)
}

// RunFunc adapts an orchestrator to the per-request mode override used by the
// API and the worker.
func (a *App) RunFunc(trigger string) func(ctx context.Context, mode syncer.Mode) (*syncer.Summary, error) {
	base := a.Orchestrator(trigger)
	return func(ctx context.Context, mode syncer.Mode) (*syncer.Summary, error) {
		return base.Clone(syncer.Options{Mode: mode}).Run(ctx)
	}
}

func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
