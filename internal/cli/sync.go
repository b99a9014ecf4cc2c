// Package cli implements the catalogsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"catalogsync/internal/app"
	"catalogsync/internal/config"
	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/syncer"
)

// ConfigError marks failures the process should exit non-zero for. Sync
// failures never do; they are reported in the summary instead.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var ErrNoBrokers = errors.New("--request needs KAFKA_BROKERS")

type syncFlags struct {
	mode    string
	publish bool
	request bool
}

// NewSyncCommand returns the root command of the sync binary.
func NewSyncCommand() *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "catalogsync",
		Short: "Mirror the Rackbeat product catalog into Shopify",
		Long: `Fetches every Rackbeat product and creates or updates the matching
Shopify product, matched by product number as title.

Configuration comes from the environment and an optional .env file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.mode, "mode", "", "skip-existing or overwrite (default from SYNC_MODE)")
	cmd.Flags().BoolVar(&flags.publish, "publish", false, "publish created products to every sales channel")
	cmd.Flags().BoolVar(&flags.request, "request", false, "ask the worker to run the sync instead of running it here")

	return cmd
}

func runSync(cmd *cobra.Command, flags *syncFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if flags.mode != "" {
		cfg.Sync.Mode = flags.mode
	}
	if flags.publish {
		cfg.Sync.PublishOnCreate = true
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	log := logger.New(cfg.LogLevel, cfg.Env)
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if flags.request {
		return requestSync(ctx, cmd, cfg, log)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	progress := func(position, total int, result syncer.ItemResult) {
		fmt.Fprintf(out, "[%d/%d] %s %s\n", position, total, result.Number, describe(result))
	}

	fmt.Fprintf(out, "Syncing Rackbeat products into Shopify (%s)...\n", cfg.Sync.Mode)
	summary, err := application.Orchestrator("cli", syncer.WithProgress(progress)).Run(ctx)
	if err != nil {
		cmd.PrintErrf("Sync stopped: %v\n", err)
	}
	fmt.Fprintln(out, summary.String())
	return nil
}

func requestSync(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logger.Logger) error {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return &ConfigError{Err: ErrNoBrokers}
	}

	publisher := events.NewPublisher(brokers, cfg.KafkaRequestsTopic, log)
	defer publisher.Close()

	event := events.Event{
		Type: events.TypeSyncRequested,
		Data: map[string]string{"mode": cfg.Sync.Mode},
	}
	if err := publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to request sync: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sync requested on %s (%s)\n", cfg.KafkaRequestsTopic, cfg.Sync.Mode)
	return nil
}

func describe(r syncer.ItemResult) string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("error: %v", r.Err)
	case r.Warning != nil:
		return fmt.Sprintf("%s (id %d), warning: %v", outcomeVerb(r), r.DestinationID, r.Warning)
	case r.DestinationID != 0:
		return fmt.Sprintf("%s (id %d)", outcomeVerb(r), r.DestinationID)
	}
	return outcomeVerb(r)
}

func outcomeVerb(r syncer.ItemResult) string {
	switch r.Outcome {
	case models.OutcomeCreated:
		return "created"
	case models.OutcomeUpdated:
		return "updated"
	case models.OutcomeSkipped:
		return "skipped"
	}
	return "failed"
}
