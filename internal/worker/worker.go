package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"catalogsync/internal/config"
	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/syncer"
)

// RunFunc runs one sync in the given mode. An empty mode means the configured one.
type RunFunc func(ctx context.Context, mode syncer.Mode) (*syncer.Summary, error)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Worker consumes sync requests and runs them one at a time.
type Worker struct {
	reader messageReader
	run    RunFunc
	logger *logger.Logger
}

func New(cfg *config.Config, run RunFunc, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers(),
		GroupID:        cfg.KafkaGroupID,
		Topic:          cfg.KafkaRequestsTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return newWorker(reader, run, logger)
}

func newWorker(reader messageReader, run RunFunc, logger *logger.Logger) *Worker {
	return &Worker{reader: reader, run: run, logger: logger}
}

// Start reads requests until ctx is done. Runs are sequential, so a request
// arriving during a run waits on the topic.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started, listening for sync requests...")

	for {
		message, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("request reader closed: %w", err)
			}
			w.logger.Error("Failed to read message: %v", err)
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		if err := w.Handle(ctx, message); err != nil {
			w.logger.Error("Failed to process sync request: %v", err)
			continue
		}
	}
}

// Handle runs a sync for a sync.requested message and ignores other types.
func (w *Worker) Handle(ctx context.Context, message kafka.Message) error {
	var event events.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}
	if event.Type != events.TypeSyncRequested {
		w.logger.Debug("Ignoring %s event", event.Type)
		return nil
	}

	mode, err := syncer.ParseMode(requestedMode(event.Data))
	if err != nil {
		return err
	}

	summary, err := w.run(ctx, mode)
	if err != nil {
		return fmt.Errorf("sync run failed: %w", err)
	}
	w.logger.Info("Requested sync finished: %s", summary)
	return nil
}

func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")
	return w.reader.Close()
}

func requestedMode(data any) string {
	fields, ok := data.(map[string]interface{})
	if !ok {
		return ""
	}
	mode, _ := fields["mode"].(string)
	return mode
}
