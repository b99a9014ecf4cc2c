// Package syncer mirrors the Rackbeat product catalog into Shopify.
//
// A run fetches the whole source catalog once and then handles one product at
// a time: search the storefront by product number, decide, write, move on. A
// product exists on the storefront when a product's title equals the source
// number exactly. Tags are never used for the existence check.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/services"
	"catalogsync/internal/services/rackbeat"
	"catalogsync/internal/services/shopify"
)

type Mode string

const (
	// ModeSkipExisting creates missing products and leaves existing ones alone.
	ModeSkipExisting Mode = "skip-existing"
	// ModeOverwrite creates missing products and overwrites existing ones.
	ModeOverwrite Mode = "overwrite"
)

var (
	ErrMissingNumber = errors.New("source product has no number")
	ErrInvalidMode   = errors.New("mode must be skip-existing or overwrite")
)

// ParseMode validates a mode name. An empty name yields the empty mode, which
// leaves the configured mode in place.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case "", ModeSkipExisting, ModeOverwrite:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

type Source interface {
	FetchAll(ctx context.Context) ([]rackbeat.Product, error)
}

type Destination interface {
	SearchByTitle(ctx context.Context, title string) ([]shopify.Product, error)
	Create(ctx context.Context, in shopify.ProductInput) (*shopify.Product, error)
	CreateOrUpdate(ctx context.Context, in shopify.ProductInput) (*shopify.Product, error)
	PublishToAllChannels(ctx context.Context, productID int64) shopify.PublicationReport
}

// Recorder keeps the audit history of runs.
type Recorder interface {
	StartRun(ctx context.Context, run *models.SyncRun) error
	RecordItem(ctx context.Context, item *models.SyncItem) error
	FinishRun(ctx context.Context, run *models.SyncRun) error
}

type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type Limiter interface {
	Wait(ctx context.Context) error
}

type Options struct {
	Mode            Mode
	PublishOnCreate bool
	Trigger         string
}

type Orchestrator struct {
	source   Source
	dest     Destination
	opts     Options
	limiter  Limiter
	recorder Recorder
	sink     EventSink
	progress ProgressFunc
	logger   *logger.Logger
}

// ProgressFunc observes each product outcome; position is 1-based.
type ProgressFunc func(position, total int, result ItemResult)

type Option func(*Orchestrator)

func WithLimiter(l Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithEventSink(s EventSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

func New(source Source, dest Destination, opts Options, logger *logger.Logger, options ...Option) *Orchestrator {
	if opts.Mode == "" {
		opts.Mode = ModeOverwrite
	}
	if opts.Trigger == "" {
		opts.Trigger = "cli"
	}
	o := &Orchestrator{
		source: source,
		dest:   dest,
		opts:   opts,
		logger: logger,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.limiter == nil {
		o.limiter = NewLimiter(0, 0)
	}
	return o
}

// Clone returns a copy of o sharing its clients and sinks. Non-empty fields of
// opts replace the current options; PublishOnCreate is kept as configured.
func (o *Orchestrator) Clone(opts Options) *Orchestrator {
	c := *o
	if opts.Mode != "" {
		c.opts.Mode = opts.Mode
	}
	if opts.Trigger != "" {
		c.opts.Trigger = opts.Trigger
	}
	return &c
}

func (o *Orchestrator) Mode() Mode {
	return o.opts.Mode
}

// Run performs one sync pass. The returned summary is never nil. The error is
// set only when the source catalog could not be fetched or the run was
// cancelled; per-product failures are counted in the summary instead.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	run := &models.SyncRun{
		ID:        uuid.New().String(),
		Mode:      string(o.opts.Mode),
		Trigger:   o.opts.Trigger,
		Status:    models.RunStatusRunning,
		StartedAt: started,
	}
	// Bookkeeping uses a context that survives cancellation so the run row
	// and its summary event always reach a final state.
	bookkeeping := context.WithoutCancel(ctx)
	o.startRun(bookkeeping, run)
	log := o.logger.With("run_id", run.ID, "mode", o.opts.Mode)

	summary := &Summary{RunID: run.ID, Mode: o.opts.Mode}

	log.Info("Fetching source catalog")
	products, err := o.source.FetchAll(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch source catalog: %w", err)
		status := models.RunStatusFailed
		if ctx.Err() != nil {
			status = models.RunStatusCancelled
			summary.Cancelled = true
		}
		log.Error("Sync aborted: %v", err)
		summary.Duration = time.Since(started)
		o.finishRun(bookkeeping, run, summary, status, err)
		return summary, err
	}
	summary.Total = len(products)
	log.Info("Processing %d source products", len(products))

	for i := range products {
		if ctx.Err() != nil {
			break
		}

		result := o.processProduct(ctx, log, &products[i])
		if ctx.Err() != nil && errors.Is(result.Err, ctx.Err()) {
			break
		}
		summary.add(result)
		o.recordItem(ctx, run.ID, result)
		o.publishItem(ctx, run.ID, result)
		if o.progress != nil {
			o.progress(i+1, len(products), result)
		}
	}

	if err := ctx.Err(); err != nil {
		summary.Cancelled = true
		err = fmt.Errorf("sync cancelled after %d of %d products: %w", summary.Processed(), summary.Total, err)
		log.Warn("%v", err)
		summary.Duration = time.Since(started)
		o.finishRun(bookkeeping, run, summary, models.RunStatusCancelled, err)
		return summary, err
	}

	summary.Duration = time.Since(started)
	log.Info("%s", summary)
	o.finishRun(bookkeeping, run, summary, models.RunStatusCompleted, nil)
	return summary, nil
}

func (o *Orchestrator) processProduct(ctx context.Context, log *logger.Logger, p *rackbeat.Product) ItemResult {
	in := ToInput(p)
	result := ItemResult{Number: in.Number}
	if in.Number == "" {
		result.Outcome = models.OutcomeErrored
		result.Err = ErrMissingNumber
		log.Error("Skipping source product %q: %v", p.Name, ErrMissingNumber)
		return result
	}

	log.Debug("Searching Shopify for %s", in.Number)
	matches, err := o.dest.SearchByTitle(ctx, in.Number)
	if err != nil {
		result.Outcome = models.OutcomeErrored
		result.Err = fmt.Errorf("search %s: %w", in.Number, err)
		log.Error("Search failed for %s: %v", in.Number, err)
		return result
	}
	existing := shopify.FindExact(matches, in.Number)

	switch o.opts.Mode {
	case ModeSkipExisting:
		if existing != nil {
			result.Outcome = models.OutcomeSkipped
			result.DestinationID = existing.ID
			log.Info("Product %s already exists as %d, skipping", in.Number, existing.ID)
			return result
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return errored(result, err)
		}
		product, err := o.dest.Create(ctx, in)
		if err != nil {
			if services.IsUnprocessable(err) {
				result.Outcome = models.OutcomeSkipped
				log.Info("Product %s rejected as unprocessable, treating as existing: %v", in.Number, err)
				return result
			}
			log.Error("Create failed for %s: %v", in.Number, err)
			return errored(result, fmt.Errorf("create %s: %w", in.Number, err))
		}
		result.Outcome = models.OutcomeCreated
		result.DestinationID = product.ID

	default:
		if err := o.limiter.Wait(ctx); err != nil {
			return errored(result, err)
		}
		product, err := o.dest.CreateOrUpdate(ctx, in)
		if err != nil {
			log.Error("Create or update failed for %s: %v", in.Number, err)
			return errored(result, fmt.Errorf("create or update %s: %w", in.Number, err))
		}
		result.DestinationID = product.ID
		if containsID(matches, product.ID) {
			result.Outcome = models.OutcomeUpdated
		} else {
			result.Outcome = models.OutcomeCreated
		}
	}

	if result.Outcome == models.OutcomeCreated && o.opts.PublishOnCreate {
		report := o.dest.PublishToAllChannels(ctx, result.DestinationID)
		if !report.OK() {
			result.Warning = report.Err()
			log.Warn("Product %s created but not published everywhere: %v", in.Number, result.Warning)
		}
	}

	log.Info("Product %s %s (id %d)", in.Number, strings.ToLower(string(result.Outcome)), result.DestinationID)
	return result
}

func errored(result ItemResult, err error) ItemResult {
	result.Outcome = models.OutcomeErrored
	result.Err = err
	return result
}

func containsID(products []shopify.Product, id int64) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ToInput maps a Rackbeat product onto the storefront input.
func ToInput(p *rackbeat.Product) shopify.ProductInput {
	return shopify.ProductInput{
		Number:      strings.TrimSpace(p.Number),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price(),
	}
}

func (o *Orchestrator) startRun(ctx context.Context, run *models.SyncRun) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.StartRun(ctx, run); err != nil {
		o.logger.Warn("Could not record sync run: %v", err)
	}
}

func (o *Orchestrator) recordItem(ctx context.Context, runID string, result ItemResult) {
	if o.recorder == nil {
		return
	}
	item := &models.SyncItem{
		RunID:   runID,
		Number:  result.Number,
		Outcome: result.Outcome,
	}
	if result.DestinationID != 0 {
		id := result.DestinationID
		item.DestinationID = &id
	}
	if result.Err != nil {
		msg := result.Err.Error()
		item.Error = &msg
	}
	if result.Warning != nil {
		msg := result.Warning.Error()
		item.Warning = &msg
	}
	if err := o.recorder.RecordItem(ctx, item); err != nil {
		o.logger.Warn("Could not record outcome of %s: %v", result.Number, err)
	}
}

func (o *Orchestrator) publishItem(ctx context.Context, runID string, result ItemResult) {
	if o.sink == nil {
		return
	}
	event := events.Event{
		Type:          eventType(result.Outcome),
		RunID:         runID,
		Number:        result.Number,
		DestinationID: result.DestinationID,
	}
	if result.Err != nil {
		event.Error = result.Err.Error()
	}
	if result.Warning != nil {
		event.Warning = result.Warning.Error()
	}
	if err := o.sink.Publish(ctx, event); err != nil {
		o.logger.Warn("Could not publish event for %s: %v", result.Number, err)
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, run *models.SyncRun, summary *Summary, status models.RunStatus, runErr error) {
	now := time.Now()
	run.Status = status
	run.Total = summary.Total
	run.Created = summary.Created
	run.Updated = summary.Updated
	run.Skipped = summary.Skipped
	run.Errored = summary.Errored
	run.Warnings = summary.Warnings
	run.FinishedAt = &now
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	if o.recorder != nil {
		if err := o.recorder.FinishRun(ctx, run); err != nil {
			o.logger.Warn("Could not finish sync run record: %v", err)
		}
	}
	if o.sink != nil {
		event := events.Event{Type: events.TypeSyncCompleted, RunID: run.ID, Data: summary.Counters()}
		if runErr != nil {
			event.Error = runErr.Error()
		}
		if err := o.sink.Publish(ctx, event); err != nil {
			o.logger.Warn("Could not publish run summary: %v", err)
		}
	}
}

func eventType(outcome models.ItemOutcome) string {
	switch outcome {
	case models.OutcomeCreated:
		return events.TypeProductCreated
	case models.OutcomeUpdated:
		return events.TypeProductUpdated
	case models.OutcomeSkipped:
		return events.TypeProductSkipped
	default:
		return events.TypeProductErrored
	}
}
