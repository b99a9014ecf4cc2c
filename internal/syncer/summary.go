package syncer

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"catalogsync/internal/config"
	"catalogsync/internal/models"
)

// ItemResult is the outcome of one source product.
type ItemResult struct {
	Number        string
	Outcome       models.ItemOutcome
	DestinationID int64
	Err           error
	Warning       error
}

type Summary struct {
	RunID     string
	Mode      Mode
	Total     int
	Created   int
	Updated   int
	Skipped   int
	Errored   int
	Warnings  int
	Cancelled bool
	Duration  time.Duration
	Items     []ItemResult
}

// Counters is the JSON shape of a summary carried in run events and API responses.
type Counters struct {
	RunID      string `json:"run_id"`
	Mode       Mode   `json:"mode"`
	Total      int    `json:"total"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Errored    int    `json:"errored"`
	Warnings   int    `json:"warnings"`
	Cancelled  bool   `json:"cancelled"`
	DurationMS int64  `json:"duration_ms"`
}

func (s *Summary) add(r ItemResult) {
	s.Items = append(s.Items, r)
	switch r.Outcome {
	case models.OutcomeCreated:
		s.Created++
	case models.OutcomeUpdated:
		s.Updated++
	case models.OutcomeSkipped:
		s.Skipped++
	default:
		s.Errored++
	}
	if r.Warning != nil {
		s.Warnings++
	}
}

// Processed is the number of products that reached an outcome.
func (s *Summary) Processed() int {
	return s.Created + s.Updated + s.Skipped + s.Errored
}

func (s *Summary) Counters() Counters {
	return Counters{
		RunID:      s.RunID,
		Mode:       s.Mode,
		Total:      s.Total,
		Created:    s.Created,
		Updated:    s.Updated,
		Skipped:    s.Skipped,
		Errored:    s.Errored,
		Warnings:   s.Warnings,
		Cancelled:  s.Cancelled,
		DurationMS: s.Duration.Milliseconds(),
	}
}

func (s *Summary) String() string {
	return fmt.Sprintf("Sync finished: %d total, %d created, %d updated, %d skipped, %d errors, %d warnings in %s",
		s.Total, s.Created, s.Updated, s.Skipped, s.Errored, s.Warnings, s.Duration.Round(time.Millisecond))
}

// NewLimiter paces storefront writes. A non-positive rps disables pacing.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// OptionsFromConfig translates the SYNC_* settings into run options.
func OptionsFromConfig(cfg config.SyncConfig, trigger string) Options {
	return Options{
		Mode:            Mode(cfg.Mode),
		PublishOnCreate: cfg.PublishOnCreate,
		Trigger:         trigger,
	}
}
