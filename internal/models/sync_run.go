package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncRun is the audit record of one catalog sync. It is history only and is
// never consulted to decide whether a product exists on the storefront.
type SyncRun struct {
	ID         string     `json:"id" gorm:"type:uuid;primary_key"`
	Mode       string     `json:"mode" gorm:"not null"`
	Trigger    string     `json:"trigger" gorm:"default:cli"`
	Status     RunStatus  `json:"status" gorm:"default:RUNNING"`
	Total      int        `json:"total"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Errored    int        `json:"errored"`
	Warnings   int        `json:"warnings"`
	Error      *string    `json:"error"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Items []SyncItem `json:"items,omitempty" gorm:"foreignKey:RunID"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// SyncItem is the outcome of one source product within a run.
type SyncItem struct {
	ID            string      `json:"id" gorm:"type:uuid;primary_key"`
	RunID         string      `json:"run_id" gorm:"type:uuid;index;not null"`
	Number        string      `json:"number" gorm:"index;not null"`
	Outcome       ItemOutcome `json:"outcome" gorm:"not null"`
	DestinationID *int64      `json:"destination_id"`
	Error         *string     `json:"error"`
	Warning       *string     `json:"warning"`
	CreatedAt     time.Time   `json:"created_at"`
}

type ItemOutcome string

const (
	OutcomeCreated ItemOutcome = "CREATED"
	OutcomeUpdated ItemOutcome = "UPDATED"
	OutcomeSkipped ItemOutcome = "SKIPPED"
	OutcomeErrored ItemOutcome = "ERRORED"
)

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (i *SyncItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
