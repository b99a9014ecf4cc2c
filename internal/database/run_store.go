package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"catalogsync/internal/models"
)

var ErrRunNotFound = errors.New("sync run not found")

// RunStore persists sync run history.
type RunStore struct {
	db *gorm.DB
}

func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) StartRun(ctx context.Context, run *models.SyncRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

func (s *RunStore) RecordItem(ctx context.Context, item *models.SyncItem) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to record sync item %s: %w", item.Number, err)
	}
	return nil
}

// FinishRun stores the final counters and status of run.
func (s *RunStore) FinishRun(ctx context.Context, run *models.SyncRun) error {
	err := s.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("id = ?", run.ID).
		Select("status", "total", "created", "updated", "skipped", "errored", "warnings", "error", "finished_at").
		Updates(run).Error
	if err != nil {
		return fmt.Errorf("failed to finish sync run %s: %w", run.ID, err)
	}
	return nil
}

// MaxListLimit caps the page size of ListRuns.
const MaxListLimit = 100

// ListRuns returns the most recent runs first, without items.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	var runs []models.SyncRun
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its items.
func (s *RunStore) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync run %s: %w", id, err)
	}
	return &run, nil
}
