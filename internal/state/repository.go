package state

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository provides database operations for build history
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new state repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RecordItem stores the outcome of one definition
func (r *Repository) RecordItem(ctx context.Context, record *BuildRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create build record: %w", err)
	}

	return nil
}

// ListRecent returns the most recent records across all definitions
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]BuildRecord, error) {
	var records []BuildRecord

	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list build records: %w", err)
	}

	return records, nil
}

// ListByDefinition returns the most recent records of one definition
func (r *Repository) ListByDefinition(ctx context.Context, definition string, limit int) ([]BuildRecord, error) {
	var records []BuildRecord

	if err := r.db.WithContext(ctx).
		Where("definition = ?", definition).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list build records for %s: %w", definition, err)
	}

	return records, nil
}

// ListByRun returns every record of one run in processing order
func (r *Repository) ListByRun(ctx context.Context, runID uuid.UUID) ([]BuildRecord, error) {
	var records []BuildRecord

	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("started_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list build records for run %s: %w", runID, err)
	}

	return records, nil
}

// LastSuccess returns the latest successful published record of a definition,
// or nil if there is none
func (r *Repository) LastSuccess(ctx context.Context, definition string) (*BuildRecord, error) {
	var record BuildRecord

	err := r.db.WithContext(ctx).
		Where("definition = ? AND status = ? AND published = ?", definition, StatusSucceeded, true).
		Order("started_at DESC").
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last successful build: %w", err)
	}

	return &record, nil
}
