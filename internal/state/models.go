package state

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alvesdmateus/base-images/pkg/database"
)

// Item status values
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// BuildRecord is the outcome of one definition in one run
type BuildRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Definition string    `gorm:"not null;index"`
	Namespace  string
	Repository string
	Tag        string
	// Stage is the last stage the item reached: build, publish, record or done
	Stage      string `gorm:"not null"`
	Status     string `gorm:"not null"`
	BuildOnly  bool
	Published  bool
	RecordPath string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
}

// Duration returns how long the item took
func (r BuildRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// AutoMigrate runs database migrations for the history tables
func AutoMigrate(db *gorm.DB) error {
	return database.Migrate(db, &BuildRecord{})
}
