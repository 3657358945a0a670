package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/alvesdmateus/base-images/internal/state"
	"github.com/alvesdmateus/base-images/pkg/config"
	"github.com/alvesdmateus/base-images/pkg/database"
)

// OpenHistory connects to the build history database and migrates it
func OpenHistory(cfg config.HistoryConfig) (*gorm.DB, error) {
	if cfg.Driver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if err := state.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, err
	}

	return db, nil
}
