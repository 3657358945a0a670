package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvesdmateus/base-images/internal/state"
	"github.com/alvesdmateus/base-images/pkg/config"
	"github.com/alvesdmateus/base-images/pkg/database"
)

func TestOpenHistory_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := OpenHistory(config.HistoryConfig{
		Enabled:         true,
		Driver:          database.DriverSQLite,
		DSN:             dsn,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	defer database.Close(db)

	assert.True(t, database.HasTable(db, &state.BuildRecord{}))

	repo := state.NewRepository(db)
	require.NoError(t, repo.RecordItem(context.Background(), &state.BuildRecord{
		RunID:      uuid.New(),
		Definition: "python3-minimal",
		Stage:      string(StageDone),
		Status:     state.StatusSucceeded,
	}))

	records, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestOpenHistory_UnsupportedDriver(t *testing.T) {
	_, err := OpenHistory(config.HistoryConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
