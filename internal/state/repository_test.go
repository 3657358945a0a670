package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alvesdmateus/base-images/pkg/database"
)

// setupTestDB opens a fresh sqlite database with migrated tables
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, AutoMigrate(db), "failed to run migrations")
	return db
}

var baseTime = time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)

func newRecord(runID uuid.UUID, definition string, offset time.Duration, status string, published bool) *BuildRecord {
	return &BuildRecord{
		RunID:      runID,
		Definition: definition,
		Namespace:  "gigantum",
		Repository: definition,
		Tag:        "3f9a1c0be2-2024-03-07",
		Stage:      "done",
		Status:     status,
		Published:  published,
		StartedAt:  baseTime.Add(offset),
		FinishedAt: baseTime.Add(offset + time.Minute),
	}
}

func TestRecordItem(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	record := newRecord(uuid.New(), "python3-minimal", 0, StatusSucceeded, true)
	require.NoError(t, repo.RecordItem(ctx, record))
	assert.NotEqual(t, uuid.Nil, record.ID, "ID should be generated")
	assert.Equal(t, time.Minute, record.Duration())

	// A preset ID is kept
	id := uuid.New()
	second := newRecord(uuid.New(), "python3-minimal", time.Hour, StatusFailed, false)
	second.ID = id
	require.NoError(t, repo.RecordItem(ctx, second))
	assert.Equal(t, id, second.ID)
}

func TestListRecent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	runID := uuid.New()

	for i, def := range []string{"python3-minimal", "r-tidyverse", "python3-data-science"} {
		require.NoError(t, repo.RecordItem(ctx, newRecord(runID, def, time.Duration(i)*time.Hour, StatusSucceeded, true)))
	}

	records, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "python3-data-science", records[0].Definition)
	assert.Equal(t, "r-tidyverse", records[1].Definition)
}

func TestListByDefinition(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.RecordItem(ctx, newRecord(uuid.New(), "python3-minimal", 0, StatusSucceeded, true)))
	require.NoError(t, repo.RecordItem(ctx, newRecord(uuid.New(), "r-tidyverse", time.Hour, StatusFailed, false)))
	require.NoError(t, repo.RecordItem(ctx, newRecord(uuid.New(), "python3-minimal", 2*time.Hour, StatusFailed, false)))

	records, err := repo.ListByDefinition(ctx, "python3-minimal", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Equal(t, StatusSucceeded, records[1].Status)

	records, err = repo.ListByDefinition(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListByRun(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	runID := uuid.New()

	require.NoError(t, repo.RecordItem(ctx, newRecord(runID, "b-second", time.Hour, StatusFailed, false)))
	require.NoError(t, repo.RecordItem(ctx, newRecord(runID, "a-first", 0, StatusSucceeded, true)))
	require.NoError(t, repo.RecordItem(ctx, newRecord(uuid.New(), "other-run", 0, StatusSucceeded, true)))

	records, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a-first", records[0].Definition)
	assert.Equal(t, "b-second", records[1].Definition)
	assert.Equal(t, runID, records[0].RunID)
}

func TestLastSuccess(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	record, err := repo.LastSuccess(ctx, "python3-minimal")
	require.NoError(t, err)
	assert.Nil(t, record)

	published := newRecord(uuid.New(), "python3-minimal", 0, StatusSucceeded, true)
	buildOnly := newRecord(uuid.New(), "python3-minimal", time.Hour, StatusSucceeded, false)
	buildOnly.BuildOnly = true
	failed := newRecord(uuid.New(), "python3-minimal", 2*time.Hour, StatusFailed, false)
	for _, r := range []*BuildRecord{published, buildOnly, failed} {
		require.NoError(t, repo.RecordItem(ctx, r))
	}

	record, err = repo.LastSuccess(ctx, "python3-minimal")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, published.ID, record.ID)
}
