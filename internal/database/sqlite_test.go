package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitSQLite(config.SQLiteConfig{
		Path:            filepath.Join(t.TempDir(), "db", "test.db"),
		ConnMaxLifetime: time.Minute,
	}))
	t.Cleanup(func() { _ = Close() })
}

func TestRunsRoundTrip(t *testing.T) {
	initTestDB(t)
	require.NoError(t, Health())

	now := time.Now()
	runs := []model.CommandRun{
		{ID: "a", Job: "fast", Command: "wap top", Status: model.RunStatusSuccess, StartedAt: now.Add(-2 * time.Minute)},
		{ID: "b", Job: "fast", Command: "wap top", Status: model.RunStatusFailed, StartedAt: now.Add(-time.Minute)},
		{ID: "c", Job: "slow", Command: "display deviceinfo", Status: model.RunStatusSuccess, StartedAt: now},
	}
	for i := range runs {
		require.NoError(t, SaveRun(&runs[i]))
	}

	got, err := RecentRuns("", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID, "最新记录在前")

	got, err = RecentRuns("wap top", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	counts, err := RunCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.RunStatusSuccess])
	assert.Equal(t, int64(1), counts[model.RunStatusFailed])

	n, err := PurgeRunsBefore(now.Add(-30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	got, err = RecentRuns("", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNotInitialized(t *testing.T) {
	assert.Error(t, Health())
	assert.Error(t, SaveRun(&model.CommandRun{ID: "x"}))
}

func TestIsBusyError(t *testing.T) {
	assert.False(t, IsBusyError(nil))
	assert.False(t, IsBusyError(assert.AnError))
	assert.True(t, IsBusyError(errors.New("database is locked (5) (SQLITE_BUSY)")))
}
