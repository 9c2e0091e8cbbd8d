package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpan(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"12h": 12 * time.Hour,
		"30m": 30 * time.Minute,
		" 1D": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseSpan(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "d", "7w", "xd", "-1d", "0h"} {
		_, err := ParseSpan(bad)
		assert.ErrorIs(t, err, ErrInvalidSpan, bad)
	}
}

func TestParseCleanupFrequency(t *testing.T) {
	s, err := ParseCleanupFrequency("1d", "03:00")
	require.NoError(t, err)
	assert.True(t, s.Daily)

	s, err = ParseCleanupFrequency("6h", "")
	require.NoError(t, err)
	assert.False(t, s.Daily)
	assert.Equal(t, 6*time.Hour, s.Every)

	s, err = ParseCleanupFrequency("weekly", "03:00")
	assert.Error(t, err)
	assert.Equal(t, DefaultCleanupSchedule, s, "非法周期回退到每天 03:00")

	_, err = ParseCleanupFrequency("1d", "25:99")
	assert.Error(t, err)
}

func TestCleanupScheduleFirstAndNext(t *testing.T) {
	daily := DefaultCleanupSchedule

	before := time.Date(2024, 5, 1, 1, 30, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local), daily.First(before))

	after := time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local)
	first := daily.First(after)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, time.Local), first)
	assert.Equal(t, time.Date(2024, 5, 3, 3, 0, 0, 0, time.Local), daily.Next(first))

	every := CleanupSchedule{Every: 2 * time.Hour}
	assert.Equal(t, before.Add(2*time.Hour), every.First(before))
	assert.Equal(t, before.Add(4*time.Hour), every.Next(before.Add(2*time.Hour)))
}

func touch(t *testing.T, p string, mt time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x=1"), 0o644))
	require.NoError(t, os.Chtimes(p, mt, mt))
}

func TestCleanerRemovesExpiredTxt(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)

	old := filepath.Join(dir, "wap_top", "wap_top_2024_05_01__00_00.txt")
	fresh := filepath.Join(dir, "wap_top", "wap_top_2024_05_10__11_59.txt")
	oldOther := filepath.Join(dir, "wap_top", "notes.log")
	touch(t, old, now.Add(-9*24*time.Hour))
	touch(t, fresh, now.Add(-time.Minute))
	touch(t, oldOther, now.Add(-30*24*time.Hour))

	m := NewMetrics()
	c := NewCleaner(dir, "7d", 0, m)
	c.now = func() time.Time { return now }

	n, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, oldOther, "只清理 .txt 文件")
	assert.Contains(t, scrape(t, m), "ont_collector_cleanup_deleted_files_total 1")
}

func TestCleanerInvalidRetentionSkips(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a", "a_2000_01_01__00_00.txt")
	touch(t, p, time.Date(2000, 1, 1, 0, 0, 0, 0, time.Local))

	n, err := NewCleaner(dir, "7w", 0, nil).Run()
	assert.ErrorIs(t, err, ErrInvalidSpan)
	assert.Zero(t, n)
	assert.FileExists(t, p)
}

func TestCleanerMissingDataDir(t *testing.T) {
	n, err := NewCleaner(filepath.Join(t.TempDir(), "missing"), "1d", 0, nil).Run()
	require.NoError(t, err)
	assert.Zero(t, n)
}
