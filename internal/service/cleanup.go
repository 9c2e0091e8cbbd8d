package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ontcollector/ontcollector/internal/database"
	"github.com/ontcollector/ontcollector/pkg/logger"
)

// ErrInvalidSpan 时长格式不是 <n>d | <n>h | <n>m
var ErrInvalidSpan = errors.New("invalid span")

// ParseSpan 解析 "7d" / "12h" / "30m" 形式的时长
func ParseSpan(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSpan, s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSpan, s)
	}
	switch strings.ToLower(s[len(s)-1:]) {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	}
	return 0, fmt.Errorf("%w: unit of %q", ErrInvalidSpan, s)
}

// CleanupSchedule 清理周期；Daily 时首次在 At（HH:MM，本地时间）执行
type CleanupSchedule struct {
	Every time.Duration
	Daily bool
	At    string
}

// DefaultCleanupSchedule 每天 03:00
var DefaultCleanupSchedule = CleanupSchedule{Every: 24 * time.Hour, Daily: true, At: "03:00"}

// ParseCleanupFrequency 解析清理周期，按天的周期固定在 dailyAt 执行
func ParseCleanupFrequency(freq, dailyAt string) (CleanupSchedule, error) {
	d, err := ParseSpan(freq)
	if err != nil {
		return DefaultCleanupSchedule, err
	}
	if dailyAt == "" {
		dailyAt = DefaultCleanupSchedule.At
	}
	if _, err := time.Parse("15:04", dailyAt); err != nil {
		return DefaultCleanupSchedule, fmt.Errorf("invalid daily_at %q: %w", dailyAt, err)
	}
	daily := strings.HasSuffix(strings.ToLower(strings.TrimSpace(freq)), "d")
	return CleanupSchedule{Every: d, Daily: daily, At: dailyAt}, nil
}

// First 首次执行时间
func (c CleanupSchedule) First(now time.Time) time.Time {
	if !c.Daily {
		return now.Add(c.Every)
	}
	hm, err := time.Parse("15:04", c.At)
	if err != nil {
		hm, _ = time.Parse("15:04", DefaultCleanupSchedule.At)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Next 上一次执行后的下一次执行时间
func (c CleanupSchedule) Next(prev time.Time) time.Time {
	if c.Daily {
		return prev.AddDate(0, 0, int(c.Every/(24*time.Hour)))
	}
	return prev.Add(c.Every)
}

// Cleaner 删除数据目录中过期的指标文件与运行记录
type Cleaner struct {
	dataDir   string
	olderThan string
	// runRetention 运行记录保留时长，0 表示不清理
	runRetention time.Duration
	metrics      *Metrics
	now          func() time.Time
}

// NewCleaner 创建清理器
func NewCleaner(dataDir, olderThan string, runRetention time.Duration, metrics *Metrics) *Cleaner {
	return &Cleaner{
		dataDir:      dataDir,
		olderThan:    olderThan,
		runRetention: runRetention,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Run 执行一次清理，返回删除的文件数
// 保留时长格式非法时跳过本次清理
func (c *Cleaner) Run() (int, error) {
	keep, err := ParseSpan(c.olderThan)
	if err != nil {
		logger.Warnf("Invalid cleanup retention %q; cleanup skipped", c.olderThan)
		return 0, err
	}
	cutoff := c.now().Add(-keep)

	deleted := 0
	err = filepath.WalkDir(c.dataDir, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			if errors.Is(werr, fs.ErrNotExist) {
				return nil
			}
			return werr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(p); err != nil {
				logger.Warnf("remove %s: %v", p, err)
				return nil
			}
			deleted++
		}
		return nil
	})
	c.metrics.AddCleanupDeleted(deleted)
	if err != nil {
		return deleted, fmt.Errorf("cleanup walk: %w", err)
	}

	if c.runRetention > 0 && database.GetDB() != nil {
		if n, err := database.PurgeRunsBefore(c.now().Add(-c.runRetention)); err != nil {
			logger.Warnf("purge run history: %v", err)
		} else if n > 0 {
			logger.Infof("Purged %d run records", n)
		}
	}

	logger.WithFields(map[string]interface{}{"deleted": deleted, "older_than": c.olderThan}).Info("Cleanup finished")
	return deleted, nil
}
