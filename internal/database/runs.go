package database

import (
	"time"

	"github.com/ontcollector/ontcollector/internal/model"
	"gorm.io/gorm"
)

// SaveRun 写入一条命令执行记录
func SaveRun(run *model.CommandRun) error {
	return WithRetry(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	}, 5, 50*time.Millisecond)
}

// RecentRuns 按开始时间倒序查询执行记录，command 为空时不过滤
func RecentRuns(command string, limit int) ([]model.CommandRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var runs []model.CommandRun
	err := WithRetry(func(tx *gorm.DB) error {
		q := tx.Model(&model.CommandRun{}).Order("started_at DESC").Limit(limit)
		if command != "" {
			q = q.Where("command = ?", command)
		}
		return q.Find(&runs).Error
	}, 3, 0)
	return runs, err
}

// RunCounts 按状态统计执行记录数
func RunCounts() (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := WithRetry(func(tx *gorm.DB) error {
		return tx.Model(&model.CommandRun{}).
			Select("status, count(*) as n").
			Group("status").
			Scan(&rows).Error
	}, 3, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// PurgeRunsBefore 删除早于指定时间的执行记录
func PurgeRunsBefore(t time.Time) (int64, error) {
	var n int64
	err := WithRetry(func(tx *gorm.DB) error {
		res := tx.Where("started_at < ?", t).Delete(&model.CommandRun{})
		n = res.RowsAffected
		return res.Error
	}, 5, 50*time.Millisecond)
	return n, err
}
