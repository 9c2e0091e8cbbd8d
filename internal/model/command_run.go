package model

import (
	"time"
)

// 命令执行状态
const (
	RunStatusSuccess = "success"
	RunStatusEmpty   = "empty"
	RunStatusFailed  = "failed"
)

// CommandRun 单条命令的一次采集记录
type CommandRun struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Job     string `json:"job" gorm:"type:varchar(64);index"`
	Command string `json:"command" gorm:"type:varchar(255);not null;index"`
	Parser  string `json:"parser" gorm:"type:varchar(64)"`
	Status  string `json:"status" gorm:"type:varchar(16);not null;index"`
	// ContentLines 去除回显与状态行后的内容行数
	ContentLines int `json:"content_lines" gorm:"default:0"`
	Observations int `json:"observations" gorm:"default:0"`
	Skipped      int `json:"skipped" gorm:"default:0"`
	// SkippedDetail 按原因统计的丢弃数（JSON）
	SkippedDetail string    `json:"skipped_detail" gorm:"type:text"`
	FilePath      string    `json:"file_path" gorm:"type:varchar(512)"`
	Error         string    `json:"error" gorm:"type:text"`
	DurationMS    int64     `json:"duration_ms"`
	StartedAt     time.Time `json:"started_at" gorm:"index"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (CommandRun) TableName() string {
	return "command_runs"
}
