package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ontcollector/ontcollector/pkg/logger"
)

// ErrDataDirNotFound 数据目录不存在
var ErrDataDirNotFound = errors.New("data directory not found")

// LatestMetrics 汇总每个命令子目录中最新的 .txt 文件，以换行连接
// 子目录按名称排序；单个文件读取失败仅记录日志
func LatestMetrics(dataDir string) (string, error) {
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDataDirNotFound, dataDir)
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("read data dir: %w", err)
	}

	var parts []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		latest, ok := latestFile(filepath.Join(dataDir, e.Name()))
		if !ok {
			continue
		}
		data, err := os.ReadFile(latest)
		if err != nil {
			logger.Warnf("read metrics file %s: %v", latest, err)
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}

// latestFile 目录中修改时间最新的 .txt 文件；时间相同取文件名较大者
func latestFile(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		mt := fi.ModTime()
		if best == "" || mt.After(bestTime) || (mt.Equal(bestTime) && e.Name() > filepath.Base(best)) {
			best, bestTime = filepath.Join(dir, e.Name()), mt
		}
	}
	return best, best != ""
}
