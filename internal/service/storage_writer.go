package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/pkg/logger"
)

const metricsContentType = "text/plain; charset=utf-8"

// StorageWriter 指标文件写入器
type StorageWriter interface {
	Write(ctx context.Context, meta StorageMeta, content string) (StoredObject, error)
}

// StorageMeta 写入元数据
type StorageMeta struct {
	// Prefix 规范化后的命令名，同时作为子目录与文件名前缀
	Prefix string
	// At 采集时间，决定文件名中的时间戳
	At time.Time
}

// StoredObject 写入结果
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
	// Mirror 对象存储镜像地址，未启用或失败时为空
	Mirror string `json:"mirror,omitempty"`
}

// FileName 指标文件名：<prefix>_<YYYY_MM_DD__HH_MM>.txt
func FileName(prefix string, at time.Time) string {
	return prefix + "_" + at.Format("2006_01_02__15_04") + ".txt"
}

// NewStorageWriter 根据配置创建写入器：本地必写，MinIO 可选镜像
func NewStorageWriter(cfg *config.Config) StorageWriter {
	local := &LocalStorageWriter{dataDir: cfg.Storage.DataDir}
	if !cfg.Storage.Minio.Enabled {
		return local
	}
	return &MirroringStorageWriter{local: local, minio: initMinioWriter(cfg.Storage.Minio)}
}

// MirroringStorageWriter 先写本地，再镜像到 MinIO；镜像失败不影响本地结果
type MirroringStorageWriter struct {
	local *LocalStorageWriter
	minio *MinioStorageWriter
}

func (w *MirroringStorageWriter) Write(ctx context.Context, meta StorageMeta, content string) (StoredObject, error) {
	obj, err := w.local.Write(ctx, meta, content)
	if err != nil {
		return obj, err
	}
	if w.minio == nil {
		logger.Warn("MinIO mirror enabled but client not initialized; local file only")
		return obj, nil
	}
	uri, merr := w.minio.Put(ctx, meta, []byte(content))
	if merr != nil {
		logger.WithField("prefix", meta.Prefix).Warnf("MinIO mirror failed: %v", merr)
		return obj, nil
	}
	obj.Mirror = uri
	return obj, nil
}

// LocalStorageWriter 本地文件写入：<data_dir>/<prefix>/<prefix>_<ts>.txt
type LocalStorageWriter struct {
	dataDir string
}

// NewLocalStorageWriter 创建本地写入器
func NewLocalStorageWriter(dataDir string) *LocalStorageWriter {
	return &LocalStorageWriter{dataDir: dataDir}
}

func (w *LocalStorageWriter) Write(ctx context.Context, meta StorageMeta, content string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}
	prefix := strings.TrimSpace(meta.Prefix)
	if prefix == "" {
		return StoredObject{}, fmt.Errorf("empty storage prefix")
	}
	at := meta.At
	if at.IsZero() {
		at = time.Now()
	}

	dirPath := filepath.Join(w.dataDir, prefix)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
	}
	fullPath := filepath.Join(dirPath, FileName(prefix, at))

	// 临时文件 + 重命名：读取方只会看到完整文件
	data := []byte(content)
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return StoredObject{}, fmt.Errorf("failed to rename file: %w", err)
	}
	// 同一分钟内重复写入时，修改时间仍需反映最新一次
	_ = os.Chtimes(fullPath, at, at)

	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: metricsContentType,
	}, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// MinioStorageWriter MinIO 对象存储写入
type MinioStorageWriter struct {
	cfg           config.MinioConfig
	client        *minio.Client
	endpoint      string
	bucketEnsured bool
}

// initMinioWriter 初始化 MinIO 写入器，bucket 校验失败不影响初始化
func initMinioWriter(cfg config.MinioConfig) *MinioStorageWriter {
	host := strings.TrimSpace(cfg.Host)
	if host == "" || cfg.Port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, cfg.Port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Errorf("MinIO client initialization failed: %v", err)
		return nil
	}

	w := &MinioStorageWriter{cfg: cfg, client: client, endpoint: endpoint}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.ensureBucket(ctx); err != nil {
		logger.Warnf("MinIO bucket ensure at init failed: %v", err)
	} else {
		w.bucketEnsured = true
	}
	return w
}

// ObjectKey 对象键：[prefix/]<cmd>/<cmd>_<ts>.txt，与本地目录结构一致
func ObjectKey(rootPrefix string, meta StorageMeta) string {
	at := meta.At
	if at.IsZero() {
		at = time.Now()
	}
	key := path.Join(meta.Prefix, FileName(meta.Prefix, at))
	if p := strings.Trim(strings.TrimSpace(rootPrefix), "/"); p != "" {
		key = path.Join(p, key)
	}
	return key
}

// Put 上传对象，返回 minio:// 地址
func (w *MinioStorageWriter) Put(ctx context.Context, meta StorageMeta, data []byte) (string, error) {
	if w == nil || w.client == nil {
		return "", fmt.Errorf("minio client not initialized")
	}
	if !w.bucketEnsured {
		if err := w.ensureBucket(ctx); err != nil {
			return "", fmt.Errorf("minio ensure bucket failed: %w", err)
		}
		w.bucketEnsured = true
	}

	objectName := ObjectKey(w.cfg.Prefix, meta)
	var lastErr error
	for _, wait := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := w.client.PutObject(attemptCtx, w.cfg.Bucket, objectName, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: metricsContentType})
		cancel()
		if err == nil {
			return "minio://" + path.Join(w.cfg.Bucket, objectName), nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("minio put object %s failed after retries: %w", w.endpoint, lastErr)
}

// ensureBucket 校验并创建 bucket
func (w *MinioStorageWriter) ensureBucket(ctx context.Context) error {
	exists, err := w.client.BucketExists(ctx, w.cfg.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return w.client.MakeBucket(ctx, w.cfg.Bucket, minio.MakeBucketOptions{})
}
