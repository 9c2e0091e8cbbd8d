package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontcollector/ontcollector/internal/config"
)

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 5, 59, 0, time.Local)
	assert.Equal(t, "wap_top_2024_03_07__09_05.txt", FileName("wap_top", at))
}

func TestObjectKey(t *testing.T) {
	meta := StorageMeta{Prefix: "wap_top", At: time.Date(2024, 3, 7, 9, 5, 0, 0, time.Local)}
	assert.Equal(t, "wap_top/wap_top_2024_03_07__09_05.txt", ObjectKey("", meta))
	assert.Equal(t, "ont/site1/wap_top/wap_top_2024_03_07__09_05.txt", ObjectKey("/ont/site1/", meta))
}

func TestLocalStorageWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewLocalStorageWriter(dir)
	at := time.Date(2024, 3, 7, 9, 5, 0, 0, time.Local)

	obj, err := w.Write(context.Background(), StorageMeta{Prefix: "wap_top", At: at}, "wap_top_load_average_1m=0.5")
	require.NoError(t, err)

	p := filepath.Join(dir, "wap_top", "wap_top_2024_03_07__09_05.txt")
	assert.Equal(t, "file://"+p, obj.URI)
	assert.EqualValues(t, len("wap_top_load_average_1m=0.5"), obj.Size)
	assert.NotEmpty(t, obj.Checksum)

	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(at))
	assert.NoFileExists(t, p+".tmp")

	_, err = w.Write(context.Background(), StorageMeta{Prefix: " "}, "x=1")
	assert.Error(t, err)
}

func TestLocalStorageWriterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalStorageWriter(t.TempDir()).Write(ctx, StorageMeta{Prefix: "a"}, "a=1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewStorageWriterLocalOnly(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{DataDir: t.TempDir()}}
	_, ok := NewStorageWriter(cfg).(*LocalStorageWriter)
	assert.True(t, ok)
}
