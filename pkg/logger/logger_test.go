package logger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownOutput(t *testing.T) {
	_, err := New(Config{Output: "syslog"})
	assert.Error(t, err)

	_, err = New(Config{Output: "file"})
	assert.Error(t, err, "文件输出必须指定路径")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := New(Config{Level: "debug", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.DirExists(t, filepath.Dir(path))
}

func TestPreview(t *testing.T) {
	p := Preview("a\r\nb\r\n", 5)
	assert.Equal(t, []string{"a", "b"}, p.Head)
	assert.Empty(t, p.Tail)
	assert.Equal(t, "head: [a ⟩ b]", p.String())

	p = Preview("1\n2\n3\n4\n5", 2)
	assert.Equal(t, []string{"1", "2"}, p.Head)
	assert.Equal(t, []string{"4", "5"}, p.Tail)
	assert.Equal(t, 5, p.Total)

	// 首尾不重叠
	p = Preview("1\n2\n3", 2)
	assert.Equal(t, []string{"3"}, p.Tail)

	assert.Equal(t, "", Preview("", 3).String())
}

func TestDebugCommandOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)
	SetLogger(l)
	defer SetLogger(nil)

	DebugCommandOutput("wap top", "Mem: 1K used", 3)
	assert.Empty(t, buf.String(), "info 级别不输出回显")

	l.SetLevel(logrus.DebugLevel)
	DebugCommandOutput("wap top", "Mem: 1K used", 3)
	assert.True(t, strings.Contains(buf.String(), "command echo"))
	assert.Contains(t, buf.String(), "wap top")
}
