package interact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentLines(t *testing.T) {
	d := (&DefaultPlugin{}).Defaults()
	raw := "display deviceinfo\r\nUptime = 1 day(s) 00:00:01\r\nsuccess!\r\nSUCCESS! done\r\nWAP>"

	assert.Equal(t, []string{"Uptime = 1 day(s) 00:00:01"}, ContentLines(d, raw))
}

func TestContentLinesOnlyEcho(t *testing.T) {
	d := InteractDefaults{EchoLines: 1}
	assert.Empty(t, ContentLines(d, "wap top"))
	assert.Equal(t, []string{"a", "b"}, ContentLines(InteractDefaults{}, "a\nb"))
}

func TestContentLinesKeepsValueLines(t *testing.T) {
	d := InteractDefaults{EchoLines: 1, PromptSuffixes: []string{"WAP>"}}
	got := ContentLines(d, "cmd\n  10     20     30\nTotal: 3\nSU_WAP>")
	assert.Equal(t, []string{"  10     20     30", "Total: 3"}, got)
}

func TestDetectHuaweiError(t *testing.T) {
	bad, msg := DetectHuaweiError("display foo\nERROR: Unknown command.\nWAP>")
	assert.True(t, bad)
	assert.Contains(t, msg, "ERROR:")

	bad, _ = DetectHuaweiError("Uptime = 1 day(s) 00:00:01")
	assert.False(t, bad)
}

func TestDetectHuaweiErrorAnchoredToLineStart(t *testing.T) {
	// 计数器名含 Error 的正常输出
	bad, _ := DetectHuaweiError("display portstatistics portnum 1\r\nCRC Error: 0\r\nRx Error : 12\r\nsuccess!\r\nWAP>")
	assert.False(t, bad)

	bad, msg := DetectHuaweiError("foo\r\n  ERROR::Command is not existed\r\nWAP>")
	assert.True(t, bad)
	assert.Equal(t, "命令执行错误: ERROR::Command is not existed", msg)
}

func TestDetectByHints(t *testing.T) {
	bad, line := DetectByHints("ok\n  Error: bad parameter\n", []string{"error:"})
	assert.True(t, bad)
	assert.Equal(t, "Error: bad parameter", line)
}

func TestRegistryFallback(t *testing.T) {
	assert.Equal(t, "default", Get("nope").Name())
	assert.Contains(t, Platforms(), "default")
}
