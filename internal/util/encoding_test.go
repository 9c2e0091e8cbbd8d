package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestCleanTerminalOutput(t *testing.T) {
	in := "\x1b[1;32mWAP>\x1b[0m display deviceinfo\x07\r\n\x1b[?25lUptime = 1 day(s) 00:00:01\x1b[K"
	assert.Equal(t, "WAP> display deviceinfo\r\nUptime = 1 day(s) 00:00:01", CleanTerminalOutput(in))
	assert.Equal(t, "plain", CleanTerminalOutput("plain"))
}

func TestEnsureUTF8Bytes(t *testing.T) {
	assert.Equal(t, "", EnsureUTF8Bytes(nil))
	assert.Equal(t, "SSID : 家", EnsureUTF8Bytes([]byte("SSID : 家")))

	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("主机名"))
	assert.NoError(t, err)
	assert.Equal(t, "主机名", EnsureUTF8Bytes(gbk))
}
