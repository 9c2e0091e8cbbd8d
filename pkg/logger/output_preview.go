package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// OutputPreview 命令输出的首尾若干行
type OutputPreview struct {
	Head  []string `json:"head"`
	Tail  []string `json:"tail"`
	Total int      `json:"total"`
}

// Preview 截取输出首尾各 maxLines 行；总行数不超过 maxLines 时 Tail 为空
func Preview(output string, maxLines int) OutputPreview {
	if maxLines <= 0 {
		maxLines = 5
	}
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return OutputPreview{}
	}
	lines := strings.Split(output, "\n")

	p := OutputPreview{Total: len(lines)}
	if len(lines) <= maxLines {
		p.Head = lines
		return p
	}
	p.Head = lines[:maxLines]
	tailStart := len(lines) - maxLines
	if tailStart < maxLines {
		tailStart = maxLines
	}
	p.Tail = lines[tailStart:]
	return p
}

// String 单行格式，用于日志
func (p OutputPreview) String() string {
	if p.Total == 0 {
		return ""
	}
	s := "head: [" + strings.Join(p.Head, " ⟩ ") + "]"
	if len(p.Tail) > 0 {
		s += ", tail: [" + strings.Join(p.Tail, " ⟩ ") + "]"
	}
	return s
}

// DebugCommandOutput 在 debug 级别记录命令输出的首尾行
func DebugCommandOutput(command string, output string, maxLines int) {
	if !GetLogger().IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	p := Preview(output, maxLines)
	if p.Total == 0 {
		return
	}
	WithFields(logrus.Fields{"command": command, "lines": p.Total}).Debugf("command echo: %s", p)
}
