package interact

import (
	"strings"
	"time"
)

// InteractDefaults 定义交互层的默认运行参数
type InteractDefaults struct {
	Timeout int // 秒
	Retries int // 重试次数
	// CommandWait 发送命令后等待输出的时长
	CommandWait time.Duration
	// EchoLines 输出开头的命令回显行数
	EchoLines int
	// StatusPrefixes 设备状态行前缀（不区分大小写），如 "success!"
	StatusPrefixes []string
	// PromptSuffixes 提示符结尾，如 "WAP>"
	PromptSuffixes []string
	ErrorHints     []string
}

// CommandTransformInput 输入命令与元数据
type CommandTransformInput struct {
	Commands []string
	Metadata map[string]interface{}
}

// CommandTransformOutput 输出转换后的命令
type CommandTransformOutput struct {
	Commands []string
}

// InteractPlugin 交互插件接口
type InteractPlugin interface {
	// Name 插件名称（如：default、huawei_ont）
	Name() string
	// Defaults 返回插件的默认运行参数
	Defaults() InteractDefaults
	// TransformCommands 根据平台特性转换命令序列
	TransformCommands(in CommandTransformInput) CommandTransformOutput
	// DetectError 检测输出中的设备错误提示
	DetectError(output string) (bool, string)
}

// DefaultPlugin 系统默认交互插件
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

func (p *DefaultPlugin) Defaults() InteractDefaults {
	return InteractDefaults{
		Timeout:        30,
		Retries:        1,
		CommandWait:    3 * time.Second,
		EchoLines:      1,
		StatusPrefixes: []string{"success!"},
		PromptSuffixes: []string{">", "#"},
		ErrorHints:     []string{"error:", "unknown command"},
	}
}

func (p *DefaultPlugin) TransformCommands(in CommandTransformInput) CommandTransformOutput {
	// 默认不做任何转换
	return CommandTransformOutput{Commands: append([]string{}, in.Commands...)}
}

func (p *DefaultPlugin) DetectError(output string) (bool, string) {
	return DetectByHints(output, p.Defaults().ErrorHints)
}

// DetectByHints 按关键字（不区分大小写）检测错误，返回命中的那一行
func DetectByHints(output string, hints []string) (bool, string) {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		for _, h := range hints {
			if h != "" && strings.Contains(lower, strings.ToLower(h)) {
				return true, strings.TrimSpace(line)
			}
		}
	}
	return false, ""
}

// ContentLines 从原始输出中提取内容行
// 丢弃开头的回显行、状态行以及单独的提示符行
func ContentLines(d InteractDefaults, raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	lines := strings.Split(raw, "\n")
	if d.EchoLines > 0 {
		if len(lines) <= d.EchoLines {
			return []string{}
		}
		lines = lines[d.EchoLines:]
	}

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if isStatusLine(ln, d.StatusPrefixes) || isPromptLine(ln, d.PromptSuffixes) {
			continue
		}
		out = append(out, ln)
	}
	return out
}

func isStatusLine(line string, prefixes []string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// 提示符行：单个字段且以提示符结尾
func isPromptLine(line string, suffixes []string) bool {
	f := strings.Fields(line)
	if len(f) != 1 {
		return false
	}
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(f[0], s) {
			return true
		}
	}
	return false
}
