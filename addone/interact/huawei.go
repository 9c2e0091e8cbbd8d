package interact

import (
	"regexp"
	"strings"
)

// 华为设备 CLI 常见错误提示
var huaweiErrorPatterns = []struct {
	re      *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`(?im)^\s*ERROR:.*$`), "命令执行错误"},
	{regexp.MustCompile(`(?i)Unknown command`), "无效命令"},
	{regexp.MustCompile(`(?i)Unrecognized command`), "无法识别的命令"},
	{regexp.MustCompile(`(?i)Incomplete command`), "命令不完整"},
	{regexp.MustCompile(`(?i)Too many parameters`), "参数过多"},
	{regexp.MustCompile(`(?i)Parameter error`), "参数错误"},
	{regexp.MustCompile(`(?i)Permission denied`), "权限不足"},
}

// DetectHuaweiError 检测华为设备错误信息，返回错误描述与命中的原文
func DetectHuaweiError(output string) (bool, string) {
	for _, ep := range huaweiErrorPatterns {
		if m := ep.re.FindString(output); m != "" {
			return true, ep.message + ": " + strings.TrimSpace(m)
		}
	}
	return false, ""
}
