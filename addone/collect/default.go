package collect

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultSeparator 通用键值解析的默认分隔符
const DefaultSeparator = ":"

// ParseKeyValue 通用键值解析
// 每行按首个分隔符拆分，值必须可解析为数字，否则静默跳过
func ParseKeyValue(lines []string, prefix string, base Labels, sep string) Result {
	var res Result
	for _, line := range lines {
		key, value, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !IsNumber(value) {
			res.Skip(SkipNonNumeric)
			continue
		}
		res.Emit(MetricName(prefix, key), base, value)
	}
	return res
}

// KeyValueParser 以指定分隔符构造通用解析器
func KeyValueParser(sep string) ParseFunc {
	if sep == "" {
		sep = DefaultSeparator
	}
	return func(lines []string, prefix string, base Labels) Result {
		return ParseKeyValue(lines, prefix, base, sep)
	}
}

// 十进制数：不接受十六进制、下划线分组等 Go 字面量写法
var decimalRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// IsNumber 判断字符串是否为合法十进制数，另接受 NaN 与 Inf/Infinity
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return true
	}
	if !decimalRe.MatchString(s) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// DefaultPlugin 系统默认采集插件：所有命令走通用键值解析
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

// SystemCommands 默认平台不提供内置命令
func (p *DefaultPlugin) SystemCommands() []string { return []string{} }

func (p *DefaultPlugin) Dispatcher() *Dispatcher { return NewDispatcher(nil) }

func (p *DefaultPlugin) Parse(ctx ParseContext, lines []string) ParseOutput {
	return RunPlugin(p, ctx, lines)
}

// RunPlugin 插件通用解析流程，供各平台 Parse 复用
func RunPlugin(p CollectPlugin, ctx ParseContext, lines []string) ParseOutput {
	fn, name := p.Dispatcher().Select(ctx.Command)
	if name == FallbackName && ctx.Separator != "" {
		fn = KeyValueParser(ctx.Separator)
	}
	res := fn(lines, CommandPrefix(ctx.Command), ctx.BaseLabels)
	return ParseOutput{
		Platform: ctx.Platform,
		Command:  ctx.Command,
		Prefix:   CommandPrefix(ctx.Command),
		Parser:   name,
		Result:   res,
	}
}
