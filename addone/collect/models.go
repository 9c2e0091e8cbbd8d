package collect

import (
	"sort"
	"strconv"
	"strings"
)

// Labels 指标标签集合，按约定视为只读
type Labels map[string]string

// Merge 合并标签，返回新的集合；同名键以 extra 为准
func (l Labels) Merge(extra Labels) Labels {
	out := make(Labels, len(l)+len(extra))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Keys 按字典序返回标签键
func (l Labels) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String 序列化为 {k="v",...}，空集合返回空串
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range l.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(labelEscaper.Replace(l[k]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// Observation 单个指标观测值
// Value 保留设备输出中的原始数值文本（如 "0.25"、"277506"）
type Observation struct {
	Name   string `json:"name"`
	Labels Labels `json:"labels,omitempty"`
	Value  string `json:"value"`
}

// Float 将观测值解析为浮点数
func (o Observation) Float() (float64, error) {
	return strconv.ParseFloat(o.Value, 64)
}

// String 输出 metric{labels}=value 形式的一行
func (o Observation) String() string {
	return o.Name + o.Labels.String() + "=" + o.Value
}

// SkipReason 记录被静默丢弃的原因
type SkipReason string

const (
	SkipNonNumeric      SkipReason = "non_numeric"      // 值无法解析为数字
	SkipMissingIdentity SkipReason = "missing_identity" // 块缺少标识字段
	SkipNoBand          SkipReason = "no_band"          // 关联行出现在频段标记之前
	SkipNoHeader        SkipReason = "no_header"        // 未找到表头/数值行对
)

// Result 一次解析的产出
// Skipped 仅作诊断使用，不影响 Observations
type Result struct {
	Observations []Observation      `json:"observations"`
	Skipped      map[SkipReason]int `json:"skipped,omitempty"`
}

// Emit 追加一条观测值
func (r *Result) Emit(name string, labels Labels, value string) {
	r.Observations = append(r.Observations, Observation{Name: name, Labels: labels, Value: value})
}

// Skip 记录一次静默丢弃
func (r *Result) Skip(reason SkipReason) {
	if r.Skipped == nil {
		r.Skipped = make(map[SkipReason]int)
	}
	r.Skipped[reason]++
}

// SkippedTotal 返回所有原因的丢弃总数
func (r Result) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Lines 序列化全部观测值
func (r Result) Lines() []string {
	out := make([]string, 0, len(r.Observations))
	for _, o := range r.Observations {
		out = append(out, o.String())
	}
	return out
}

// ParseFunc 方言解析函数：输入内容行、指标名前缀与基础标签
type ParseFunc func(lines []string, prefix string, base Labels) Result

// ParseContext 解析上下文
type ParseContext struct {
	Platform string
	Command  string
	// BaseLabels 由调用方根据命令实例提供（如端口号）
	BaseLabels Labels
	// Separator 兜底键值解析的分隔符，空时为 ":"；命中方言解析器时不生效
	Separator string
}

// ParseOutput 解析输出
type ParseOutput struct {
	Platform string `json:"platform"`
	Command  string `json:"command"`
	Prefix   string `json:"prefix"`
	Parser   string `json:"parser"`
	Result   Result `json:"result"`
}

// CollectPlugin 采集插件接口
type CollectPlugin interface {
	Name() string
	// SystemCommands 返回该平台内置的采集命令
	SystemCommands() []string
	// Dispatcher 返回命令到方言解析器的有序路由表
	Dispatcher() *Dispatcher
	// Parse 将已去除回显与状态行的内容解析为指标
	Parse(ctx ParseContext, lines []string) ParseOutput
}
