package collect

import (
	"regexp"
	"strconv"
	"strings"
)

// 华为设备 CLI 文本的通用处理：键名规范化、时长换算与分块折叠

var nonWordRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// NormalizeKey 非 [A-Za-z0-9_] 字符替换为下划线并转小写（幂等）
func NormalizeKey(s string) string {
	return strings.ToLower(nonWordRe.ReplaceAllString(s, "_"))
}

// CommandPrefix 由命令生成指标名前缀，如 "wap top" -> "wap_top"
func CommandPrefix(command string) string {
	return NormalizeKey(strings.TrimSpace(command))
}

// MetricName 拼接指标名：prefix_normalizedKey
func MetricName(prefix, key string) string {
	return prefix + "_" + NormalizeKey(key)
}

var fieldKeyReplacer = strings.NewReplacer(" ", "_", ".", "_")

// FieldKey 块字段键：转小写，空格与点替换为下划线
func FieldKey(s string) string {
	return fieldKeyReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

var (
	// 运行时长："3 day(s) 04:05:06"
	uptimeRe = regexp.MustCompile(`(\d+)\s*day\(s\)\s*(\d{2}):(\d{2}):(\d{2})`)
	// 租期剩余："12 days, 01:00:00"
	leaseRe   = regexp.MustCompile(`(\d+)\s*days,\s*(\d{2}):(\d{2}):(\d{2})`)
	leadIntRe = regexp.MustCompile(`(\d+)`)
)

// UptimeSeconds 解析 "<d> day(s) HH:MM:SS" 为秒数
func UptimeSeconds(s string) (int64, bool) {
	return daysClockSeconds(uptimeRe, s)
}

// LeaseSeconds 解析 "<d> days, HH:MM:SS" 为秒数
func LeaseSeconds(s string) (int64, bool) {
	return daysClockSeconds(leaseRe, s)
}

func daysClockSeconds(re *regexp.Regexp, s string) (int64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	var n [4]int64
	for i := range n {
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, false
		}
		n[i] = v
	}
	return n[0]*86400 + n[1]*3600 + n[2]*60 + n[3], true
}

// LeadingInt 提取首个整数子串，如 "512 MB" -> "512"
func LeadingInt(s string) (string, bool) {
	m := leadIntRe.FindString(s)
	return m, m != ""
}

// IsDigits 判断是否全部为十进制数字（非空）
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsBlockDelimiter 判断是否为块分隔行（包含 "---"）
func IsBlockDelimiter(line string) bool {
	return strings.Contains(line, "---")
}

// Block 单条记录的字段累积
type Block map[string]string

// BlockFold 分块折叠状态：逐行累积字段，遇分隔行或输入结束时 flush
type BlockFold struct {
	Sep   string
	Key   func(string) string
	Flush func(b Block)
	// SplitOn 可选：返回 true 时先 flush 当前块再处理该行
	SplitOn func(cur Block, key string) bool
	// BlankIsDelimiter 空行也视为分隔
	BlankIsDelimiter bool

	cur Block
}

// Step 处理一行
func (f *BlockFold) Step(line string) {
	if IsBlockDelimiter(line) || (f.BlankIsDelimiter && strings.TrimSpace(line) == "") {
		f.flush()
		return
	}
	k, v, ok := strings.Cut(line, f.Sep)
	if !ok {
		return
	}
	key := f.key(k)
	if f.SplitOn != nil && f.SplitOn(f.cur, key) {
		f.flush()
	}
	if f.cur == nil {
		f.cur = make(Block)
	}
	f.cur[key] = strings.TrimSpace(v)
}

// Done 输入结束，flush 最后一个块
func (f *BlockFold) Done() {
	f.flush()
}

// Run 依次处理全部行并结束
func (f *BlockFold) Run(lines []string) {
	for _, ln := range lines {
		f.Step(ln)
	}
	f.Done()
}

func (f *BlockFold) key(k string) string {
	if f.Key != nil {
		return f.Key(k)
	}
	return FieldKey(k)
}

func (f *BlockFold) flush() {
	if len(f.cur) > 0 && f.Flush != nil {
		f.Flush(f.cur)
	}
	f.cur = nil
}
