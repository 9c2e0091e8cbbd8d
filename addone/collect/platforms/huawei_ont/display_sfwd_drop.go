package huawei_ont

import (
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// 处理 display sfwd drop statistics 回显
// 第一遍：非 "[" 开头的 key: value 行原样输出（不做数值校验）
// 第二遍：包含 bcast 与 arp 的表头行与其下一行按列配对
func parseSfwdDrop(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if strings.HasPrefix(trimmed, "[") {
			continue
		}
		k, v, ok := strings.Cut(ln, ":")
		if !ok {
			continue
		}
		res.Emit(collect.MetricName(prefix, strings.TrimSpace(k)), base, strings.TrimSpace(v))
	}

	header, values, ok := protocolRows(lines)
	if !ok {
		res.Skip(collect.SkipNoHeader)
		return res
	}
	for i := 0; i < len(header) && i < len(values); i++ {
		res.Emit(collect.MetricName(prefix, "protocol_"+header[i]), base, values[i])
	}
	return res
}

// protocolRows 定位表头行（同时含 bcast 与 arp）及紧随其后的数值行
func protocolRows(lines []string) ([]string, []string, bool) {
	for i, ln := range lines {
		if !strings.Contains(ln, "bcast") || !strings.Contains(ln, "arp") {
			continue
		}
		if i+1 >= len(lines) {
			return nil, nil, false
		}
		header := strings.Fields(ln)
		values := strings.Fields(lines[i+1])
		if len(header) == 0 || len(values) == 0 {
			return nil, nil, false
		}
		return header, values, true
	}
	return nil, nil, false
}
