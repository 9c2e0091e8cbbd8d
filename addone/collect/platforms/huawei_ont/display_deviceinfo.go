package huawei_ont

import (
	"strconv"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// 仅处理 display deviceinfo 回显（key = value 形式）
func parseDeviceInfo(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	for _, ln := range lines {
		k, v, ok := strings.Cut(ln, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch collect.FieldKey(k) {
		case "uptime":
			if secs, ok := collect.UptimeSeconds(v); ok {
				res.Emit(prefix+"_uptime_seconds", base, strconv.FormatInt(secs, 10))
			} else {
				res.Skip(collect.SkipNonNumeric)
			}
		case "totalmemory":
			if n, ok := collect.LeadingInt(v); ok {
				res.Emit(prefix+"_total_memory_mb", base, n)
			} else {
				res.Skip(collect.SkipNonNumeric)
			}
		case "totalflash":
			if n, ok := collect.LeadingInt(v); ok {
				res.Emit(prefix+"_total_flash_mb", base, n)
			} else {
				res.Skip(collect.SkipNonNumeric)
			}
		}
	}
	return res
}
