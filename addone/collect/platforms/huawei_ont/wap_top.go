package huawei_ont

import (
	"regexp"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

var (
	// Mem: 61232K used, 63812K free, 0K shrd, 3936K buff, 22504K cached
	memTokenRe = regexp.MustCompile(`(\d+)K\s+(\w+)`)
	// CPU:  2.1% usr  3.4% sys  0.0% nic 94.3% idle ...
	cpuTokenRe = regexp.MustCompile(`(\d+\.\d+)%\s+(\w+)`)
	// Load average: 0.52, 0.48, 0.41 或 Load average: 0.52 0.48 0.41 1/95 1234
	loadCommaRe = regexp.MustCompile(`Load average:\s+([\d.]+)\s*,\s*([\d.]+)\s*,\s*([\d.]+)`)
	loadSpaceRe = regexp.MustCompile(`Load average:\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)`)
)

// 处理 wap top 回显：内存、CPU 与负载三类行
func parseWapTop(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		switch {
		case strings.HasPrefix(trimmed, "Mem:"):
			for _, m := range memTokenRe.FindAllStringSubmatch(ln, -1) {
				res.Emit(collect.MetricName(prefix, "mem_"+m[2]+"_kb"), base, m[1])
			}
		case strings.HasPrefix(trimmed, "CPU:"):
			for _, m := range cpuTokenRe.FindAllStringSubmatch(ln, -1) {
				res.Emit(collect.MetricName(prefix, "cpu_"+m[2]+"_percent"), base, m[1])
			}
		case strings.HasPrefix(trimmed, "Load average:"):
			m := loadCommaRe.FindStringSubmatch(ln)
			if m == nil {
				m = loadSpaceRe.FindStringSubmatch(ln)
			}
			if m == nil {
				continue
			}
			for i, win := range []string{"1m", "5m", "15m"} {
				if !collect.IsNumber(m[i+1]) {
					res.Skip(collect.SkipNonNumeric)
					continue
				}
				res.Emit(prefix+"_load_average_"+win, base, m[i+1])
			}
		}
	}
	return res
}
