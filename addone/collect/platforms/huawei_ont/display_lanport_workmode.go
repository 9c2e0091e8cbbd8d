package huawei_ont

import (
	"regexp"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// 序号  端口名  工作模式（可含空格，如 "1000M Full Duplex"）
var lanportRowRe = regexp.MustCompile(`^\s*(\d+)\s+(\w+)\s+([\w\s]+)\s*$`)

// 处理 display lanport workmode 回显：每行输出一条存在性指标
func parseLanportWorkmode(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	for _, ln := range lines {
		m := lanportRowRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		labels := base.Merge(collect.Labels{
			"index":    m[1],
			"name":     m[2],
			"workmode": strings.TrimSpace(m[3]),
		})
		res.Emit(prefix+"_info", labels, "1")
	}
	return res
}
