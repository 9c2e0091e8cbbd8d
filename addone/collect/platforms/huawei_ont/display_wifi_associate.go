package huawei_ont

import (
	"regexp"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// MAC  SSID  在线秒数  发送速率M  接收速率M
var assocRowRe = regexp.MustCompile(`(?i)^([0-9A-F:]{17})\s+(\S+)\s+(\d+)\s+(\d+)M\s+(\d+)M.*$`)

// assocFold 关联表折叠状态：当前频段随标记行更新并向后传递
type assocFold struct {
	prefix string
	base   collect.Labels
	band   string
	res    collect.Result
}

func (f *assocFold) step(line string) {
	switch {
	case strings.Contains(line, "2.4GHz"):
		f.band = "2.4GHz"
	case strings.Contains(line, "5GHz"):
		f.band = "5GHz"
	}
	m := assocRowRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	if f.band == "" {
		f.res.Skip(collect.SkipNoBand)
		return
	}
	labels := f.base.Merge(collect.Labels{
		"mac":  strings.ReplaceAll(m[1], ":", ""),
		"ssid": m[2],
		"band": f.band,
	})
	f.res.Emit(f.prefix+"_uptime_seconds", labels, m[3])
	f.res.Emit(f.prefix+"_tx_rate_mbps", labels, m[4])
	f.res.Emit(f.prefix+"_rx_rate_mbps", labels, m[5])
}

// 处理 display wifi associate 回显
func parseWifiAssociate(lines []string, prefix string, base collect.Labels) collect.Result {
	f := &assocFold{prefix: prefix, base: base}
	for _, ln := range lines {
		f.step(ln)
	}
	return f.res
}
