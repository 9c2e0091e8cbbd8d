package huawei_ont

import (
	"regexp"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// 最大速率需带 M 单位，如 "300 Mbps"、"866M"
var maxRateRe = regexp.MustCompile(`(\d+)\s*M`)

// 处理 display wifi information 回显：每个 SSID 一个块
func parseWifiInformation(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	fold := collect.BlockFold{
		Sep: ":",
		Flush: func(b collect.Block) {
			idx, ok := b["ssid_index"]
			if !ok {
				res.Skip(collect.SkipMissingIdentity)
				return
			}
			labels := base.Merge(collect.Labels{
				"ssid_index": idx,
				"ssid_name":  b["ssid"],
			})
			status := "0"
			if strings.EqualFold(b["status"], "up") {
				status = "1"
			}
			res.Emit(prefix+"_status", labels, status)
			if ch, ok := collect.LeadingInt(b["channel"]); ok {
				res.Emit(prefix+"_channel", labels, ch)
			}
			if m := maxRateRe.FindStringSubmatch(b["supported_max_rate"]); m != nil {
				res.Emit(prefix+"_max_rate_mbps", labels, m[1])
			}
		},
	}
	fold.Run(lines)
	return res
}
