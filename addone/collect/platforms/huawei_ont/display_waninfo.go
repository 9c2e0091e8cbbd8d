package huawei_ont

import (
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// 处理 display waninfo all detail 回显：每个 WAN 接口一个块，以 "---" 分隔
func parseWanInfoDetail(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	fold := collect.BlockFold{
		Sep: ":",
		Flush: func(b collect.Block) {
			iface, ok := b["interface"]
			if !ok {
				res.Skip(collect.SkipMissingIdentity)
				return
			}
			ip, _, _ := strings.Cut(b["ipv4_address"], "/")
			labels := base.Merge(collect.Labels{
				"interface":  iface,
				"hw_addr":    b["hw_addr"],
				"ip_address": ip,
			})
			status := "0"
			if strings.EqualFold(b["status"], "enable") {
				status = "1"
			}
			res.Emit(prefix+"_status", labels, status)
			if v := b["vlan"]; collect.IsDigits(v) {
				res.Emit(prefix+"_vlan", labels, v)
			}
			if v := b["mtu"]; collect.IsDigits(v) {
				res.Emit(prefix+"_mtu", labels, v)
			}
		},
	}
	fold.Run(lines)
	return res
}
