package huawei_ont

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
)

// 序号  端口  IP  主机名  MAC  剩余租期
var leaseRowRe = regexp.MustCompile(`(?i)^\s*(\d+)\s+(\S+)\s+([0-9.]+)\s+(\S+)\s+([0-9a-f:]+)\s+(.*)$`)

// dhcpFold 租约表折叠状态；Total 行单独累积，最后输出
type dhcpFold struct {
	prefix string
	base   collect.Labels
	res    collect.Result
	total  string
}

func (f *dhcpFold) step(line string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "Total:") {
		f.total = strings.TrimSpace(strings.TrimPrefix(trimmed, "Total:"))
		return
	}
	m := leaseRowRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	labels := f.base.Merge(collect.Labels{
		"index":    m[1],
		"port":     m[2],
		"ip":       m[3],
		"hostname": strings.TrimSpace(m[4]),
		"mac":      m[5],
	})
	f.res.Emit(f.prefix+"_lease_info", labels, "1")
	if secs, ok := collect.LeaseSeconds(m[6]); ok {
		f.res.Emit(f.prefix+"_lease_expire_seconds", labels, strconv.FormatInt(secs, 10))
	}
}

func (f *dhcpFold) done() collect.Result {
	if f.total == "" {
		return f.res
	}
	if !collect.IsNumber(f.total) {
		f.res.Skip(collect.SkipNonNumeric)
		return f.res
	}
	f.res.Emit(f.prefix+"_total_users", f.base, f.total)
	return f.res
}

// 处理 display dhcp server user all 回显
func parseDhcpServerUsers(lines []string, prefix string, base collect.Labels) collect.Result {
	f := &dhcpFold{prefix: prefix, base: base}
	for _, ln := range lines {
		f.step(ln)
	}
	return f.done()
}
