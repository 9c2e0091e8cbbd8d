package huawei_ont

import (
	"github.com/ontcollector/ontcollector/addone/collect"
)

// 处理 display cpu info 回显：按 processor 分块，每块输出 bogomips
func parseCPUInfo(lines []string, prefix string, base collect.Labels) collect.Result {
	var res collect.Result
	fold := collect.BlockFold{
		Sep:              ":",
		BlankIsDelimiter: true,
		// 新的 processor 行开启新块（部分固件块间无空行）
		SplitOn: func(cur collect.Block, key string) bool {
			_, seen := cur["processor"]
			return key == "processor" && seen
		},
		Flush: func(b collect.Block) {
			proc, ok := b["processor"]
			if !ok {
				res.Skip(collect.SkipMissingIdentity)
				return
			}
			v, ok := b["bogomips"]
			if !ok {
				return
			}
			if !collect.IsNumber(v) {
				res.Skip(collect.SkipNonNumeric)
				return
			}
			res.Emit(prefix+"_bogomips", base.Merge(collect.Labels{"processor": proc}), v)
		},
	}
	fold.Run(lines)
	return res
}
