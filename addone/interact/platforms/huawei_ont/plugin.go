package huawei_ont

import (
	"time"

	"github.com/ontcollector/ontcollector/addone/interact"
)

// Plugin 为 huawei_ont 平台交互插件（华为光猫 WAP 命令行）
type Plugin struct{}

func (p *Plugin) Name() string { return "huawei_ont" }

func (p *Plugin) Defaults() interact.InteractDefaults {
	// ONT 命令一次性输出，无分页；固定等待后读取
	return interact.InteractDefaults{
		Timeout:        30,
		Retries:        1,
		CommandWait:    3 * time.Second,
		EchoLines:      1,
		StatusPrefixes: []string{"success!"},
		PromptSuffixes: []string{"WAP>"},
		ErrorHints:     []string{"ERROR:", "Unknown command"},
	}
}

func (p *Plugin) TransformCommands(in interact.CommandTransformInput) interact.CommandTransformOutput {
	return interact.CommandTransformOutput{Commands: append([]string{}, in.Commands...)}
}

func (p *Plugin) DetectError(output string) (bool, string) {
	return interact.DetectHuaweiError(output)
}

func init() {
	interact.Register("huawei_ont", &Plugin{})
}
