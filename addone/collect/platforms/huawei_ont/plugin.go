package huawei_ont

import (
	"github.com/ontcollector/ontcollector/addone/collect"
)

// Plugin 为 huawei_ont 平台采集插件（华为光猫/家庭网关）
type Plugin struct{}

func (p *Plugin) Name() string { return "huawei_ont" }

// SystemCommands 返回系统内置的 ONT 采集命令
func (p *Plugin) SystemCommands() []string {
	return []string{
		"display sfwd drop statistics",
		"display portstatistics portnum 1",
		"wap top",
		"display lanport workmode",
		"display dhcp server user all",
		"display deviceinfo",
		"display wifi associate",
		"display wifi information",
		"display waninfo all detail",
	}
}

// Dispatcher 路由顺序即优先级，首个命中者生效
func (p *Plugin) Dispatcher() *collect.Dispatcher {
	return dispatcher
}

// Parse 路由到具体命令处理
func (p *Plugin) Parse(ctx collect.ParseContext, lines []string) collect.ParseOutput {
	return collect.RunPlugin(p, ctx, lines)
}

var dispatcher = collect.NewDispatcher(nil,
	collect.Substring("display deviceinfo", "deviceinfo", parseDeviceInfo),
	collect.Substring("display waninfo all detail", "waninfo_detail", parseWanInfoDetail),
	collect.Substring("display wifi information", "wifi_information", parseWifiInformation),
	collect.Substring("display dhcp server user all", "dhcp_server_user", parseDhcpServerUsers),
	collect.Substring("wap top", "wap_top", parseWapTop),
	collect.Substring("display sfwd drop statistics", "sfwd_drop", parseSfwdDrop),
	collect.Substring("display lanport workmode", "lanport_workmode", parseLanportWorkmode),
	collect.Substring("display wifi associate", "wifi_associate", parseWifiAssociate),
	collect.Substring("display cpu info", "cpu_info", parseCPUInfo),
)

func init() { collect.Register("huawei_ont", &Plugin{}) }
