package collect

import (
	"strings"
	"sync"
)

// Route 路由项：命令谓词与对应的方言解析器
type Route struct {
	Name  string
	Match func(command string) bool
	Parse ParseFunc
}

// Substring 构造子串匹配路由
func Substring(pattern, name string, fn ParseFunc) Route {
	return Route{
		Name:  name,
		Match: func(command string) bool { return strings.Contains(command, pattern) },
		Parse: fn,
	}
}

// FallbackName 通用键值兜底解析器名称
const FallbackName = "key_value"

// Dispatcher 有序路由表，按注册顺序首个命中者生效
type Dispatcher struct {
	routes       []Route
	fallback     ParseFunc
	fallbackName string
}

// NewDispatcher 创建路由表；fallback 为空时使用通用键值解析
func NewDispatcher(fallback ParseFunc, routes ...Route) *Dispatcher {
	d := &Dispatcher{fallback: fallback, fallbackName: "custom"}
	if fallback == nil {
		d.fallback = KeyValueParser(DefaultSeparator)
		d.fallbackName = FallbackName
	}
	d.routes = append(d.routes, routes...)
	return d
}

// Select 返回命令对应的解析器及其名称；未命中返回兜底解析器
func (d *Dispatcher) Select(command string) (ParseFunc, string) {
	for _, r := range d.routes {
		if r.Match != nil && r.Match(command) {
			return r.Parse, r.Name
		}
	}
	return d.fallback, d.fallbackName
}

// Routes 返回路由副本（保持注册顺序）
func (d *Dispatcher) Routes() []Route {
	return append([]Route(nil), d.routes...)
}

// Parse 选择解析器并执行
func (d *Dispatcher) Parse(command string, lines []string, base Labels) (Result, string) {
	fn, name := d.Select(command)
	return fn(lines, CommandPrefix(command), base), name
}

var (
	registryMu sync.RWMutex
	registry   = map[string]CollectPlugin{
		"default": &DefaultPlugin{},
	}
)

// Register 注册采集插件
func Register(name string, plugin CollectPlugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = plugin
}

// Get 获取指定平台的采集插件
func Get(name string) CollectPlugin {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[name]; ok {
		return p
	}
	return registry["default"]
}

// Platforms 返回已注册的平台名称
func Platforms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	return names
}
