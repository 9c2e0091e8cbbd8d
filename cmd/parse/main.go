package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ontcollector/ontcollector/addone/collect"
	"github.com/ontcollector/ontcollector/addone/interact"
	"github.com/ontcollector/ontcollector/internal/service"
	"github.com/ontcollector/ontcollector/internal/util"
)

// labelFlags 可重复的 -label k=v
type labelFlags collect.Labels

func (l labelFlags) String() string { return collect.Labels(l).String() }

func (l labelFlags) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("label must be k=v: %q", v)
	}
	l[strings.TrimSpace(k)] = val
	return nil
}

func main() {
	var (
		command  = flag.String("command", "", "设备命令，如 \"display deviceinfo\"")
		file     = flag.String("file", "-", "回显文件，- 表示标准输入")
		platform = flag.String("platform", "huawei_ont", "平台插件")
		sep      = flag.String("sep", "", "未命中方言时通用键值解析的分隔符，默认 \":\"")
		raw      = flag.Bool("raw", false, "输入为原始 Shell 回显（含命令回显、success! 与提示符）")
		verbose  = flag.Bool("v", false, "输出解析器与丢弃统计到标准错误")
	)
	labels := labelFlags{}
	flag.Var(labels, "label", "附加标签 k=v，可重复")
	flag.Parse()

	if strings.TrimSpace(*command) == "" {
		fmt.Fprintln(os.Stderr, "-command is required")
		flag.Usage()
		os.Exit(2)
	}

	data, err := readInput(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}
	text := util.CleanTerminalOutput(util.EnsureUTF8Bytes(data))

	var lines []string
	if *raw {
		lines = interact.ContentLines(interact.Get(*platform).Defaults(), text)
	} else {
		lines = strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	}

	plugin := collect.Get(*platform)
	out := plugin.Parse(collect.ParseContext{
		Platform:   plugin.Name(),
		Command:    *command,
		BaseLabels: service.BaseLabels(*command).Merge(collect.Labels(labels)),
		Separator:  *sep,
	}, lines)

	w := bufio.NewWriter(os.Stdout)
	for _, ln := range out.Result.Lines() {
		fmt.Fprintln(w, ln)
	}
	_ = w.Flush()

	if *verbose {
		fmt.Fprintf(os.Stderr, "parser=%s prefix=%s observations=%d skipped=%v\n",
			out.Parser, out.Prefix, len(out.Result.Observations), out.Result.Skipped)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
