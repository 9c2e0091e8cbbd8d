package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/ontcollector/ontcollector/addone/collect/platforms/huawei_ont"
	_ "github.com/ontcollector/ontcollector/addone/interact/platforms/huawei_ont"
	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/internal/model"
	"github.com/ontcollector/ontcollector/pkg/ssh"
)

// fakeShell 模拟 ONT Shell：回显命令，追加 success! 与提示符
type fakeShell struct {
	connected bool
	connects  int
	closes    int
	connErr   error
	runErr    map[string]error
	outputs   map[string]string
	ran       []string
}

func (f *fakeShell) Connect(ctx context.Context, info *ssh.ConnectionInfo) error {
	f.connects++
	if f.connErr != nil {
		return f.connErr
	}
	f.connected = true
	return nil
}

func (f *fakeShell) Run(ctx context.Context, command string, wait time.Duration) (*ssh.CommandResult, error) {
	f.ran = append(f.ran, command)
	if err := f.runErr[command]; err != nil {
		return nil, err
	}
	body := f.outputs[command]
	out := command + "\r\n"
	if body != "" {
		out += body + "\r\n"
	}
	out += "success!\r\nWAP>"
	return &ssh.CommandResult{Command: command, Output: out}, nil
}

func (f *fakeShell) IsConnected() bool { return f.connected }

func (f *fakeShell) Close() error {
	f.closes++
	f.connected = false
	return nil
}

const deviceInfoOutput = "SN            = 48575443XXXXXXXX\r\n" +
	"Uptime        = 3 day(s) 04:05:06\r\n" +
	"TotalMemory   = 512 MB\r\n" +
	"TotalFlash    = 256 MB"

func newTestService(t *testing.T, shell *fakeShell) (*CollectorService, string, *Metrics) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Device:  config.DeviceConfig{Host: "192.168.100.1", Port: 22, Username: "root", Platform: "huawei_ont"},
		SSH:     config.SSHConfig{CommandWait: time.Millisecond},
		Storage: config.StorageConfig{DataDir: dir},
	}
	m := NewMetrics()
	svc := NewCollectorService(cfg, shell, NewLocalStorageWriter(dir), m)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	svc.now = func() time.Time { return fixed }
	return svc, dir, m
}

func TestProcessCommandWritesMetricsFile(t *testing.T) {
	shell := &fakeShell{connected: true, outputs: map[string]string{"display deviceinfo": deviceInfoOutput}}
	svc, dir, _ := newTestService(t, shell)

	rep, err := svc.ProcessCommand(context.Background(), "slow", "display deviceinfo")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, rep.Status)
	assert.Equal(t, "deviceinfo", rep.Parser)
	assert.Equal(t, 4, rep.ContentLines)
	assert.Equal(t, 3, rep.Observations)
	assert.NotEmpty(t, rep.RunID)

	want := "display_deviceinfo_uptime_seconds=277506\n" +
		"display_deviceinfo_total_memory_mb=512\n" +
		"display_deviceinfo_total_flash_mb=256"
	p := filepath.Join(dir, "display_deviceinfo", "display_deviceinfo_2024_01_02__03_04.txt")
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
	assert.Equal(t, "file://"+p, rep.File)

	latest, err := LatestMetrics(dir)
	require.NoError(t, err)
	assert.Equal(t, want, latest)
}

func TestProcessCommandEmptyWritesNothing(t *testing.T) {
	shell := &fakeShell{connected: true, outputs: map[string]string{}}
	svc, dir, _ := newTestService(t, shell)

	rep, err := svc.ProcessCommand(context.Background(), "fast", "wap top")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusEmpty, rep.Status)
	assert.Zero(t, rep.ContentLines)
	assert.Empty(t, rep.File)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "无指标时不应创建文件")
}

func TestProcessCommandRunErrorClosesShell(t *testing.T) {
	shell := &fakeShell{
		connected: true,
		runErr:    map[string]error{"wap top": errors.New("broken pipe")},
	}
	svc, _, _ := newTestService(t, shell)

	rep, err := svc.ProcessCommand(context.Background(), "fast", "wap top")
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, rep.Status)
	assert.Contains(t, rep.Error, "broken pipe")
	assert.Equal(t, 1, shell.closes)
	assert.False(t, shell.IsConnected())
}

func TestProcessCommandAddsPortLabel(t *testing.T) {
	shell := &fakeShell{connected: true, outputs: map[string]string{
		"display portstatistics portnum 1": "Rx Packets : 1024\r\nLink State : up",
	}}
	svc, dir, _ := newTestService(t, shell)

	rep, err := svc.ProcessCommand(context.Background(), "fast", "display portstatistics portnum 1")
	require.NoError(t, err)
	assert.Equal(t, "key_value", rep.Parser)
	assert.Equal(t, 1, rep.Skipped["non_numeric"])

	latest, err := LatestMetrics(dir)
	require.NoError(t, err)
	assert.Equal(t, `display_portstatistics_portnum_1_rx_packets{port="1"}=1024`, latest)
}

func TestProcessCommandErrorCounterIsNotDeviceError(t *testing.T) {
	shell := &fakeShell{connected: true, outputs: map[string]string{
		"display portstatistics portnum 1": "CRC Error: 0\r\nRx Packets : 1024",
	}}
	svc, _, _ := newTestService(t, shell)

	rep, err := svc.ProcessCommand(context.Background(), "fast", "display portstatistics portnum 1")
	require.NoError(t, err)
	assert.Empty(t, rep.Error)
	assert.Equal(t, model.RunStatusSuccess, rep.Status)
	assert.Equal(t, 2, rep.Observations)
}

func TestProcessCommandConfiguredSeparator(t *testing.T) {
	shell := &fakeShell{connected: true, outputs: map[string]string{
		"display sysinfo": "CpuUsage = 12\r\nMode = bridge",
	}}
	svc, dir, _ := newTestService(t, shell)
	svc.config.Collector.KeyValueSeparators = []config.SeparatorConfig{
		{Command: "display sysinfo", Separator: "="},
	}

	rep, err := svc.ProcessCommand(context.Background(), "slow", "display sysinfo")
	require.NoError(t, err)
	assert.Equal(t, "key_value", rep.Parser)
	assert.Equal(t, 1, rep.Skipped["non_numeric"])

	latest, err := LatestMetrics(dir)
	require.NoError(t, err)
	assert.Equal(t, "display_sysinfo_cpuusage=12", latest)
}

func TestRunJobConnectsOnceAndContinuesAfterFailure(t *testing.T) {
	shell := &fakeShell{
		outputs: map[string]string{"display deviceinfo": deviceInfoOutput},
		runErr:  map[string]error{"wap top": errors.New("timeout")},
	}
	svc, _, m := newTestService(t, shell)

	reports := svc.RunJob(context.Background(), "mixed", []string{"display deviceinfo", "wap top", "display deviceinfo"})
	require.Len(t, reports, 3)
	assert.Equal(t, model.RunStatusSuccess, reports[0].Status)
	assert.Equal(t, model.RunStatusFailed, reports[1].Status)
	assert.Equal(t, model.RunStatusSuccess, reports[2].Status)
	// 失败后关闭 Shell，下一条命令前重连
	assert.Equal(t, 2, shell.connects)

	stats := svc.GetStats()
	assert.EqualValues(t, 1, stats["jobs"])
	assert.EqualValues(t, 3, stats["commands"])
	assert.EqualValues(t, 1, stats["failures"])

	body := scrape(t, m)
	assert.Contains(t, body, `ont_collector_command_runs_total{command="display deviceinfo",status="success"} 2`)
	assert.Contains(t, body, `ont_collector_command_runs_total{command="wap top",status="failed"} 1`)
	assert.Contains(t, body, `ont_collector_observations_total{command="display deviceinfo"} 6`)
}

func TestRunJobStopsWhenConnectFails(t *testing.T) {
	shell := &fakeShell{connErr: errors.New("unable to authenticate")}
	svc, _, m := newTestService(t, shell)

	reports := svc.RunJob(context.Background(), "fast", []string{"wap top", "display deviceinfo"})
	assert.Empty(t, reports)
	assert.Empty(t, shell.ran)
	assert.Contains(t, scrape(t, m), "ont_collector_ssh_connected 0")
}

func TestBaseLabels(t *testing.T) {
	assert.Equal(t, "1", BaseLabels("display portstatistics portnum 1")["port"])
	assert.Equal(t, "12", BaseLabels("display port statistics portid 12 ")["port"])
	assert.Empty(t, BaseLabels("display deviceinfo"))
	assert.Empty(t, BaseLabels("display portnum 1 detail"))
}

func TestParseRawUsesContentLines(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeShell{})
	out := svc.ParseRaw("wap top", "wap top\r\nLoad average: 1.00 0.75 0.50\r\nsuccess!\r\nWAP>", nil)
	assert.Equal(t, "wap_top", out.Parser)
	assert.Equal(t, []string{
		"wap_top_load_average_1m=1.00",
		"wap_top_load_average_5m=0.75",
		"wap_top_load_average_15m=0.50",
	}, out.Result.Lines())
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetConnected(true)
		m.AddCleanupDeleted(3)
		m.MarkSuccess("x", time.Now())
	})
	assert.False(t, strings.Contains(scrape(t, NewMetrics()), "ont_collector_command_runs_total{"))
}
