package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "device:\n  host: 192.168.100.1\n"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "huawei_ont", cfg.Device.Platform)
	assert.Equal(t, 22, cfg.Device.Port)
	assert.Equal(t, "7d", cfg.Cleanup.OlderThan)
	assert.Equal(t, "1d", cfg.Cleanup.Frequency)
	assert.Equal(t, "/data", cfg.Storage.DataDir)

	require.Len(t, cfg.Collector.Jobs, 2)
	fast, ok := cfg.Job("fast")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, fast.Interval)
	assert.Equal(t, []string{
		"display sfwd drop statistics",
		"display portstatistics portnum 1",
		"wap top",
	}, fast.Commands)
	slow, _ := cfg.Job("slow")
	assert.Equal(t, 5*time.Minute, slow.Interval)
	assert.Len(t, slow.Commands, 6)
	assert.Same(t, cfg, Get())
}

func TestLoadFileOverridesAndJobs(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9100
device:
  host: ont.home
  password: ${TEST_ONT_SECRET}
collector:
  jobs:
    - name: cpu
      interval: 10s
      commands: ["display cpu info"]
storage:
  data_dir: /tmp/ont
`))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	require.Len(t, cfg.Collector.Jobs, 1)
	assert.Equal(t, "cpu", cfg.Collector.Jobs[0].Name)
	assert.Equal(t, 10*time.Second, cfg.Collector.Jobs[0].Interval)
	// 环境变量未设置时保留原值
	assert.Equal(t, "${TEST_ONT_SECRET}", cfg.Device.Password)
}

func TestLoadKeyValueSeparators(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
device:
  host: ont.home
  password: x
collector:
  key_value_separators:
    - command: display sysinfo
      separator: "="
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "=", cfg.Collector.SeparatorFor(" display sysinfo "))
	assert.Equal(t, "", cfg.Collector.SeparatorFor("display deviceinfo"))
}

func TestLoadExpandsPassword(t *testing.T) {
	t.Setenv("TEST_ONT_SECRET", "s3cret")
	cfg, err := Load(writeConfig(t, "device:\n  host: ont.home\n  password: ${TEST_ONT_SECRET}\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Device.Password)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("ONT_PASSWORD", "legacy")
	t.Setenv("CLEANUP_OLDER_THAN", "2d")
	t.Setenv("CLEANUP_FREQUENCY", "6h")
	t.Setenv("ONT_COLLECTOR_SERVER_PORT", "9200")

	cfg, err := Load(writeConfig(t, "device:\n  host: ont.home\n"))
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Device.Password)
	assert.Equal(t, "2d", cfg.Cleanup.OlderThan)
	assert.Equal(t, "6h", cfg.Cleanup.Frequency)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Device:  DeviceConfig{Host: "ont", Password: "x"},
			Storage: StorageConfig{DataDir: "/data"},
			Collector: CollectorConfig{Jobs: []JobConfig{
				{Name: "fast", Interval: time.Second, Commands: []string{"wap top"}},
			}},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"no host":         func(c *Config) { c.Device.Host = "" },
		"no credentials":  func(c *Config) { c.Device.Password = "" },
		"zero interval":   func(c *Config) { c.Collector.Jobs[0].Interval = 0 },
		"no commands":     func(c *Config) { c.Collector.Jobs[0].Commands = nil },
		"duplicate job":   func(c *Config) { c.Collector.Jobs = append(c.Collector.Jobs, c.Collector.Jobs[0]) },
		"minio no host":   func(c *Config) { c.Storage.Minio.Enabled = true },
		"empty separator": func(c *Config) { c.Collector.KeyValueSeparators = []SeparatorConfig{{Command: "x"}} },
	}
	for name, mutate := range cases {
		c := base()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestShippedConfigLoads(t *testing.T) {
	t.Setenv("ONT_PASSWORD", "from-env")
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "from-env", cfg.Device.Password)
	assert.Equal(t, "03:00", cfg.Cleanup.DailyAt)
	assert.Equal(t, 7*24*time.Hour, cfg.Database.SQLite.Retention)
	assert.False(t, cfg.Simulate.Enabled)
	assert.Equal(t, "simulate/fixtures", cfg.Simulate.FixtureDir)
	assert.Equal(t, "0.0.0.0:8000", cfg.GetServerAddr())
}
