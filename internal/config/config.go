package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Device    DeviceConfig    `mapstructure:"device"`
	Collector CollectorConfig `mapstructure:"collector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Simulate  SimulateConfig  `mapstructure:"simulate"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SSHConfig SSH会话配置
type SSHConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	// BannerWait 登录后丢弃横幅前的等待
	BannerWait time.Duration `mapstructure:"banner_wait"`
	// CommandWait 发送命令后固定等待，0 表示使用交互插件默认值
	CommandWait  time.Duration `mapstructure:"command_wait"`
	ReadInterval time.Duration `mapstructure:"read_interval"`
}

// DeviceConfig 被采集的 ONT 设备
type DeviceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	KeyFile  string `mapstructure:"key_file"`
	// Platform 选择采集与交互插件，如 huawei_ont
	Platform string `mapstructure:"platform"`
}

// CollectorConfig 采集器配置
type CollectorConfig struct {
	ID   string      `mapstructure:"id"`
	Jobs []JobConfig `mapstructure:"jobs"`
	// RunOnStart 启动时立即执行一次全部任务
	RunOnStart bool `mapstructure:"run_on_start"`
	// PreviewLines debug 日志中回显的首尾行数
	PreviewLines int `mapstructure:"preview_lines"`
	// KeyValueSeparators 未命中方言的命令改用的键值分隔符（默认 ":"）
	KeyValueSeparators []SeparatorConfig `mapstructure:"key_value_separators"`
}

// SeparatorConfig 单条命令的通用键值分隔符
type SeparatorConfig struct {
	Command   string `mapstructure:"command"`
	Separator string `mapstructure:"separator"`
}

// SeparatorFor 返回命令配置的键值分隔符，未配置返回空串
func (c CollectorConfig) SeparatorFor(command string) string {
	command = strings.TrimSpace(command)
	for _, s := range c.KeyValueSeparators {
		if strings.TrimSpace(s.Command) == command {
			return s.Separator
		}
	}
	return ""
}

// JobConfig 定时采集任务：同一组命令按固定间隔串行执行
type JobConfig struct {
	Name     string        `mapstructure:"name"`
	Interval time.Duration `mapstructure:"interval"`
	Commands []string      `mapstructure:"commands"`
}

// StorageConfig 指标文件存储配置
type StorageConfig struct {
	// DataDir 本地数据目录，每条命令一个子目录
	DataDir string      `mapstructure:"data_dir"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储镜像配置
type MinioConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
	// Prefix 对象键前缀（不含 bucket）
	Prefix string `mapstructure:"prefix"`
}

// CleanupConfig 过期文件清理配置
type CleanupConfig struct {
	// OlderThan 保留时长：<n>d | <n>h | <n>m
	OlderThan string `mapstructure:"older_than"`
	// Frequency 清理周期：<n>d | <n>h | <n>m，按天时在 DailyAt 执行
	Frequency string `mapstructure:"frequency"`
	DailyAt   string `mapstructure:"daily_at"`
}

// SimulateConfig 本地 ONT Shell 模拟器，用于联调与集成测试
type SimulateConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// FixtureDir 每条命令一个回显文件，文件名为命令空格替换为下划线
	FixtureDir  string `mapstructure:"fixture_dir"`
	HostKeyPath string `mapstructure:"host_key_path"`
	IdleSeconds int    `mapstructure:"idle_seconds"`
	MaxConn     int    `mapstructure:"max_conn"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Retention 运行记录保留时长，0 表示不清理
	Retention time.Duration `mapstructure:"retention"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var globalConfig *Config

// Load 加载配置文件
// configPath 为空时按默认路径查找，找不到配置文件则仅使用默认值与环境变量
func Load(configPath string) (*Config, error) {
	viper.Reset()
	viper.SetConfigType("yaml")

	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("../configs")
		viper.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	viper.SetEnvPrefix("ONT_COLLECTOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindLegacyEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 环境变量替换
	config = replaceEnvVars(config)

	globalConfig = &config
	return &config, nil
}

// bindLegacyEnv 兼容早期部署使用的无前缀环境变量
func bindLegacyEnv() {
	_ = viper.BindEnv("device.password", "ONT_COLLECTOR_DEVICE_PASSWORD", "ONT_PASSWORD")
	_ = viper.BindEnv("cleanup.older_than", "ONT_COLLECTOR_CLEANUP_OLDER_THAN", "CLEANUP_OLDER_THAN")
	_ = viper.BindEnv("cleanup.frequency", "ONT_COLLECTOR_CLEANUP_FREQUENCY", "CLEANUP_FREQUENCY")
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("ssh.timeout", 10*time.Second)
	viper.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	viper.SetDefault("ssh.banner_wait", time.Second)
	viper.SetDefault("ssh.command_wait", 0)
	viper.SetDefault("ssh.read_interval", 200*time.Millisecond)

	viper.SetDefault("device.host", "")
	viper.SetDefault("device.port", 22)
	viper.SetDefault("device.username", "root")
	viper.SetDefault("device.password", "")
	viper.SetDefault("device.key_file", "")
	viper.SetDefault("device.platform", "huawei_ont")

	viper.SetDefault("collector.id", "ont-collector")
	viper.SetDefault("collector.run_on_start", true)
	viper.SetDefault("collector.preview_lines", 5)
	// 默认两组任务：高频计数类与低频状态类
	viper.SetDefault("collector.jobs", []map[string]interface{}{
		{
			"name":     "fast",
			"interval": "30s",
			"commands": []string{
				"display sfwd drop statistics",
				"display portstatistics portnum 1",
				"wap top",
			},
		},
		{
			"name":     "slow",
			"interval": "5m",
			"commands": []string{
				"display lanport workmode",
				"display dhcp server user all",
				"display deviceinfo",
				"display wifi associate",
				"display wifi information",
				"display waninfo all detail",
			},
		},
	})

	viper.SetDefault("storage.data_dir", "/data")
	viper.SetDefault("storage.minio.enabled", false)
	viper.SetDefault("storage.minio.port", 9000)
	viper.SetDefault("storage.minio.bucket", "ont-metrics")
	viper.SetDefault("storage.minio.prefix", "")

	viper.SetDefault("cleanup.older_than", "7d")
	viper.SetDefault("cleanup.frequency", "1d")
	viper.SetDefault("cleanup.daily_at", "03:00")

	viper.SetDefault("simulate.enabled", false)
	viper.SetDefault("simulate.port", 2222)
	viper.SetDefault("simulate.username", "root")
	viper.SetDefault("simulate.password", "admin")
	viper.SetDefault("simulate.fixture_dir", "simulate/fixtures")
	viper.SetDefault("simulate.host_key_path", "simulate/_hostkey_rsa.pem")
	viper.SetDefault("simulate.idle_seconds", 300)
	viper.SetDefault("simulate.max_conn", 4)

	viper.SetDefault("database.sqlite.path", "./data/collector.db")
	viper.SetDefault("database.sqlite.max_idle_conns", 2)
	viper.SetDefault("database.sqlite.max_open_conns", 4)
	viper.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)
	viper.SetDefault("database.sqlite.retention", 7*24*time.Hour)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "console")
	viper.SetDefault("log.file_path", "./logs/collector.log")
	viper.SetDefault("log.max_size", 50)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age", 30)
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// replaceEnvVars 替换 ${VAR} 形式的敏感字段
func replaceEnvVars(config Config) Config {
	config.Device.Password = expandEnv(config.Device.Password)
	config.Storage.Minio.AccessKey = expandEnv(config.Storage.Minio.AccessKey)
	config.Storage.Minio.SecretKey = expandEnv(config.Storage.Minio.SecretKey)
	config.Collector.ID = expandEnv(config.Collector.ID)
	return config
}

func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
	}
	return v
}

// Validate 校验采集服务运行所需的配置
func (c *Config) Validate() error {
	if c.Device.Host == "" {
		return errors.New("device.host is required")
	}
	if c.Device.Password == "" && c.Device.KeyFile == "" {
		return errors.New("device.password (or ONT_PASSWORD) or device.key_file is required")
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	seen := make(map[string]bool, len(c.Collector.Jobs))
	for i, j := range c.Collector.Jobs {
		if j.Name == "" {
			return fmt.Errorf("collector.jobs[%d]: name is required", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("collector.jobs[%d]: duplicate name %q", i, j.Name)
		}
		seen[j.Name] = true
		if j.Interval <= 0 {
			return fmt.Errorf("collector.jobs[%d] %s: interval must be positive", i, j.Name)
		}
		if len(j.Commands) == 0 {
			return fmt.Errorf("collector.jobs[%d] %s: no commands", i, j.Name)
		}
	}
	for i, s := range c.Collector.KeyValueSeparators {
		if strings.TrimSpace(s.Command) == "" || s.Separator == "" {
			return fmt.Errorf("collector.key_value_separators[%d]: command and separator are required", i)
		}
	}
	if c.Storage.Minio.Enabled && (c.Storage.Minio.Host == "" || c.Storage.Minio.Bucket == "") {
		return errors.New("storage.minio.host and storage.minio.bucket are required when minio is enabled")
	}
	return nil
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Job 按名称查找任务
func (c *Config) Job(name string) (JobConfig, bool) {
	for _, j := range c.Collector.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobConfig{}, false
}
