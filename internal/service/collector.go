package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ontcollector/ontcollector/addone/collect"
	"github.com/ontcollector/ontcollector/addone/interact"
	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/internal/database"
	"github.com/ontcollector/ontcollector/internal/model"
	"github.com/ontcollector/ontcollector/pkg/logger"
	"github.com/ontcollector/ontcollector/pkg/ssh"
)

// ShellRunner 设备交互式 Shell
type ShellRunner interface {
	Connect(ctx context.Context, info *ssh.ConnectionInfo) error
	Run(ctx context.Context, command string, wait time.Duration) (*ssh.CommandResult, error)
	IsConnected() bool
	Close() error
}

// CollectorService 采集器服务：执行命令、解析输出、写出指标文件
type CollectorService struct {
	config   *config.Config
	shell    ShellRunner
	writer   StorageWriter
	metrics  *Metrics
	collect  collect.CollectPlugin
	interact interact.InteractPlugin
	now      func() time.Time

	// jobMu 同一 Shell 上的任务串行执行
	jobMu sync.Mutex

	mutex   sync.RWMutex
	running bool
	stats   collectorStats
}

type collectorStats struct {
	Jobs        int64     `json:"jobs"`
	Commands    int64     `json:"commands"`
	Failures    int64     `json:"failures"`
	LastJob     string    `json:"last_job"`
	LastJobAt   time.Time `json:"last_job_at"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}

// CommandReport 单条命令的处理结果
type CommandReport struct {
	RunID        string                     `json:"run_id"`
	Job          string                     `json:"job"`
	Command      string                     `json:"command"`
	Parser       string                     `json:"parser"`
	Status       string                     `json:"status"`
	ContentLines int                        `json:"content_lines"`
	Observations int                        `json:"observations"`
	Skipped      map[collect.SkipReason]int `json:"skipped,omitempty"`
	File         string                     `json:"file,omitempty"`
	Mirror       string                     `json:"mirror,omitempty"`
	Error        string                     `json:"error,omitempty"`
	DurationMS   int64                      `json:"duration_ms"`
}

// NewCollectorService 创建采集器服务
func NewCollectorService(cfg *config.Config, shell ShellRunner, writer StorageWriter, metrics *Metrics) *CollectorService {
	return &CollectorService{
		config:   cfg,
		shell:    shell,
		writer:   writer,
		metrics:  metrics,
		collect:  collect.Get(cfg.Device.Platform),
		interact: interact.Get(cfg.Device.Platform),
		now:      time.Now,
	}
}

// Start 启动采集器服务
func (s *CollectorService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return fmt.Errorf("collector service is already running")
	}
	s.running = true
	logger.WithFields(map[string]interface{}{
		"platform": s.collect.Name(),
		"interact": s.interact.Name(),
		"device":   s.config.Device.Host,
	}).Info("Collector service started")
	return nil
}

// Stop 停止采集器服务并关闭 Shell
func (s *CollectorService) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.shell.Close(); err != nil {
		logger.Errorf("Failed to close ssh shell: %v", err)
	}
	s.metrics.SetConnected(false)
	logger.Info("Collector service stopped")
	return nil
}

// Plugin 返回当前平台的采集插件
func (s *CollectorService) Plugin() collect.CollectPlugin {
	return s.collect
}

// RunJob 串行执行一组命令；单条命令失败只记录日志，不影响后续命令
func (s *CollectorService) RunJob(ctx context.Context, job string, commands []string) []*CommandReport {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	log := logger.WithField("job", job)
	commands = s.interact.TransformCommands(interact.CommandTransformInput{
		Commands: commands,
		Metadata: map[string]interface{}{"job": job},
	}).Commands
	log.Infof("Running job with %d commands", len(commands))

	reports := make([]*CommandReport, 0, len(commands))
	for _, cmd := range commands {
		if ctx.Err() != nil {
			log.Warn("Job cancelled")
			break
		}
		if err := s.ensureConnected(ctx); err != nil {
			log.Errorf("Job failed: %v", err)
			s.recordError(err)
			break
		}
		rep, err := s.ProcessCommand(ctx, job, cmd)
		if err != nil {
			logger.ForCommand(job, cmd).Errorf("Failed to process command: %v", err)
		}
		reports = append(reports, rep)
	}

	s.mutex.Lock()
	s.stats.Jobs++
	s.stats.LastJob = job
	s.stats.LastJobAt = s.now()
	s.mutex.Unlock()
	return reports
}

// ensureConnected 未连接时建立 Shell
func (s *CollectorService) ensureConnected(ctx context.Context) error {
	if s.shell.IsConnected() {
		return nil
	}
	d := s.config.Device
	err := s.shell.Connect(ctx, &ssh.ConnectionInfo{
		Host:     d.Host,
		Port:     d.Port,
		Username: d.Username,
		Password: d.Password,
		KeyFile:  d.KeyFile,
	})
	s.metrics.SetConnected(err == nil)
	if err != nil {
		return fmt.Errorf("connect %s:%d: %w", d.Host, d.Port, err)
	}
	logger.Infof("Connected to %s:%d", d.Host, d.Port)
	return nil
}

// ProcessCommand 执行单条命令：运行、提取内容行、解析、写文件、记录运行
func (s *CollectorService) ProcessCommand(ctx context.Context, job, command string) (*CommandReport, error) {
	start := s.now()
	rep := &CommandReport{RunID: uuid.NewString(), Job: job, Command: command}
	log := logger.ForCommand(job, command)

	defaults := s.interact.Defaults()
	wait := s.config.SSH.CommandWait
	if wait <= 0 {
		wait = defaults.CommandWait
	}

	var (
		out    collect.ParseOutput
		runErr error
	)
	res, err := s.shell.Run(ctx, command, wait)
	if err != nil {
		runErr = fmt.Errorf("run %q: %w", command, err)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			// 写失败通常意味着连接已断，下条命令前重连
			_ = s.shell.Close()
			s.metrics.SetConnected(false)
		}
	} else {
		logger.DebugCommandOutput(command, res.Output, s.config.Collector.PreviewLines)
		if bad, msg := s.interact.DetectError(res.Output); bad {
			log.Warnf("Device reported an error: %s", msg)
			rep.Error = msg
		}
		lines := interact.ContentLines(defaults, res.Output)
		rep.ContentLines = len(lines)
		out = s.Parse(command, lines, nil)
		rep.Parser = out.Parser
		rep.Observations = len(out.Result.Observations)
		rep.Skipped = out.Result.Skipped

		if rep.Observations == 0 {
			log.Warn("No parsable data generated")
		} else {
			obj, werr := s.writer.Write(ctx, StorageMeta{Prefix: out.Prefix, At: start}, strings.Join(out.Result.Lines(), "\n"))
			if werr != nil {
				runErr = fmt.Errorf("write %q: %w", command, werr)
			} else {
				rep.File = obj.URI
				rep.Mirror = obj.Mirror
				log.WithField("file", obj.URI).Infof("Saved %d metrics", rep.Observations)
			}
		}
	}

	switch {
	case runErr != nil:
		rep.Status = model.RunStatusFailed
		rep.Error = runErr.Error()
	case rep.Observations == 0:
		rep.Status = model.RunStatusEmpty
	default:
		rep.Status = model.RunStatusSuccess
	}
	elapsed := s.now().Sub(start)
	rep.DurationMS = elapsed.Milliseconds()

	s.metrics.ObserveRun(command, rep.Status, elapsed, out.Result)
	if rep.Status == model.RunStatusSuccess {
		s.metrics.MarkSuccess(command, start)
	}
	s.saveRun(rep, start)

	s.mutex.Lock()
	s.stats.Commands++
	if runErr != nil {
		s.stats.Failures++
	}
	s.mutex.Unlock()
	if runErr != nil {
		s.recordError(runErr)
	}
	return rep, runErr
}

// Parse 对已提取的内容行执行解析；extra 覆盖由命令推导的基础标签
func (s *CollectorService) Parse(command string, lines []string, extra collect.Labels) collect.ParseOutput {
	return s.collect.Parse(collect.ParseContext{
		Platform:   s.collect.Name(),
		Command:    command,
		BaseLabels: BaseLabels(command).Merge(extra),
		Separator:  s.config.Collector.SeparatorFor(command),
	}, lines)
}

// ParseRaw 对原始 Shell 输出执行完整的提取与解析流程
func (s *CollectorService) ParseRaw(command, raw string, extra collect.Labels) collect.ParseOutput {
	return s.Parse(command, interact.ContentLines(s.interact.Defaults(), raw), extra)
}

var portArgRe = regexp.MustCompile(`\b(?:portnum|portid)\s+(\d+)\s*$`)

// BaseLabels 由命令参数推导基础标签：以 portnum/portid <n> 结尾时带 port
func BaseLabels(command string) collect.Labels {
	if m := portArgRe.FindStringSubmatch(strings.TrimSpace(command)); m != nil {
		return collect.Labels{"port": m[1]}
	}
	return collect.Labels{}
}

func (s *CollectorService) saveRun(rep *CommandReport, start time.Time) {
	if database.GetDB() == nil {
		return
	}
	detail := ""
	if len(rep.Skipped) > 0 {
		if b, err := json.Marshal(rep.Skipped); err == nil {
			detail = string(b)
		}
	}
	skipped := 0
	for _, n := range rep.Skipped {
		skipped += n
	}
	run := &model.CommandRun{
		ID:            rep.RunID,
		Job:           rep.Job,
		Command:       rep.Command,
		Parser:        rep.Parser,
		Status:        rep.Status,
		ContentLines:  rep.ContentLines,
		Observations:  rep.Observations,
		Skipped:       skipped,
		SkippedDetail: detail,
		FilePath:      rep.File,
		Error:         rep.Error,
		DurationMS:    rep.DurationMS,
		StartedAt:     start,
	}
	if err := database.SaveRun(run); err != nil {
		logger.Warnf("Failed to save run %s: %v", rep.RunID, err)
	}
}

func (s *CollectorService) recordError(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.LastError = err.Error()
	s.stats.LastErrorAt = s.now()
}

// GetStats 获取采集器统计信息
func (s *CollectorService) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return map[string]interface{}{
		"running":   s.running,
		"platform":  s.collect.Name(),
		"connected": s.shell.IsConnected(),
		"jobs":      s.stats.Jobs,
		"commands":  s.stats.Commands,
		"failures":  s.stats.Failures,
		"last_job":  s.stats.LastJob,
		"last_run":  s.stats.LastJobAt,
		"last_error": map[string]interface{}{
			"message": s.stats.LastError,
			"at":      s.stats.LastErrorAt,
		},
	}
}
