package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/pkg/logger"
)

// Scheduler 按任务周期驱动采集，并按清理周期驱动清理
type Scheduler struct {
	collector  *CollectorService
	cleaner    *Cleaner
	jobs       []config.JobConfig
	runOnStart bool
	cleanup    CleanupSchedule
	now        func() time.Time
}

// NewScheduler 创建调度器；清理周期非法时回退到每天 03:00
func NewScheduler(cfg *config.Config, collector *CollectorService, cleaner *Cleaner) *Scheduler {
	sched, err := ParseCleanupFrequency(cfg.Cleanup.Frequency, cfg.Cleanup.DailyAt)
	if err != nil {
		logger.Warnf("Invalid cleanup frequency %q, defaulting to daily at %s: %v",
			cfg.Cleanup.Frequency, DefaultCleanupSchedule.At, err)
	}
	return &Scheduler{
		collector:  collector,
		cleaner:    cleaner,
		jobs:       cfg.Collector.Jobs,
		runOnStart: cfg.Collector.RunOnStart,
		cleanup:    sched,
		now:        time.Now,
	}
}

// Cleanup 返回生效的清理周期
func (s *Scheduler) Cleanup() CleanupSchedule {
	return s.cleanup
}

// Run 阻塞运行直到 ctx 取消；取消视为正常退出
func (s *Scheduler) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", job.Name)
		}
	}
	if s.runOnStart {
		for _, job := range s.jobs {
			if ctx.Err() != nil {
				return nil
			}
			s.collector.RunJob(ctx, job.Name, job.Commands)
		}
		s.runCleanup()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.jobLoop(gctx, job)
			return nil
		})
	}
	g.Go(func() error {
		s.cleanupLoop(gctx)
		return nil
	})
	logger.Infof("Scheduler started with %d jobs, next cleanup at %s",
		len(s.jobs), s.cleanup.First(s.now()).Format(time.RFC3339))
	return g.Wait()
}

func (s *Scheduler) jobLoop(ctx context.Context, job config.JobConfig) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collector.RunJob(ctx, job.Name, job.Commands)
		}
	}
}

func (s *Scheduler) cleanupLoop(ctx context.Context) {
	next := s.cleanup.First(s.now())
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runCleanup()
			next = s.cleanup.Next(next)
			// 长时间挂起后跳过已错过的周期
			for !next.After(s.now()) {
				next = s.cleanup.Next(next)
			}
		}
	}
}

func (s *Scheduler) runCleanup() {
	if s.cleaner == nil {
		return
	}
	if _, err := s.cleaner.Run(); err != nil {
		logger.Warnf("Cleanup failed: %v", err)
	}
}

// RunNow 立即执行指定任务；job 为空时执行全部任务
func (s *Scheduler) RunNow(ctx context.Context, job string) ([]*CommandReport, error) {
	var reports []*CommandReport
	found := false
	for _, j := range s.jobs {
		if job != "" && j.Name != job {
			continue
		}
		found = true
		reports = append(reports, s.collector.RunJob(ctx, j.Name, j.Commands)...)
	}
	if !found {
		return nil, fmt.Errorf("job %q not found", job)
	}
	return reports, nil
}
