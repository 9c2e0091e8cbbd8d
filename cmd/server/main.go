package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ontcollector/ontcollector/api/router"
	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/internal/database"
	"github.com/ontcollector/ontcollector/internal/service"
	"github.com/ontcollector/ontcollector/pkg/logger"
	"github.com/ontcollector/ontcollector/pkg/ssh"
	"github.com/ontcollector/ontcollector/simulate"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logConfig(cfg)); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(map[string]interface{}{
		"collector_id": cfg.Collector.ID,
		"platform":     cfg.Device.Platform,
		"data_dir":     cfg.Storage.DataDir,
	}).Info("Starting ONT collector")

	// 本地模拟器：device.host 为空时指向模拟器
	var sim *simulate.Server
	if cfg.Simulate.Enabled {
		sim, err = simulate.Start(cfg.Simulate)
		if err != nil {
			logger.Fatalf("Failed to start simulator: %v", err)
		}
		if cfg.Device.Host == "" {
			cfg.Device.Host = "127.0.0.1"
			cfg.Device.Port = sim.Port()
			cfg.Device.Username = cfg.Simulate.Username
			cfg.Device.Password = cfg.Simulate.Password
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatalf("Failed to create data dir %s: %v", cfg.Storage.DataDir, err)
	}

	// 执行记录库不可用时继续运行，仅关闭 /api/v1/runs
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Warnf("Run history disabled: %v", err)
	}
	defer database.Close()

	metrics := service.NewMetrics()
	shell := ssh.NewClient(&ssh.Config{
		Timeout:      cfg.SSH.Timeout,
		KeepAlive:    cfg.SSH.KeepAliveInterval,
		BannerWait:   cfg.SSH.BannerWait,
		ReadInterval: cfg.SSH.ReadInterval,
	})
	collectorService := service.NewCollectorService(cfg, shell, service.NewStorageWriter(cfg), metrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := collectorService.Start(ctx); err != nil {
		logger.Fatalf("Failed to start collector service: %v", err)
	}

	cleaner := service.NewCleaner(cfg.Storage.DataDir, cfg.Cleanup.OlderThan, cfg.Database.SQLite.Retention, metrics)
	scheduler := service.NewScheduler(cfg, collectorService, cleaner)
	schedDone := make(chan error, 1)
	go func() { schedDone <- scheduler.Run(ctx) }()

	r := router.SetupRouter(router.Options{
		Collector: collectorService,
		Scheduler: scheduler,
		Metrics:   metrics,
		DataDir:   cfg.Storage.DataDir,
		LogPath:   logPathOf(cfg),
		Mode:      cfg.Server.Mode,
	})
	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		logger.Infof("Exporter listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	go watchConfig(*configPath, cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-schedDone:
		if err != nil {
			logger.Errorf("Scheduler stopped: %v", err)
		}
	}

	logger.Info("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	_ = collectorService.Stop()
	if sim != nil {
		sim.Stop()
	}
	logger.Info("Server shutdown complete")
}

func logConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
}

func logPathOf(cfg *config.Config) string {
	if cfg.Log.Output == "file" || cfg.Log.Output == "both" {
		return cfg.Log.FilePath
	}
	return ""
}

// watchConfig 配置文件变化时刷新日志级别与格式；任务、设备等变更需重启生效
func watchConfig(path string, cfg *config.Config) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("Config watch init failed: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warnf("Config watch add failed: %v", err)
		return
	}

	var debounce *time.Timer
	trigger := func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.Warnf("Config reload failed: %v", err)
			return
		}
		cfg.Log = newCfg.Log
		if err := logger.Init(logConfig(cfg)); err != nil {
			logger.Warnf("Logger reload failed: %v", err)
			return
		}
		logger.Info("Config reloaded")
	}
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, trigger)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Config watch error: %v", err)
		}
	}
}
