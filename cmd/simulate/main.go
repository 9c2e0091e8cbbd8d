package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/pkg/logger"
	sshc "github.com/ontcollector/ontcollector/pkg/ssh"
	"github.com/ontcollector/ontcollector/simulate"
)

// 独立运行 ONT Shell 模拟器；-probe 时执行一条命令后退出
func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	probe := flag.String("probe", "", "启动后执行的命令，输出回显后退出")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := simulate.Start(cfg.Simulate)
	if err != nil {
		logger.Fatalf("Failed to start simulator: %v", err)
	}
	defer srv.Stop()

	if *probe != "" {
		if err := runProbe(srv.Port(), cfg.Simulate, *probe); err != nil {
			logger.Errorf("Probe failed: %v", err)
			srv.Stop()
			os.Exit(1)
		}
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func runProbe(port int, sc config.SimulateConfig, command string) error {
	client := sshc.NewClient(&sshc.Config{Timeout: 5 * time.Second, BannerWait: 300 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx, &sshc.ConnectionInfo{
		Host:     "127.0.0.1",
		Port:     port,
		Username: sc.Username,
		Password: sc.Password,
	}); err != nil {
		return err
	}
	defer client.Close()

	res, err := client.Run(ctx, command, 500*time.Millisecond)
	if err != nil {
		return err
	}
	fmt.Println(res.Output)
	return nil
}
