package main

import (
	"flag"

	"go.uber.org/zap"

	"github.com/poolscan/poolscan/internal/app"
	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/pkg/logger"
)

const serviceName = "poolscan"

func main() {
	// 命令行参数
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 初始化日志
	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: serviceName,
	}); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting service",
		zap.String("service", serviceName),
		zap.String("env", cfg.Service.Env),
		zap.Int("http_port", cfg.Service.HTTPPort),
		zap.Int("chains", len(cfg.Chains)))

	// 创建应用
	application, err := app.NewApp(cfg)
	if err != nil {
		logger.Fatal("failed to create app", zap.Error(err))
	}

	// 运行应用
	if err := application.Run(); err != nil {
		logger.Fatal("app run error", zap.Error(err))
	}

	logger.Info("service stopped")
}
