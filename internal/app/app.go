// Package app 提供 poolscan 服务的应用生命周期管理
//
// ## 服务职责
// poolscan 是多链 AMM 事件索引服务，负责:
// 1. 池发现 (Pool Discovery): 监听工厂/注册表合约的池创建事件
// 2. 交易索引 (Swap Indexing): 解码各协议 Swap 事件并落库
// 3. 价格计算 (Pricing): 从储备量或 sqrtPriceX96 推导精确价格
// 4. 状态刷新 (State Refresh): 定期回读池的链上状态并快照
//
// ## Kafka 对接 (参见 internal/kafka/producer.go)
//
// ### 生产的 Topic
// - swap-events: 新入库的交易事件
// - price-updates: 新计算的价格点
//
// ## HTTP 运维接口 (参见 internal/handler/ops_handler.go)
// - GET /health, GET /config, POST /progress/reset, GET /metrics
//
// ## 数据库
// - 数据库名: poolscan
// - 启动时 gorm AutoMigrate，幂等
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/cache"
	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/internal/handler"
	"github.com/poolscan/poolscan/internal/kafka"
	"github.com/poolscan/poolscan/internal/price"
	"github.com/poolscan/poolscan/internal/protocol"
	"github.com/poolscan/poolscan/internal/repository"
	"github.com/poolscan/poolscan/internal/service"
	"github.com/poolscan/poolscan/pkg/lock"
	"github.com/poolscan/poolscan/pkg/logger"
	"github.com/poolscan/poolscan/pkg/retry"
)

// App 应用
type App struct {
	cfg *config.Config

	// 基础设施
	db    *gorm.DB
	redis *redis.Client

	// 区块链: 每条链一个带故障切换的客户端
	clients map[int64]*blockchain.Client

	// 仓储
	poolRepo      repository.PoolRepository
	tokenRepo     repository.TokenRepository
	swapRepo      repository.SwapRepository
	liquidityRepo repository.LiquidityRepository
	priceRepo     repository.PriceRepository
	progressRepo  repository.ProgressRepository

	// 服务: 每条链一对 (索引 + 状态刷新)
	indexers   []*service.IndexerService
	refreshers []*service.StateService

	// Kafka
	kafkaProducer  *kafka.Producer
	eventPublisher *kafka.KafkaEventPublisher

	// HTTP
	opsHandler *handler.OpsHandler

	// 运行控制
	stopCh chan struct{}
}

// NewApp 创建应用
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		cfg:     cfg,
		clients: make(map[int64]*blockchain.Client),
		stopCh:  make(chan struct{}),
	}

	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}

	if err := app.initBlockchain(); err != nil {
		return nil, fmt.Errorf("failed to init blockchain: %w", err)
	}

	app.initRepositories()

	if err := app.initKafka(); err != nil {
		return nil, fmt.Errorf("failed to init kafka: %w", err)
	}

	app.initServices()

	return app, nil
}

// initInfrastructure 初始化基础设施
func (a *App) initInfrastructure() error {
	// PostgreSQL
	db, err := gorm.Open(postgres.Open(a.cfg.Postgres.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(a.cfg.Postgres.MaxConnections)
	sqlDB.SetMaxIdleConns(a.cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Postgres.ConnMaxLifetime) * time.Second)

	a.db = db
	logger.Info("database connected", zap.String("host", a.cfg.Postgres.Host))

	// 自动迁移
	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	// Redis
	redisAddr := "localhost:6379"
	if len(a.cfg.Redis.Addresses) > 0 {
		redisAddr = a.cfg.Redis.Addresses[0]
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	if err := a.redis.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", redisAddr))

	return nil
}

// initBlockchain 初始化每条链的客户端
func (a *App) initBlockchain() error {
	for _, chainCfg := range a.cfg.Chains {
		client, err := blockchain.NewClient(&blockchain.ClientConfig{
			ChainID:     chainCfg.ChainID,
			RPCURL:      chainCfg.RPCURL,
			BackupURLs:  chainCfg.BackupRPCURLs,
			Timeout:     time.Duration(a.cfg.Indexer.RPCTimeout) * time.Second,
			BackoffBase: time.Duration(a.cfg.Indexer.RetryBaseDelay) * time.Millisecond,
			MethodPolicy: retry.Policy{
				MaxAttempts: a.cfg.Indexer.MaxRetries,
				BaseDelay:   time.Duration(a.cfg.Indexer.RetryBaseDelay) * time.Millisecond,
				MaxDelay:    10 * time.Second,
				Jitter:      true,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create client for chain %d: %w", chainCfg.ChainID, err)
		}
		a.clients[chainCfg.ChainID] = client

		logger.Info("blockchain client initialized",
			zap.Int64("chain_id", chainCfg.ChainID),
			zap.String("chain", chainCfg.Name),
			zap.Int("endpoints", len(client.EndpointStatuses())))
	}
	return nil
}

// initRepositories 初始化仓储
func (a *App) initRepositories() {
	a.poolRepo = repository.NewPoolRepository(a.db)
	a.tokenRepo = repository.NewTokenRepository(a.db)
	a.swapRepo = repository.NewSwapRepository(a.db)
	a.liquidityRepo = repository.NewLiquidityRepository(a.db)
	a.priceRepo = repository.NewPriceRepository(a.db)
	a.progressRepo = repository.NewProgressRepository(a.db)

	logger.Info("repositories initialized")
}

// initKafka 初始化 Kafka (可选)
func (a *App) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		logger.Info("kafka disabled, events will not be published")
		return nil
	}

	producer, err := kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:  a.cfg.Kafka.Brokers,
		ClientID: a.cfg.Kafka.ClientID,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	a.kafkaProducer = producer
	a.eventPublisher = kafka.NewKafkaEventPublisher(producer)

	logger.Info("kafka initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return nil
}

// initServices 初始化各链的索引与状态刷新服务
func (a *App) initServices() {
	registry := protocol.DefaultRegistry()
	engine := price.NewEngine()
	locker := lock.NewRedisLocker(a.redis, "poolscan")
	lockTTL := time.Duration(a.cfg.Indexer.LockTTL) * time.Second
	seen := cache.NewSeenCache(a.redis, "poolscan:seen", 2*lockTTL)

	for _, chainCfg := range a.cfg.Chains {
		client := a.clients[chainCfg.ChainID]
		tokens := blockchain.NewTokenCache(client, time.Hour)

		deps := &service.IndexerServiceDeps{
			Client:        client,
			Registry:      registry,
			Locker:        locker,
			Seen:          seen,
			Engine:        engine,
			Tokens:        tokens,
			Tx:            repository.NewRepository(a.db),
			PoolRepo:      a.poolRepo,
			TokenRepo:     a.tokenRepo,
			SwapRepo:      a.swapRepo,
			LiquidityRepo: a.liquidityRepo,
			PriceRepo:     a.priceRepo,
			ProgressRepo:  a.progressRepo,
		}
		if a.eventPublisher != nil {
			deps.Publisher = a.eventPublisher
		}

		a.indexers = append(a.indexers, service.NewIndexerService(deps, chainCfg, a.cfg.Indexer))
		a.refreshers = append(a.refreshers, service.NewStateService(deps, chainCfg, a.cfg.Indexer))
	}

	a.opsHandler = handler.NewOpsHandler(a.cfg, a.clients, a.progressRepo)

	logger.Info("services initialized", zap.Int("chains", len(a.cfg.Chains)))
}

// Run 运行应用
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动索引器
	for _, idx := range a.indexers {
		if err := idx.Start(ctx); err != nil {
			return fmt.Errorf("failed to start indexer: %w", err)
		}
	}

	// 启动状态刷新器
	for _, r := range a.refreshers {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("failed to start state refresher: %w", err)
		}
	}

	// 启动运维 HTTP 服务器
	addr := fmt.Sprintf(":%d", a.cfg.Service.HTTPPort)
	srv := handler.Serve(ctx, addr, a.opsHandler)
	logger.Info("ops http server listening", zap.Int("port", a.cfg.Service.HTTPPort))

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-a.stopCh:
		logger.Info("shutdown requested")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops http server shutdown error", zap.Error(err))
	}

	return a.shutdown()
}

// shutdown 关闭应用
//
// 先停服务等在途窗口写完检查点，再关外部连接。
func (a *App) shutdown() error {
	logger.Info("shutting down...")

	for _, idx := range a.indexers {
		if err := idx.Stop(); err != nil && err != service.ErrIndexerNotRunning {
			logger.Error("failed to stop indexer", zap.Error(err))
		}
	}
	for _, r := range a.refreshers {
		if err := r.Stop(); err != nil && err != service.ErrIndexerNotRunning {
			logger.Error("failed to stop state refresher", zap.Error(err))
		}
	}

	// 关闭 Kafka 生产者
	if a.kafkaProducer != nil {
		a.kafkaProducer.Close()
	}

	// 关闭区块链客户端
	for _, client := range a.clients {
		client.Close()
	}

	// 关闭 Redis
	if a.redis != nil {
		a.redis.Close()
	}

	// 关闭数据库
	if a.db != nil {
		sqlDB, _ := a.db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// Stop 停止应用
func (a *App) Stop() {
	close(a.stopCh)
}
