package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/cache"
	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/internal/model"
	"github.com/poolscan/poolscan/internal/price"
	"github.com/poolscan/poolscan/internal/protocol"
	"github.com/poolscan/poolscan/internal/repository"
	"github.com/poolscan/poolscan/pkg/logger"
)

// StateService 池状态刷新服务
//
// 按固定间隔把每个活跃池的链上状态 (储备 / sqrtPrice+tick+liquidity /
// vault 余额) 读回来，更新 pools 的状态列并追加一条 LiquiditySnapshot。
// 单个池读取失败跳过，不影响同轮其他池。
type StateService struct {
	client   *blockchain.Client
	registry *protocol.Registry
	engine   *price.Engine
	tokens   *blockchain.TokenCache
	seen     *cache.SeenCache

	poolRepo      repository.PoolRepository
	liquidityRepo repository.LiquidityRepository

	chainCfg   config.ChainConfig
	indexerCfg config.IndexerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewStateService 创建池状态刷新服务
func NewStateService(deps *IndexerServiceDeps, chainCfg config.ChainConfig, indexerCfg config.IndexerConfig) *StateService {
	return &StateService{
		client:        deps.Client,
		registry:      deps.Registry,
		engine:        deps.Engine,
		tokens:        deps.Tokens,
		seen:          deps.Seen,
		poolRepo:      deps.PoolRepo,
		liquidityRepo: deps.LiquidityRepo,
		chainCfg:      chainCfg,
		indexerCfg:    indexerCfg,
	}
}

// Start 启动状态刷新循环
func (s *StateService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrIndexerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runLoop(ctx)

	logger.Info("state refresher starting",
		zap.Int64("chain_id", s.chainCfg.ChainID),
		zap.Int("interval_seconds", s.indexerCfg.StateRefreshInterval))
	return nil
}

// Stop 停止状态刷新并等待在途轮次收尾
func (s *StateService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrIndexerNotRunning
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// runLoop 主循环
func (s *StateService) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.indexerCfg.StateRefreshInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

// refreshAll 刷新本链全部活跃池
func (s *StateService) refreshAll(ctx context.Context) {
	head, err := s.client.LatestBlock(ctx)
	if err != nil {
		logger.Error("state refresh: failed to get latest block",
			zap.Int64("chain_id", s.chainCfg.ChainID),
			zap.Error(err))
		return
	}

	// 快照带链上区块时间，一轮一个头块，查一次够所有池用
	headTS, err := s.client.BlockTimestamp(ctx, head)
	if err != nil {
		logger.Error("state refresh: failed to get head timestamp",
			zap.Int64("chain_id", s.chainCfg.ChainID),
			zap.Uint64("block", head),
			zap.Error(err))
		return
	}

	pools, err := s.poolRepo.ListActive(ctx, s.chainCfg.ChainID)
	if err != nil {
		logger.Error("state refresh: failed to list pools",
			zap.Int64("chain_id", s.chainCfg.ChainID),
			zap.Error(err))
		return
	}

	for _, pool := range pools {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.refreshPool(ctx, pool, int64(head), int64(headTS)); err != nil {
			logger.Warn("state refresh: pool skipped",
				zap.Int64("chain_id", pool.ChainID),
				zap.String("protocol", pool.Protocol),
				zap.String("pool", pool.PoolAddress),
				zap.Error(err))
		}
	}
}

// refreshPool 刷新单个池
func (s *StateService) refreshPool(ctx context.Context, pool *model.Pool, head, headTimestamp int64) error {
	parser, ok := s.registry.Get(pool.Protocol)
	if !ok {
		return nil
	}
	fetcher, ok := parser.(protocol.StateFetcher)
	if !ok {
		// 协议不支持状态读取 (curve registry 之外的变体等)，不是错误
		return nil
	}

	delta, err := fetcher.FetchState(ctx, s.client, pool)
	if err != nil {
		return err
	}

	s.applyDelta(ctx, pool, delta)
	pool.LastIndexedBlock = head

	if err := s.poolRepo.UpdateState(ctx, pool); err != nil {
		if errors.Is(err, repository.ErrPoolNotFound) {
			return nil
		}
		return err
	}

	key := cache.LiquidityKey(pool.PoolAddress, pool.ChainID, head)
	if s.seen.Seen(ctx, key) {
		return nil
	}

	snapshot := &model.LiquiditySnapshot{
		PoolAddress:    pool.PoolAddress,
		ChainID:        pool.ChainID,
		BlockNumber:    head,
		TotalLiquidity: pool.Liquidity,
		Reserve0:       pool.Reserve0,
		Reserve1:       pool.Reserve1,
		Token0Price:    pool.Token0Price,
		Token1Price:    pool.Token1Price,
		BlockTimestamp: headTimestamp,
	}
	if err := s.liquidityRepo.UpsertSnapshot(ctx, snapshot); err != nil {
		return err
	}
	s.seen.MarkSeen(ctx, key)
	return nil
}

// applyDelta 把链上读数写回池对象并重算状态价
func (s *StateService) applyDelta(ctx context.Context, pool *model.Pool, delta *protocol.StateDelta) {
	if len(delta.Reserves) >= 2 {
		pool.Reserve0 = delta.Reserves[0]
		pool.Reserve1 = delta.Reserves[1]
	}
	if delta.SqrtPriceX96 != "" {
		pool.SqrtPriceX96 = delta.SqrtPriceX96
	}
	if delta.Tick != nil {
		pool.Tick = delta.Tick
	}
	if delta.Liquidity != "" {
		pool.Liquidity = delta.Liquidity
	}

	if pool.Token0Address == "" || pool.Token1Address == "" {
		return
	}
	dec0, _ := s.tokens.Decimals(ctx, common.HexToAddress(pool.Token0Address))
	dec1, _ := s.tokens.Decimals(ctx, common.HexToAddress(pool.Token1Address))

	switch {
	case pool.SqrtPriceX96 != "":
		p01, p10, err := s.engine.PriceFromSqrtPriceX96(pool.SqrtPriceX96, dec0, dec1)
		if err == nil {
			pool.Token0Price = p01.String()
			pool.Token1Price = p10.String()
		}
	case pool.Reserve0 != "" && pool.Reserve1 != "":
		p01, p10, err := s.engine.PriceFromReserves(pool.Reserve0, pool.Reserve1, dec0, dec1)
		if err == nil {
			pool.Token0Price = p01.String()
			pool.Token1Price = p10.String()
		}
	}
}
