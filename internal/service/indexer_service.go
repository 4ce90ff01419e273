// Package service 实现索引编排
//
// 每条链一个 IndexerService，按轮询周期驱动状态机:
// 取链头 → 逐协议计算区块窗口 → 抢窗口锁 → 拉日志 → 并行解码 →
// 算价 → 幂等落库 → 推进检查点 → 释放锁。
// 协议之间互不影响: 一个协议的失败只跳过它自己的本轮窗口。
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/cache"
	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/internal/kafka"
	"github.com/poolscan/poolscan/internal/metrics"
	"github.com/poolscan/poolscan/internal/model"
	"github.com/poolscan/poolscan/internal/price"
	"github.com/poolscan/poolscan/internal/protocol"
	"github.com/poolscan/poolscan/internal/repository"
	"github.com/poolscan/poolscan/pkg/lock"
	"github.com/poolscan/poolscan/pkg/logger"
)

var (
	ErrIndexerAlreadyRunning = errors.New("indexer already running")
	ErrIndexerNotRunning     = errors.New("indexer not running")
)

// IndexerService 单链索引编排器
type IndexerService struct {
	client   *blockchain.Client
	registry *protocol.Registry
	locker   lock.Locker
	seen     *cache.SeenCache
	engine   *price.Engine
	tokens   *blockchain.TokenCache
	// publisher 为 nil 时不投递下游消息
	publisher kafka.EventPublisher
	// tx 跨仓储事务入口，swap 与价格同事务落库
	tx *repository.Repository

	poolRepo      repository.PoolRepository
	tokenRepo     repository.TokenRepository
	swapRepo      repository.SwapRepository
	liquidityRepo repository.LiquidityRepository
	priceRepo     repository.PriceRepository
	progressRepo  repository.ProgressRepository

	chainCfg   config.ChainConfig
	indexerCfg config.IndexerConfig

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	// wg 跟踪在途周期，优雅排水: 停止发起新批次，等在途批次收尾
	wg sync.WaitGroup

	// tsMu/tsCache 周期内的区块时间戳缓存，同一区块的多条日志只查一次
	tsMu    sync.Mutex
	tsCache map[uint64]uint64
}

// IndexerServiceDeps 编排器依赖
type IndexerServiceDeps struct {
	Client    *blockchain.Client
	Registry  *protocol.Registry
	Locker    lock.Locker
	Seen      *cache.SeenCache
	Engine    *price.Engine
	Tokens    *blockchain.TokenCache
	Publisher kafka.EventPublisher
	Tx        *repository.Repository

	PoolRepo      repository.PoolRepository
	TokenRepo     repository.TokenRepository
	SwapRepo      repository.SwapRepository
	LiquidityRepo repository.LiquidityRepository
	PriceRepo     repository.PriceRepository
	ProgressRepo  repository.ProgressRepository
}

// NewIndexerService 创建单链索引编排器
func NewIndexerService(deps *IndexerServiceDeps, chainCfg config.ChainConfig, indexerCfg config.IndexerConfig) *IndexerService {
	return &IndexerService{
		client:        deps.Client,
		registry:      deps.Registry,
		locker:        deps.Locker,
		seen:          deps.Seen,
		engine:        deps.Engine,
		tokens:        deps.Tokens,
		publisher:     deps.Publisher,
		tx:            deps.Tx,
		poolRepo:      deps.PoolRepo,
		tokenRepo:     deps.TokenRepo,
		swapRepo:      deps.SwapRepo,
		liquidityRepo: deps.LiquidityRepo,
		priceRepo:     deps.PriceRepo,
		progressRepo:  deps.ProgressRepo,
		chainCfg:      chainCfg,
		indexerCfg:    indexerCfg,
		tsCache:       make(map[uint64]uint64),
	}
}

// Start 启动索引主循环
func (s *IndexerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrIndexerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if s.indexerCfg.ValidateTopics {
		s.validateProtocolConfig(ctx)
	}

	logger.Info("indexer starting",
		zap.Int64("chain_id", s.chainCfg.ChainID),
		zap.String("chain", s.chainCfg.Name),
		zap.Int("protocols", len(s.chainCfg.Protocols)))

	s.wg.Add(1)
	go s.runLoop(ctx)

	return nil
}

// Stop 停止索引并等待在途周期收尾
func (s *IndexerService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrIndexerNotRunning
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()

	logger.Info("indexer stopped", zap.Int64("chain_id", s.chainCfg.ChainID))
	return nil
}

// IsRunning 检查是否运行中
func (s *IndexerService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// validateProtocolConfig 启动时校验配置里的 creation_block
//
// 配置里记录的协议部署块和 topic 经常是错的 (差几百万个块，或者
// indexed/非 indexed 字段搞反)。二分找第一个匹配日志的块，和配置
// 比对，不一致只告警不中断 —— 运维修配置，索引继续跑。
func (s *IndexerService) validateProtocolConfig(ctx context.Context) {
	head, err := s.client.LatestBlock(ctx)
	if err != nil {
		logger.Warn("skip creation block validation, cannot fetch head", zap.Error(err))
		return
	}

	for _, proto := range s.chainCfg.Protocols {
		if !proto.Enabled {
			continue
		}
		blockchain.ValidateCreationBlock(ctx, s.client, proto.Tag,
			common.HexToAddress(proto.FactoryAddress),
			common.HexToHash(proto.CreationTopic),
			proto.CreationBlock, head)
	}
}

// runLoop 主循环
func (s *IndexerService) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.indexerCfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle 执行一个处理周期，协议并发扇出
func (s *IndexerService) runCycle(ctx context.Context) {
	head, err := s.client.LatestBlock(ctx)
	if err != nil {
		logger.Error("failed to get latest block",
			zap.Int64("chain_id", s.chainCfg.ChainID),
			zap.Error(err))
		return
	}

	safeHead := int64(head) - s.chainCfg.Confirmations
	if safeHead < 0 {
		return
	}

	// 周期开始清空时间戳缓存，避免跨周期无限增长
	s.tsMu.Lock()
	s.tsCache = make(map[uint64]uint64)
	s.tsMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.indexerCfg.ProtocolConcurrency)

	for _, proto := range s.chainCfg.Protocols {
		if !proto.Enabled {
			continue
		}
		proto := proto
		g.Go(func() error {
			// 协议失败只影响自己，不让 errgroup 取消同周期的其他协议
			if err := s.processProtocol(gctx, proto, safeHead); err != nil {
				logger.Error("protocol cycle failed",
					zap.Int64("chain_id", s.chainCfg.ChainID),
					zap.String("protocol", proto.Tag),
					zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()
}

// computeRange 计算本轮处理窗口
//
// 起点取 max(检查点+1, 协议创建块)，协议创建块还在安全头之后时
// 返回空窗口 (不是错误)，等链头追上来再处理。
func computeRange(checkpoint, creationBlock, safeHead, maxRange int64) (start, end int64, ok bool) {
	start = checkpoint + 1
	if start < creationBlock {
		start = creationBlock
	}
	if start > safeHead {
		return 0, 0, false
	}

	end = safeHead
	if maxRange > 0 && end-start+1 > maxRange {
		end = start + maxRange - 1
	}
	return start, end, true
}

// processProtocol 处理单个协议的一个窗口
func (s *IndexerService) processProtocol(ctx context.Context, proto config.ProtocolConfig, safeHead int64) error {
	parser, ok := s.registry.Get(proto.Tag)
	if !ok {
		return fmt.Errorf("no parser registered for protocol %q", proto.Tag)
	}

	chainLabel := strconv.FormatInt(s.chainCfg.ChainID, 10)

	checkpoint := int64(0)
	progress, err := s.progressRepo.Get(ctx, s.chainCfg.ChainID, proto.Tag, "")
	if err == nil {
		checkpoint = progress.LastProcessedBlock
	} else if !errors.Is(err, repository.ErrProgressNotFound) {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	start, end, ok := computeRange(checkpoint, proto.CreationBlock, safeHead, s.chainCfg.MaxBlockRange)
	if !ok {
		metrics.IndexerLagBlocks.WithLabelValues(chainLabel, proto.Tag).Set(0)
		return nil
	}

	// 窗口锁: 同一窗口全 fleet 只有一个实例在处理
	lockKey := fmt.Sprintf("indexer:%d:%s:%d", s.chainCfg.ChainID, proto.Tag, start)
	ttl := time.Duration(s.indexerCfg.LockTTL) * time.Second
	lease, acquired, err := s.locker.TryAcquire(ctx, lockKey, ttl)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		metrics.LockAcquisitionsTotal.WithLabelValues(chainLabel, proto.Tag, "contended").Inc()
		return nil
	}
	metrics.LockAcquisitionsTotal.WithLabelValues(chainLabel, proto.Tag, "acquired").Inc()

	// 处理期间按 TTL 一半续租，崩溃后锁自行过期
	renewStop := make(chan struct{})
	go s.renewLease(ctx, lease, ttl, renewStop)
	defer func() {
		close(renewStop)
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil && !errors.Is(err, lock.ErrLockNotHeld) {
			logger.Warn("failed to release window lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	began := time.Now()

	if err := s.indexPoolCreations(ctx, parser, proto, start, end); err != nil {
		return fmt.Errorf("index pool creations [%d,%d]: %w", start, end, err)
	}
	if err := s.indexSwaps(ctx, parser, proto, start, end); err != nil {
		return fmt.Errorf("index swaps [%d,%d]: %w", start, end, err)
	}
	if lp, ok := parser.(protocol.LiquidityParser); ok {
		if err := s.indexLiquidityModifications(ctx, lp, proto, start, end); err != nil {
			return fmt.Errorf("index liquidity modifications [%d,%d]: %w", start, end, err)
		}
	}

	// 持久化全部成功后才推进检查点 (write-then-checkpoint)
	if err := s.progressRepo.Advance(ctx, s.chainCfg.ChainID, proto.Tag, "", end); err != nil {
		return fmt.Errorf("advance checkpoint to %d: %w", end, err)
	}

	metrics.BlocksProcessedTotal.WithLabelValues(chainLabel, proto.Tag).Add(float64(end - start + 1))
	metrics.IndexerLagBlocks.WithLabelValues(chainLabel, proto.Tag).Set(float64(safeHead - end))
	metrics.BatchDuration.WithLabelValues(chainLabel, proto.Tag).Observe(time.Since(began).Seconds())

	logger.Debug("window processed",
		zap.Int64("chain_id", s.chainCfg.ChainID),
		zap.String("protocol", proto.Tag),
		zap.Int64("from", start),
		zap.Int64("to", end))

	return nil
}

// renewLease 续租循环
func (s *IndexerService) renewLease(ctx context.Context, lease lock.Lease, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx, ttl); err != nil {
				logger.Warn("failed to extend window lock",
					zap.String("key", lease.Key()),
					zap.Error(err))
				return
			}
		}
	}
}

// indexPoolCreations 拉取并落库池创建事件
func (s *IndexerService) indexPoolCreations(ctx context.Context, parser protocol.Parser, proto config.ProtocolConfig, start, end int64) error {
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(start),
		ToBlock:   big.NewInt(end),
		Addresses: []common.Address{common.HexToAddress(proto.FactoryAddress)},
		Topics:    [][]common.Hash{{common.HexToHash(proto.CreationTopic)}},
	})
	if err != nil {
		return err
	}

	chainLabel := strconv.FormatInt(s.chainCfg.ChainID, 10)

	for _, lg := range logs {
		ts, err := s.blockTimestamp(ctx, lg.BlockNumber)
		if err != nil {
			return err
		}

		pool, err := parser.ParsePoolCreated(lg, ts)
		if err != nil {
			s.warnDecode(proto.Tag, lg, err)
			metrics.DecodeErrorsTotal.WithLabelValues(chainLabel, proto.Tag).Inc()
			continue
		}
		pool.ChainID = s.chainCfg.ChainID

		key := cache.PoolKey(pool.ChainID, pool.PoolAddress)
		if s.seen.Seen(ctx, key) {
			continue
		}
		if err := s.poolRepo.Upsert(ctx, pool); err != nil {
			return err
		}
		s.seen.MarkSeen(ctx, key)
		metrics.PoolsCreatedTotal.WithLabelValues(chainLabel, proto.Tag).Inc()

		s.ensureToken(ctx, pool.Token0Address)
		s.ensureToken(ctx, pool.Token1Address)

		logger.Info("pool discovered",
			zap.Int64("chain_id", pool.ChainID),
			zap.String("protocol", proto.Tag),
			zap.String("pool", pool.PoolAddress),
			zap.Int64("block", pool.CreationBlock))
	}

	return nil
}

// ensureToken 登记代币，精度取不到回退 18
func (s *IndexerService) ensureToken(ctx context.Context, address string) {
	if address == "" {
		return
	}
	decimals, _ := s.tokens.Decimals(ctx, common.HexToAddress(address))
	token := &model.Token{
		ChainID:  s.chainCfg.ChainID,
		Address:  address,
		Decimals: decimals,
	}
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		logger.Warn("failed to upsert token",
			zap.String("address", address),
			zap.Error(err))
	}
}

// indexSwaps 拉取、并行解码并落库 swap 事件
func (s *IndexerService) indexSwaps(ctx context.Context, parser protocol.Parser, proto config.ProtocolConfig, start, end int64) error {
	pools, err := s.poolRepo.ListByProtocol(ctx, s.chainCfg.ChainID, proto.Tag)
	if err != nil {
		return err
	}
	if len(pools) == 0 && !proto.Singleton {
		return nil
	}

	byKey := make(map[string]*model.Pool, len(pools))
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(start),
		ToBlock:   big.NewInt(end),
		Topics:    [][]common.Hash{{common.HexToHash(proto.SwapTopic)}},
	}
	if proto.Singleton {
		// 单例协议: 所有 swap 从 manager/vault 合约发出，池 id 在 topics[1]
		query.Addresses = []common.Address{common.HexToAddress(proto.FactoryAddress)}
		for _, p := range pools {
			byKey[p.PoolID] = p
		}
	} else {
		// 工厂协议: 按已知池地址收敛过滤
		addrs := make([]common.Address, 0, len(pools))
		for _, p := range pools {
			addrs = append(addrs, common.HexToAddress(p.PoolAddress))
			byKey[common.HexToAddress(p.PoolAddress).Hex()] = p
		}
		query.Addresses = addrs
	}

	logs, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	batchSize := s.indexerCfg.LogBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var (
		resMu  sync.Mutex
		swaps  []*model.SwapEvent
		prices []*model.PriceCalculation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.indexerCfg.BatchConcurrency)

	for from := 0; from < len(logs); from += batchSize {
		to := from + batchSize
		if to > len(logs) {
			to = len(logs)
		}
		batch := logs[from:to]

		g.Go(func() error {
			batchSwaps, batchPrices, err := s.decodeSwapBatch(gctx, parser, proto, batch, byKey)
			if err != nil {
				return err
			}
			resMu.Lock()
			swaps = append(swaps, batchSwaps...)
			prices = append(prices, batchPrices...)
			resMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(swaps) == 0 {
		return nil
	}

	// swap 与衍生价格同事务落库: 只落一半再崩溃会留下没有价格的 swap，
	// 而检查点没推进，重放时 swap 又会被唯一约束挡掉
	var inserted int64
	err = s.tx.TransactionWithRetry(ctx, s.indexerCfg.MaxRetries, func(txCtx context.Context) error {
		n, err := s.swapRepo.BatchUpsert(txCtx, swaps)
		if err != nil {
			return err
		}
		inserted = n
		_, err = s.priceRepo.BatchUpsert(txCtx, prices)
		return err
	})
	if err != nil {
		return err
	}

	for _, swap := range swaps {
		s.seen.MarkSeen(ctx, cache.SwapKey(swap.TxHash, swap.LogIndex))
	}

	chainLabel := strconv.FormatInt(s.chainCfg.ChainID, 10)
	metrics.SwapsDecodedTotal.WithLabelValues(chainLabel, proto.Tag).Add(float64(len(swaps)))

	if inserted > 0 {
		s.publish(ctx, swaps, prices)
	}

	return nil
}

// decodeSwapBatch 解码一批 swap 日志
//
// 单条解码失败跳过并告警，批次其余部分继续。
func (s *IndexerService) decodeSwapBatch(ctx context.Context, parser protocol.Parser, proto config.ProtocolConfig, logs []types.Log, byKey map[string]*model.Pool) ([]*model.SwapEvent, []*model.PriceCalculation, error) {
	chainLabel := strconv.FormatInt(s.chainCfg.ChainID, 10)

	var swaps []*model.SwapEvent
	var prices []*model.PriceCalculation

	for _, lg := range logs {
		pool := s.matchPool(lg, proto, byKey)
		if pool == nil {
			continue
		}

		ts, err := s.blockTimestamp(ctx, lg.BlockNumber)
		if err != nil {
			return nil, nil, err
		}

		swap, err := parser.ParseSwap(lg, pool, ts)
		if err != nil {
			s.warnDecode(proto.Tag, lg, err)
			metrics.DecodeErrorsTotal.WithLabelValues(chainLabel, proto.Tag).Inc()
			continue
		}

		if s.seen.Seen(ctx, cache.SwapKey(swap.TxHash, swap.LogIndex)) {
			continue
		}

		if calc := s.computeSwapPrice(ctx, swap, pool, proto); calc != nil {
			swap.Price = calc.Price
			prices = append(prices, calc)
		}
		swaps = append(swaps, swap)
	}

	return swaps, prices, nil
}

// matchPool 把日志匹配到已知池
func (s *IndexerService) matchPool(lg types.Log, proto config.ProtocolConfig, byKey map[string]*model.Pool) *model.Pool {
	if proto.Singleton {
		if len(lg.Topics) < 2 {
			return nil
		}
		return byKey[lg.Topics[1].Hex()]
	}
	return byKey[lg.Address.Hex()]
}

// computeSwapPrice 按协议合适的方式为 swap 计算价格
//
// 集中流动性协议用事件自带的 sqrtPriceX96 (tick 定点价)，
// 储备型协议用本次 swap 的进出金额比。token 精度未知或金额为零时
// 不产出价格记录，不算错误。
func (s *IndexerService) computeSwapPrice(ctx context.Context, swap *model.SwapEvent, pool *model.Pool, proto config.ProtocolConfig) *model.PriceCalculation {
	if pool.Token0Address == "" || pool.Token1Address == "" {
		return nil
	}

	dec0, _ := s.tokens.Decimals(ctx, common.HexToAddress(pool.Token0Address))
	dec1, _ := s.tokens.Decimals(ctx, common.HexToAddress(pool.Token1Address))

	var p01str string
	var method model.CalculationMethod

	switch {
	case swap.SqrtPriceX96 != "":
		p01, _, err := s.engine.PriceFromSqrtPriceX96(swap.SqrtPriceX96, dec0, dec1)
		if err != nil {
			return nil
		}
		p01str = p01.String()
		method = model.CalculationMethodTick

	case swap.Amount0 != "" && swap.Amount1 != "":
		a0, ok0 := new(big.Int).SetString(swap.Amount0, 10)
		a1, ok1 := new(big.Int).SetString(swap.Amount1, 10)
		if !ok0 || !ok1 || a0.Sign() == 0 || a1.Sign() == 0 {
			return nil
		}
		// 以本次 swap 的成交比作价: |amount1| / |amount0| 归一化
		p01, _, err := s.engine.PriceFromReserves(
			new(big.Int).Abs(a0).String(),
			new(big.Int).Abs(a1).String(),
			dec0, dec1)
		if err != nil {
			return nil
		}
		p01str = p01.String()
		method = model.CalculationMethodSwap

	default:
		return nil
	}

	return &model.PriceCalculation{
		TxHash:        swap.TxHash,
		PoolAddress:   swap.PoolAddress,
		BlockNumber:   swap.BlockNumber,
		ChainID:       swap.ChainID,
		Price:         p01str,
		Amount0:       swap.Amount0,
		Amount1:       swap.Amount1,
		Token0Address: pool.Token0Address,
		Token1Address: pool.Token1Address,
		Protocol:      proto.Tag,
		FeeTier:       pool.FeeTier,
		Method:        method,
		Timestamp:     swap.BlockTimestamp,
	}
}

// indexLiquidityModifications 拉取并落库流动性变更伴生事件 (单例协议)
func (s *IndexerService) indexLiquidityModifications(ctx context.Context, lp protocol.LiquidityParser, proto config.ProtocolConfig, start, end int64) error {
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(start),
		ToBlock:   big.NewInt(end),
		Addresses: []common.Address{common.HexToAddress(proto.FactoryAddress)},
		Topics:    [][]common.Hash{{common.HexToHash(lp.LiquidityTopic())}},
	})
	if err != nil {
		return err
	}

	chainLabel := strconv.FormatInt(s.chainCfg.ChainID, 10)

	var mods []*model.LiquidityModification
	for _, lg := range logs {
		ts, err := s.blockTimestamp(ctx, lg.BlockNumber)
		if err != nil {
			return err
		}

		mod, err := lp.ParseLiquidityModified(lg, ts)
		if err != nil {
			s.warnDecode(proto.Tag, lg, err)
			metrics.DecodeErrorsTotal.WithLabelValues(chainLabel, proto.Tag).Inc()
			continue
		}
		mod.ChainID = s.chainCfg.ChainID
		mods = append(mods, mod)
	}

	_, err = s.liquidityRepo.BatchUpsertModifications(ctx, mods)
	return err
}

// publish 把新事件投递给下游，投递失败只告警不回滚
func (s *IndexerService) publish(ctx context.Context, swaps []*model.SwapEvent, prices []*model.PriceCalculation) {
	if s.publisher == nil {
		return
	}

	for _, swap := range swaps {
		if err := s.publisher.PublishSwap(ctx, swap); err != nil {
			logger.Warn("failed to publish swap event",
				zap.String("tx_hash", swap.TxHash),
				zap.Error(err))
		}
	}
	for _, p := range prices {
		if err := s.publisher.PublishPriceUpdate(ctx, p); err != nil {
			logger.Warn("failed to publish price update",
				zap.String("pool", p.PoolAddress),
				zap.Error(err))
		}
	}
}

// blockTimestamp 取区块时间戳 (周期内缓存)
func (s *IndexerService) blockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	s.tsMu.Lock()
	if ts, ok := s.tsCache[blockNumber]; ok {
		s.tsMu.Unlock()
		return ts, nil
	}
	s.tsMu.Unlock()

	ts, err := s.client.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		return 0, err
	}

	s.tsMu.Lock()
	s.tsCache[blockNumber] = ts
	s.tsMu.Unlock()
	return ts, nil
}

// warnDecode 解码失败告警，带足定位字段
func (s *IndexerService) warnDecode(tag string, lg types.Log, err error) {
	logger.Warn("skipping undecodable log",
		zap.Int64("chain_id", s.chainCfg.ChainID),
		zap.String("protocol", tag),
		zap.Uint64("block", lg.BlockNumber),
		zap.String("tx_hash", lg.TxHash.Hex()),
		zap.Uint("log_index", lg.Index),
		zap.Error(err))
}
