package service

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/internal/model"
	"github.com/poolscan/poolscan/internal/protocol"
	"github.com/poolscan/poolscan/internal/repository"
)

// stubStateParser 固定读数的协议实现
type stubStateParser struct {
	delta *protocol.StateDelta
}

func (p *stubStateParser) Protocol() string { return "stub" }

func (p *stubStateParser) ParsePoolCreated(types.Log, uint64) (*model.Pool, error) {
	return nil, nil
}

func (p *stubStateParser) ParseSwap(types.Log, *model.Pool, uint64) (*model.SwapEvent, error) {
	return nil, nil
}

func (p *stubStateParser) FetchState(ctx context.Context, client *blockchain.Client, pool *model.Pool) (*protocol.StateDelta, error) {
	return p.delta, nil
}

// capturePoolRepo 记录最后一次状态更新
type capturePoolRepo struct {
	repository.PoolRepository
	updated *model.Pool
}

func (r *capturePoolRepo) UpdateState(ctx context.Context, pool *model.Pool) error {
	r.updated = pool
	return nil
}

// captureLiquidityRepo 记录写入的快照
type captureLiquidityRepo struct {
	repository.LiquidityRepository
	snapshots []*model.LiquiditySnapshot
}

func (r *captureLiquidityRepo) UpsertSnapshot(ctx context.Context, snapshot *model.LiquiditySnapshot) error {
	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

// TestRefreshPool_SnapshotUsesChainTimestamp 测试快照携带链上区块时间
//
// 快照的 block_timestamp 必须是头块的链上时间而不是机器本地时间，
// 否则补追历史区块时快照时间轴和事件时间轴对不上。
func TestRefreshPool_SnapshotUsesChainTimestamp(t *testing.T) {
	registry := protocol.NewRegistry()
	registry.Register(&stubStateParser{delta: &protocol.StateDelta{Reserves: []string{"10", "20"}}})

	poolRepo := &capturePoolRepo{}
	liquidityRepo := &captureLiquidityRepo{}

	s := &StateService{
		registry:      registry,
		seen:          newSeenCache(t),
		poolRepo:      poolRepo,
		liquidityRepo: liquidityRepo,
		chainCfg:      config.ChainConfig{ChainID: 1},
	}

	pool := &model.Pool{ChainID: 1, PoolAddress: "0xpool", Protocol: "stub"}
	ctx := context.Background()

	require.NoError(t, s.refreshPool(ctx, pool, 500, 1700000042))
	require.Len(t, liquidityRepo.snapshots, 1)

	snap := liquidityRepo.snapshots[0]
	assert.Equal(t, int64(500), snap.BlockNumber)
	assert.Equal(t, int64(1700000042), snap.BlockTimestamp)
	assert.Equal(t, "10", snap.Reserve0)
	assert.Equal(t, "20", snap.Reserve1)
	assert.Equal(t, int64(500), pool.LastIndexedBlock)
	require.NotNil(t, poolRepo.updated)

	// 同一头块重复刷新: 快照已标记，不追加第二条
	require.NoError(t, s.refreshPool(ctx, pool, 500, 1700000042))
	assert.Len(t, liquidityRepo.snapshots, 1)

	// 新头块产出新快照
	require.NoError(t, s.refreshPool(ctx, pool, 501, 1700000054))
	require.Len(t, liquidityRepo.snapshots, 2)
	assert.Equal(t, int64(1700000054), liquidityRepo.snapshots[1].BlockTimestamp)
}
