package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poolscan/poolscan/internal/model"
)

var ErrPoolNotFound = errors.New("pool not found")

// PoolRepository 流动性池仓储接口
type PoolRepository interface {
	// Upsert 按 (chain_id, pool_address) 幂等写入
	Upsert(ctx context.Context, pool *model.Pool) error
	GetByAddress(ctx context.Context, chainID int64, poolAddress string) (*model.Pool, error)
	ListByProtocol(ctx context.Context, chainID int64, protocol string) ([]*model.Pool, error)
	ListActive(ctx context.Context, chainID int64) ([]*model.Pool, error)
	CountByChain(ctx context.Context, chainID int64) (int64, error)

	// UpdateState 刷新池的链上状态列
	UpdateState(ctx context.Context, pool *model.Pool) error
	UpdateStatus(ctx context.Context, chainID int64, poolAddress string, status model.PoolStatus) error
}

// poolRepository 流动性池仓储实现
type poolRepository struct {
	*Repository
}

// NewPoolRepository 创建流动性池仓储
func NewPoolRepository(db *gorm.DB) PoolRepository {
	return &poolRepository{Repository: NewRepository(db)}
}

func (r *poolRepository) Upsert(ctx context.Context, pool *model.Pool) error {
	now := time.Now().UnixMilli()
	if pool.CreatedAt == 0 {
		pool.CreatedAt = now
	}
	pool.UpdatedAt = now

	// 重放已见区块时覆盖为相同值，不产生重复行
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain_id"}, {Name: "pool_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"pool_id", "token0_address", "token1_address", "token_list",
			"fee_tier", "tick_spacing", "hooks_address",
			"creation_block", "creation_tx_hash", "creation_timestamp",
			"updated_at",
		}),
	}).Create(pool).Error
}

func (r *poolRepository) GetByAddress(ctx context.Context, chainID int64, poolAddress string) (*model.Pool, error) {
	var pool model.Pool
	err := r.DB(ctx).
		Where("chain_id = ? AND pool_address = ?", chainID, poolAddress).
		First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *poolRepository) ListByProtocol(ctx context.Context, chainID int64, protocol string) ([]*model.Pool, error) {
	var pools []*model.Pool
	err := r.DB(ctx).
		Where("chain_id = ? AND protocol = ? AND status = ?", chainID, protocol, model.PoolStatusActive).
		Order("creation_block ASC").
		Find(&pools).Error
	return pools, err
}

func (r *poolRepository) ListActive(ctx context.Context, chainID int64) ([]*model.Pool, error) {
	var pools []*model.Pool
	err := r.DB(ctx).
		Where("chain_id = ? AND status = ?", chainID, model.PoolStatusActive).
		Order("creation_block ASC").
		Find(&pools).Error
	return pools, err
}

func (r *poolRepository) CountByChain(ctx context.Context, chainID int64) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&model.Pool{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}

func (r *poolRepository) UpdateState(ctx context.Context, pool *model.Pool) error {
	now := time.Now().UnixMilli()
	result := r.DB(ctx).Model(&model.Pool{}).
		Where("chain_id = ? AND pool_address = ?", pool.ChainID, pool.PoolAddress).
		Updates(map[string]interface{}{
			"liquidity":          pool.Liquidity,
			"sqrt_price_x96":     pool.SqrtPriceX96,
			"tick":               pool.Tick,
			"reserve0":           pool.Reserve0,
			"reserve1":           pool.Reserve1,
			"token0_price":       pool.Token0Price,
			"token1_price":       pool.Token1Price,
			"token_list":         pool.TokenList,
			"token0_address":     pool.Token0Address,
			"token1_address":     pool.Token1Address,
			"last_indexed_block": pool.LastIndexedBlock,
			"state_updated_at":   now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPoolNotFound
	}
	return nil
}

func (r *poolRepository) UpdateStatus(ctx context.Context, chainID int64, poolAddress string, status model.PoolStatus) error {
	result := r.DB(ctx).Model(&model.Pool{}).
		Where("chain_id = ? AND pool_address = ?", chainID, poolAddress).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPoolNotFound
	}
	return nil
}
