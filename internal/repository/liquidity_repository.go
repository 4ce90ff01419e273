package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poolscan/poolscan/internal/metrics"
	"github.com/poolscan/poolscan/internal/model"
)

// LiquidityRepository 流动性仓储接口
type LiquidityRepository interface {
	// UpsertSnapshot 按 (pool_address, chain_id, block_number) 幂等写入
	UpsertSnapshot(ctx context.Context, snapshot *model.LiquiditySnapshot) error
	// BatchUpsertModifications 按 (tx_hash, log_index) 幂等批量写入
	BatchUpsertModifications(ctx context.Context, mods []*model.LiquidityModification) (int64, error)
	ListSnapshots(ctx context.Context, chainID int64, poolAddress string, startBlock, endBlock int64) ([]*model.LiquiditySnapshot, error)
	LatestSnapshot(ctx context.Context, chainID int64, poolAddress string) (*model.LiquiditySnapshot, error)
}

// liquidityRepository 流动性仓储实现
type liquidityRepository struct {
	*Repository
}

// NewLiquidityRepository 创建流动性仓储
func NewLiquidityRepository(db *gorm.DB) LiquidityRepository {
	return &liquidityRepository{Repository: NewRepository(db)}
}

func (r *liquidityRepository) UpsertSnapshot(ctx context.Context, snapshot *model.LiquiditySnapshot) error {
	if snapshot.CreatedAt == 0 {
		snapshot.CreatedAt = time.Now().UnixMilli()
	}

	result := r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pool_address"}, {Name: "chain_id"}, {Name: "block_number"}},
		DoNothing: true,
	}).Create(snapshot)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		metrics.UpsertConflictsTotal.WithLabelValues("pool_liquidity").Inc()
	}
	return nil
}

func (r *liquidityRepository) BatchUpsertModifications(ctx context.Context, mods []*model.LiquidityModification) (int64, error) {
	if len(mods) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	for _, m := range mods {
		if m.CreatedAt == 0 {
			m.CreatedAt = now
		}
	}

	result := r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(&mods)
	if result.Error != nil {
		return 0, result.Error
	}

	if skipped := int64(len(mods)) - result.RowsAffected; skipped > 0 {
		metrics.UpsertConflictsTotal.WithLabelValues("liquidity_modifications").Add(float64(skipped))
	}
	return result.RowsAffected, nil
}

func (r *liquidityRepository) ListSnapshots(ctx context.Context, chainID int64, poolAddress string, startBlock, endBlock int64) ([]*model.LiquiditySnapshot, error) {
	var snapshots []*model.LiquiditySnapshot
	err := r.DB(ctx).
		Where("chain_id = ? AND pool_address = ? AND block_number >= ? AND block_number <= ?",
			chainID, poolAddress, startBlock, endBlock).
		Order("block_number ASC").
		Find(&snapshots).Error
	return snapshots, err
}

func (r *liquidityRepository) LatestSnapshot(ctx context.Context, chainID int64, poolAddress string) (*model.LiquiditySnapshot, error) {
	var snapshot model.LiquiditySnapshot
	err := r.DB(ctx).
		Where("chain_id = ? AND pool_address = ?", chainID, poolAddress).
		Order("block_number DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
