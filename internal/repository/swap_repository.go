package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poolscan/poolscan/internal/metrics"
	"github.com/poolscan/poolscan/internal/model"
)

var ErrSwapNotFound = errors.New("swap event not found")

// SwapRepository 交换事件仓储接口
type SwapRepository interface {
	// BatchUpsert 按 (tx_hash, log_index) 幂等批量写入，返回新插入条数
	BatchUpsert(ctx context.Context, swaps []*model.SwapEvent) (int64, error)
	GetByTxHashAndLogIndex(ctx context.Context, txHash string, logIndex int) (*model.SwapEvent, error)
	ListByPool(ctx context.Context, chainID int64, poolAddress string, page *Pagination) ([]*model.SwapEvent, error)
	ListByBlockRange(ctx context.Context, chainID, startBlock, endBlock int64) ([]*model.SwapEvent, error)
	CountByChain(ctx context.Context, chainID int64) (int64, error)
}

// swapRepository 交换事件仓储实现
type swapRepository struct {
	*Repository
}

// NewSwapRepository 创建交换事件仓储
func NewSwapRepository(db *gorm.DB) SwapRepository {
	return &swapRepository{Repository: NewRepository(db)}
}

func (r *swapRepository) BatchUpsert(ctx context.Context, swaps []*model.SwapEvent) (int64, error) {
	if len(swaps) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	for _, s := range swaps {
		if s.CreatedAt == 0 {
			s.CreatedAt = now
		}
	}

	// 事件写入后不可变，冲突即重放，DoNothing
	result := r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(&swaps)
	if result.Error != nil {
		return 0, result.Error
	}

	if skipped := int64(len(swaps)) - result.RowsAffected; skipped > 0 {
		metrics.UpsertConflictsTotal.WithLabelValues("swap_events").Add(float64(skipped))
	}
	return result.RowsAffected, nil
}

func (r *swapRepository) GetByTxHashAndLogIndex(ctx context.Context, txHash string, logIndex int) (*model.SwapEvent, error) {
	var swap model.SwapEvent
	err := r.DB(ctx).
		Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
		First(&swap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSwapNotFound
	}
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

func (r *swapRepository) ListByPool(ctx context.Context, chainID int64, poolAddress string, page *Pagination) ([]*model.SwapEvent, error) {
	var swaps []*model.SwapEvent

	query := r.DB(ctx).Model(&model.SwapEvent{}).
		Where("chain_id = ? AND pool_address = ?", chainID, poolAddress)

	if err := query.Count(&page.Total).Error; err != nil {
		return nil, err
	}

	err := query.
		Order("block_number DESC, log_index DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&swaps).Error
	return swaps, err
}

func (r *swapRepository) ListByBlockRange(ctx context.Context, chainID, startBlock, endBlock int64) ([]*model.SwapEvent, error) {
	var swaps []*model.SwapEvent
	err := r.DB(ctx).
		Where("chain_id = ? AND block_number >= ? AND block_number <= ?", chainID, startBlock, endBlock).
		Order("block_number ASC, log_index ASC").
		Find(&swaps).Error
	return swaps, err
}

func (r *swapRepository) CountByChain(ctx context.Context, chainID int64) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&model.SwapEvent{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}
