package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poolscan/poolscan/internal/model"
)

var ErrProgressNotFound = errors.New("indexer progress not found")

// ProgressRepository 索引进度仓储接口
//
// 每个 (chain_id, indexer_type, pool_address) 一条进度流，
// pool_address 为空串表示协议级进度。
type ProgressRepository interface {
	Get(ctx context.Context, chainID int64, indexerType, poolAddress string) (*model.IndexerProgress, error)
	// Advance 推进检查点，只进不退: 并发重放时取较大值
	Advance(ctx context.Context, chainID int64, indexerType, poolAddress string, processedBlock int64) error
	SetStatus(ctx context.Context, chainID int64, indexerType, poolAddress string, status model.ProgressStatus, errMsg string) error
	// Reset 清除进度流，下个周期从协议创建块重新开始
	Reset(ctx context.Context, chainID int64, indexerType string) error
	ListByChain(ctx context.Context, chainID int64) ([]*model.IndexerProgress, error)
}

// progressRepository 索引进度仓储实现
type progressRepository struct {
	*Repository
}

// NewProgressRepository 创建索引进度仓储
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{Repository: NewRepository(db)}
}

func (r *progressRepository) Get(ctx context.Context, chainID int64, indexerType, poolAddress string) (*model.IndexerProgress, error) {
	var progress model.IndexerProgress
	err := r.DB(ctx).
		Where("chain_id = ? AND indexer_type = ? AND pool_address = ?", chainID, indexerType, poolAddress).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *progressRepository) Advance(ctx context.Context, chainID int64, indexerType, poolAddress string, processedBlock int64) error {
	now := time.Now().UnixMilli()
	progress := &model.IndexerProgress{
		ChainID:            chainID,
		IndexerType:        indexerType,
		PoolAddress:        poolAddress,
		LastProcessedBlock: processedBlock,
		Status:             model.ProgressStatusRunning,
		StartedAt:          now,
		UpdatedAt:          now,
	}

	// GREATEST 保证检查点只前进，落后的写入者不会回拨进度
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain_id"}, {Name: "indexer_type"}, {Name: "pool_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_processed_block": gorm.Expr("GREATEST(indexer_progress.last_processed_block, ?)", processedBlock),
			"status":               model.ProgressStatusRunning,
			"error_message":        "",
			"updated_at":           now,
		}),
	}).Create(progress).Error
}

func (r *progressRepository) SetStatus(ctx context.Context, chainID int64, indexerType, poolAddress string, status model.ProgressStatus, errMsg string) error {
	result := r.DB(ctx).Model(&model.IndexerProgress{}).
		Where("chain_id = ? AND indexer_type = ? AND pool_address = ?", chainID, indexerType, poolAddress).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
			"updated_at":    time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProgressNotFound
	}
	return nil
}

func (r *progressRepository) Reset(ctx context.Context, chainID int64, indexerType string) error {
	return r.DB(ctx).
		Where("chain_id = ? AND indexer_type = ?", chainID, indexerType).
		Delete(&model.IndexerProgress{}).Error
}

func (r *progressRepository) ListByChain(ctx context.Context, chainID int64) ([]*model.IndexerProgress, error) {
	var streams []*model.IndexerProgress
	err := r.DB(ctx).
		Where("chain_id = ?", chainID).
		Order("indexer_type ASC, pool_address ASC").
		Find(&streams).Error
	return streams, err
}
