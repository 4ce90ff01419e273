package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poolscan/poolscan/internal/metrics"
	"github.com/poolscan/poolscan/internal/model"
)

// PriceRepository 价格计算仓储接口
type PriceRepository interface {
	// BatchUpsert 按 (tx_hash, pool_address, block_number) 幂等批量写入
	BatchUpsert(ctx context.Context, prices []*model.PriceCalculation) (int64, error)
	LatestByPool(ctx context.Context, chainID int64, poolAddress string) (*model.PriceCalculation, error)
	ListByPool(ctx context.Context, chainID int64, poolAddress string, page *Pagination) ([]*model.PriceCalculation, error)
}

// priceRepository 价格计算仓储实现
type priceRepository struct {
	*Repository
}

// NewPriceRepository 创建价格计算仓储
func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{Repository: NewRepository(db)}
}

func (r *priceRepository) BatchUpsert(ctx context.Context, prices []*model.PriceCalculation) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	for _, p := range prices {
		if p.CreatedAt == 0 {
			p.CreatedAt = now
		}
	}

	result := r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "pool_address"}, {Name: "block_number"}},
		DoNothing: true,
	}).Create(&prices)
	if result.Error != nil {
		return 0, result.Error
	}

	if skipped := int64(len(prices)) - result.RowsAffected; skipped > 0 {
		metrics.UpsertConflictsTotal.WithLabelValues("price_calculations").Add(float64(skipped))
	}
	return result.RowsAffected, nil
}

func (r *priceRepository) LatestByPool(ctx context.Context, chainID int64, poolAddress string) (*model.PriceCalculation, error) {
	var price model.PriceCalculation
	err := r.DB(ctx).
		Where("chain_id = ? AND pool_address = ?", chainID, poolAddress).
		Order("block_number DESC").
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *priceRepository) ListByPool(ctx context.Context, chainID int64, poolAddress string, page *Pagination) ([]*model.PriceCalculation, error) {
	var prices []*model.PriceCalculation

	query := r.DB(ctx).Model(&model.PriceCalculation{}).
		Where("chain_id = ? AND pool_address = ?", chainID, poolAddress)

	if err := query.Count(&page.Total).Error; err != nil {
		return nil, err
	}

	err := query.
		Order("block_number DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&prices).Error
	return prices, err
}
