package app

import (
	"gorm.io/gorm"

	"github.com/poolscan/poolscan/internal/model"
)

// AutoMigrate 自动执行数据库迁移
//
// 所有表都带自然键唯一索引，迁移只增列不改列，重放安全。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Pool{},
		&model.Token{},
		&model.SwapEvent{},
		&model.LiquiditySnapshot{},
		&model.LiquidityModification{},
		&model.PriceCalculation{},
		&model.IndexerProgress{},
	)
}
