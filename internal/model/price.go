package model

// CalculationMethod 价格计算方式
type CalculationMethod string

const (
	CalculationMethodSwap     CalculationMethod = "swap"
	CalculationMethodTick     CalculationMethod = "tick"
	CalculationMethodReserves CalculationMethod = "reserves"
	CalculationMethodState    CalculationMethod = "pool_state"
)

// PriceCalculation 价格计算记录
//
// 自然键 (tx_hash, pool_address, block_number) —— 不能只用 tx_hash:
// 一笔交易可能在多个池 (甚至批处理的多个块) 里产生多次 swap，
// 更窄的键会静默丢记录。
type PriceCalculation struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash      string `gorm:"column:tx_hash;type:varchar(66);uniqueIndex:uidx_price_tx_pool_block;not null" json:"tx_hash"`
	PoolAddress string `gorm:"column:pool_address;type:varchar(66);uniqueIndex:uidx_price_tx_pool_block;not null" json:"pool_address"`
	BlockNumber int64  `gorm:"column:block_number;type:bigint;uniqueIndex:uidx_price_tx_pool_block;not null" json:"block_number"`
	ChainID     int64  `gorm:"column:chain_id;type:bigint;index;not null" json:"chain_id"`

	Price   string `gorm:"column:price;type:numeric;not null" json:"price"`
	Amount0 string `gorm:"column:amount0;type:numeric" json:"amount0,omitempty"`
	Amount1 string `gorm:"column:amount1;type:numeric" json:"amount1,omitempty"`

	Token0Address string `gorm:"column:token0_address;type:varchar(42)" json:"token0_address"`
	Token1Address string `gorm:"column:token1_address;type:varchar(42)" json:"token1_address"`

	Protocol string            `gorm:"column:protocol;type:varchar(32);not null" json:"protocol"`
	FeeTier  int64             `gorm:"column:fee_tier;type:bigint" json:"fee_tier"`
	Method   CalculationMethod `gorm:"column:method;type:varchar(16);not null" json:"method"`

	Timestamp int64 `gorm:"column:timestamp;type:bigint;not null" json:"timestamp"`
	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (PriceCalculation) TableName() string {
	return "price_calculations"
}
