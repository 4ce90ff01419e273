package model

// LiquiditySnapshot 流动性快照
//
// 自然键 (pool_address, chain_id, block_number)，只追加的时间序列。
type LiquiditySnapshot struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PoolAddress string `gorm:"column:pool_address;type:varchar(66);uniqueIndex:uidx_liq_pool_chain_block;not null" json:"pool_address"`
	ChainID     int64  `gorm:"column:chain_id;type:bigint;uniqueIndex:uidx_liq_pool_chain_block;not null" json:"chain_id"`
	BlockNumber int64  `gorm:"column:block_number;type:bigint;uniqueIndex:uidx_liq_pool_chain_block;not null" json:"block_number"`

	TotalLiquidity string `gorm:"column:total_liquidity;type:numeric" json:"total_liquidity,omitempty"`
	Reserve0       string `gorm:"column:reserve0;type:numeric" json:"reserve0,omitempty"`
	Reserve1       string `gorm:"column:reserve1;type:numeric" json:"reserve1,omitempty"`
	Token0Price    string `gorm:"column:token0_price;type:numeric" json:"token0_price,omitempty"`
	Token1Price    string `gorm:"column:token1_price;type:numeric" json:"token1_price,omitempty"`

	BlockTimestamp int64 `gorm:"column:block_timestamp;type:bigint" json:"block_timestamp"`
	CreatedAt      int64 `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (LiquiditySnapshot) TableName() string {
	return "pool_liquidity"
}

// LiquidityModification 流动性变更事件
//
// 单例型协议 (V4) 的 ModifyLiquidity 伴生事件，自然键 (tx_hash, log_index)，
// 只追加。liquidity_delta 带符号，负值表示移除流动性。
type LiquidityModification struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash   string `gorm:"column:tx_hash;type:varchar(66);uniqueIndex:uidx_liqmod_tx_log;not null" json:"tx_hash"`
	LogIndex int    `gorm:"column:log_index;type:int;uniqueIndex:uidx_liqmod_tx_log;not null" json:"log_index"`
	ChainID  int64  `gorm:"column:chain_id;type:bigint;index;not null" json:"chain_id"`
	PoolID   string `gorm:"column:pool_id;type:varchar(66);index;not null" json:"pool_id"`
	Protocol string `gorm:"column:protocol;type:varchar(32);not null" json:"protocol"`

	Sender         string `gorm:"column:sender;type:varchar(42)" json:"sender"`
	TickLower      int64  `gorm:"column:tick_lower;type:bigint" json:"tick_lower"`
	TickUpper      int64  `gorm:"column:tick_upper;type:bigint" json:"tick_upper"`
	LiquidityDelta string `gorm:"column:liquidity_delta;type:numeric" json:"liquidity_delta"`
	Salt           string `gorm:"column:salt;type:varchar(66)" json:"salt,omitempty"`

	BlockNumber    int64 `gorm:"column:block_number;type:bigint;index;not null" json:"block_number"`
	BlockTimestamp int64 `gorm:"column:block_timestamp;type:bigint" json:"block_timestamp"`
	CreatedAt      int64 `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (LiquidityModification) TableName() string {
	return "liquidity_modifications"
}
