package model

// SwapEvent 交换事件
//
// 自然键 (tx_hash, log_index)，只追加，写入后不可变。
// amount0/amount1 是带符号的原始数值 (集中流动性协议)，
// amount_in/amount_out 是无符号的进出数值 (储备型协议)，
// 均为十进制字符串。
type SwapEvent struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash      string `gorm:"column:tx_hash;type:varchar(66);uniqueIndex:uidx_swaps_tx_log;not null" json:"tx_hash"`
	LogIndex    int    `gorm:"column:log_index;type:int;uniqueIndex:uidx_swaps_tx_log;not null" json:"log_index"`
	ChainID     int64  `gorm:"column:chain_id;type:bigint;index;not null" json:"chain_id"`
	PoolAddress string `gorm:"column:pool_address;type:varchar(66);index;not null" json:"pool_address"`
	Protocol    string `gorm:"column:protocol;type:varchar(32);not null" json:"protocol"`

	BlockNumber    int64 `gorm:"column:block_number;type:bigint;index;not null" json:"block_number"`
	BlockTimestamp int64 `gorm:"column:block_timestamp;type:bigint;not null" json:"block_timestamp"`

	Sender    string `gorm:"column:sender;type:varchar(42)" json:"sender"`
	Recipient string `gorm:"column:recipient;type:varchar(42)" json:"recipient"`

	// vault 型协议的 swap 按 token 地址对表达
	TokenInAddress  string `gorm:"column:token_in_address;type:varchar(42)" json:"token_in_address,omitempty"`
	TokenOutAddress string `gorm:"column:token_out_address;type:varchar(42)" json:"token_out_address,omitempty"`

	Amount0   string `gorm:"column:amount0;type:numeric" json:"amount0,omitempty"`
	Amount1   string `gorm:"column:amount1;type:numeric" json:"amount1,omitempty"`
	AmountIn  string `gorm:"column:amount_in;type:numeric" json:"amount_in,omitempty"`
	AmountOut string `gorm:"column:amount_out;type:numeric" json:"amount_out,omitempty"`

	// 集中流动性协议的 swap 事件携带的瞬时状态
	SqrtPriceX96 string `gorm:"column:sqrt_price_x96;type:numeric" json:"sqrt_price_x96,omitempty"`
	Liquidity    string `gorm:"column:liquidity;type:numeric" json:"liquidity,omitempty"`
	Tick         *int64 `gorm:"column:tick;type:bigint" json:"tick,omitempty"`

	// 稳定币池的 token 索引对
	SoldID   *int64 `gorm:"column:sold_id;type:bigint" json:"sold_id,omitempty"`
	BoughtID *int64 `gorm:"column:bought_id;type:bigint" json:"bought_id,omitempty"`

	Price    string `gorm:"column:price;type:numeric" json:"price,omitempty"`
	USDValue string `gorm:"column:usd_value;type:numeric" json:"usd_value,omitempty"`
	GasUsed  *int64 `gorm:"column:gas_used;type:bigint" json:"gas_used,omitempty"`

	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (SwapEvent) TableName() string {
	return "swap_events"
}
