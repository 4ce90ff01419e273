package model

// PoolStatus 池状态
type PoolStatus string

const (
	PoolStatusActive PoolStatus = "active"
	PoolStatusPaused PoolStatus = "paused"
	PoolStatusError  PoolStatus = "error"
)

// Pool 流动性池
//
// 自然键 (chain_id, pool_address)。首次解析到池创建事件时写入，
// 状态刷新时更新 state 相关列，从不删除，只标记 paused/error。
// V4 类单例协议没有独立的池合约地址，pool_address 存放不透明的
// 池 id (bytes32 hex)，pool_id 列同时保留原始 id。
// 状态列是协议相关的可选项: 储备型协议只填 reserve0/reserve1，
// 集中流动性协议只填 sqrt_price_x96/tick/liquidity。
type Pool struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID     int64  `gorm:"column:chain_id;type:bigint;uniqueIndex:uidx_pools_chain_addr;not null" json:"chain_id"`
	PoolAddress string `gorm:"column:pool_address;type:varchar(66);uniqueIndex:uidx_pools_chain_addr;not null" json:"pool_address"`
	PoolID      string `gorm:"column:pool_id;type:varchar(66)" json:"pool_id,omitempty"`
	Protocol    string `gorm:"column:protocol;type:varchar(32);index;not null" json:"protocol"`

	Token0Address string `gorm:"column:token0_address;type:varchar(42)" json:"token0_address"`
	Token1Address string `gorm:"column:token1_address;type:varchar(42)" json:"token1_address"`
	// TokenList 逗号分隔的完整 token 列表 (vault 型多币池 2~8 个)
	TokenList string `gorm:"column:token_list;type:text" json:"token_list,omitempty"`

	FactoryAddress string `gorm:"column:factory_address;type:varchar(42)" json:"factory_address"`
	FeeTier        int64  `gorm:"column:fee_tier;type:bigint" json:"fee_tier"`
	TickSpacing    int64  `gorm:"column:tick_spacing;type:bigint" json:"tick_spacing"`
	HooksAddress   string `gorm:"column:hooks_address;type:varchar(42)" json:"hooks_address,omitempty"`

	CreationBlock     int64  `gorm:"column:creation_block;type:bigint;not null" json:"creation_block"`
	CreationTxHash    string `gorm:"column:creation_tx_hash;type:varchar(66)" json:"creation_tx_hash"`
	CreationTimestamp int64  `gorm:"column:creation_timestamp;type:bigint" json:"creation_timestamp"`

	Status           PoolStatus `gorm:"column:status;type:varchar(16);index;not null;default:active" json:"status"`
	LastIndexedBlock int64      `gorm:"column:last_indexed_block;type:bigint" json:"last_indexed_block"`

	// 当前状态 (可选，十进制字符串，协议相关)
	Liquidity    string `gorm:"column:liquidity;type:numeric" json:"liquidity,omitempty"`
	SqrtPriceX96 string `gorm:"column:sqrt_price_x96;type:numeric" json:"sqrt_price_x96,omitempty"`
	Tick         *int64 `gorm:"column:tick;type:bigint" json:"tick,omitempty"`
	Reserve0     string `gorm:"column:reserve0;type:numeric" json:"reserve0,omitempty"`
	Reserve1     string `gorm:"column:reserve1;type:numeric" json:"reserve1,omitempty"`
	Token0Price  string `gorm:"column:token0_price;type:numeric" json:"token0_price,omitempty"`
	Token1Price  string `gorm:"column:token1_price;type:numeric" json:"token1_price,omitempty"`

	StateUpdatedAt int64 `gorm:"column:state_updated_at;type:bigint" json:"state_updated_at"`
	CreatedAt      int64 `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt      int64 `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Pool) TableName() string {
	return "pools"
}
