package model

// Token 代币元数据
//
// 只记录地址和精度。symbol/name 在链上经常取不到或取到垃圾值，
// 且下游计算完全不依赖它们，刻意不建列，省掉每个 token 一半的链上调用。
// decimals 取不到时回退 18。
type Token struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID  int64  `gorm:"column:chain_id;type:bigint;uniqueIndex:uidx_tokens_chain_addr;not null" json:"chain_id"`
	Address  string `gorm:"column:address;type:varchar(42);uniqueIndex:uidx_tokens_chain_addr;not null" json:"address"`
	Decimals uint8  `gorm:"column:decimals;type:smallint;not null;default:18" json:"decimals"`

	TotalSupply string `gorm:"column:total_supply;type:numeric" json:"total_supply,omitempty"`
	Verified    bool   `gorm:"column:verified;type:boolean;not null;default:false" json:"verified"`

	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt int64 `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Token) TableName() string {
	return "tokens"
}
