package model

// ProgressStatus 索引进度状态
type ProgressStatus string

const (
	ProgressStatusRunning ProgressStatus = "running"
	ProgressStatusIdle    ProgressStatus = "idle"
	ProgressStatusError   ProgressStatus = "error"
)

// IndexerProgress 索引进度检查点
//
// 自然键 (chain_id, indexer_type, pool_address)，每个逻辑进度流一行，
// 每个处理周期 upsert 一次。pool_address 为空串表示协议级进度流。
// last_processed_block 只会前进，持久化成功之后才推进
// (write-then-checkpoint)，崩溃只会导致幂等范围的安全重放。
type IndexerProgress struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID     int64  `gorm:"column:chain_id;type:bigint;uniqueIndex:uidx_progress_stream;not null" json:"chain_id"`
	IndexerType string `gorm:"column:indexer_type;type:varchar(64);uniqueIndex:uidx_progress_stream;not null" json:"indexer_type"`
	PoolAddress string `gorm:"column:pool_address;type:varchar(66);uniqueIndex:uidx_progress_stream;not null;default:''" json:"pool_address,omitempty"`

	LastProcessedBlock int64 `gorm:"column:last_processed_block;type:bigint;not null" json:"last_processed_block"`
	TargetBlock        int64 `gorm:"column:target_block;type:bigint" json:"target_block"`

	Status       ProgressStatus `gorm:"column:status;type:varchar(16);not null;default:idle" json:"status"`
	ErrorMessage string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	StartedAt int64 `gorm:"column:started_at;type:bigint" json:"started_at"`
	UpdatedAt int64 `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (IndexerProgress) TableName() string {
	return "indexer_progress"
}
