// Package cache 提供按自然键去重的快路径缓存
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/pkg/logger"
)

// SeenCache 自然键已见缓存
//
// 快路径存在性检查: 已见过的键直接跳过整个写回路。写路径先 Seen
// 再落库，落库成功后才 MarkSeen —— 标记先于持久化会让失败重放的
// 记录被当成已见而永远丢失。权威的唯一性保证仍在持久层的唯一约束
// 上，缓存丢失或进程重启不会产生重复数据，只是多付一次幂等写的开销。
type SeenCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSeenCache 创建已见缓存
func NewSeenCache(client redis.UniversalClient, prefix string, ttl time.Duration) *SeenCache {
	if prefix == "" {
		prefix = "seen"
	}
	return &SeenCache{client: client, prefix: prefix, ttl: ttl}
}

// Seen 检查自然键是否已见，不写入
//
// 缓存故障按未见处理并告警，不阻塞写路径。
func (c *SeenCache) Seen(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, c.prefix+":"+key).Result()
	if err != nil {
		logger.Warn("seen cache unavailable, falling through to store", zap.Error(err))
		return false
	}
	return n > 0
}

// MarkSeen 标记自然键，仅在对应记录持久化成功后调用
//
// 缓存故障只告警: 标记丢失的代价是下轮多付一次幂等写。
func (c *SeenCache) MarkSeen(ctx context.Context, key string) {
	if err := c.client.SetNX(ctx, c.prefix+":"+key, 1, c.ttl).Err(); err != nil {
		logger.Warn("seen cache unavailable, mark skipped", zap.Error(err))
	}
}

// SwapKey 交换事件的自然键
func SwapKey(txHash string, logIndex int) string {
	return fmt.Sprintf("swap:%s:%d", txHash, logIndex)
}

// PoolKey 池的自然键
func PoolKey(chainID int64, poolAddress string) string {
	return fmt.Sprintf("pool:%d:%s", chainID, poolAddress)
}

// LiquidityKey 流动性快照的自然键
func LiquidityKey(poolAddress string, chainID, blockNumber int64) string {
	return fmt.Sprintf("liq:%s:%d:%d", poolAddress, chainID, blockNumber)
}
