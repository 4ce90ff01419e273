package blockchain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/pkg/logger"
)

// DefaultTokenDecimals decimals 取不到时的回退值
const DefaultTokenDecimals uint8 = 18

// TokenCache 代币精度缓存
//
// 显式对象，构造一次后传引用给需要的组件。TTL/淘汰是实例属性。
// decimals 链上查询失败时回退 18 并缓存较短时间，避免反复打 RPC。
type TokenCache struct {
	client *Client
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[common.Address]tokenEntry
}

type tokenEntry struct {
	decimals  uint8
	resolved  bool // false 表示回退值
	expiresAt time.Time
}

// NewTokenCache 创建代币精度缓存
func NewTokenCache(client *Client, ttl time.Duration) *TokenCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenCache{
		client:  client,
		ttl:     ttl,
		entries: make(map[common.Address]tokenEntry),
	}
}

// Decimals 获取代币精度，失败回退 18
//
// 返回的 bool 表示精度是否来自链上 (false = 回退值)。
func (c *TokenCache) Decimals(ctx context.Context, token common.Address) (uint8, bool) {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.decimals, entry.resolved
	}

	decimals, err := c.client.TokenDecimals(ctx, token)
	resolved := err == nil
	ttl := c.ttl
	if err != nil {
		decimals = DefaultTokenDecimals
		// 失败的回退值缓存较短时间，下次状态刷新时重试
		ttl = 5 * time.Minute
		logger.Warn("token decimals lookup failed, falling back to 18",
			zap.Int64("chain_id", c.client.ChainID()),
			zap.String("token", token.Hex()),
			zap.Error(err))
	}

	c.mu.Lock()
	c.entries[token] = tokenEntry{
		decimals:  decimals,
		resolved:  resolved,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	return decimals, resolved
}

// Len 返回缓存条目数
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge 清理过期条目
func (c *TokenCache) Purge() {
	now := time.Now()
	c.mu.Lock()
	for addr, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, addr)
		}
	}
	c.mu.Unlock()
}

// String 调试输出
func (c *TokenCache) String() string {
	return fmt.Sprintf("TokenCache{chain=%d, entries=%d}", c.client.ChainID(), c.Len())
}
