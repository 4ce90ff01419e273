// Package lock 提供分布式租约锁
//
// 锁的语义: SetNX 原子抢占，持有者得到一个 Lease，可续期 (Extend) 或
// 释放 (Release)。释放/续期通过 Lua 脚本校验持有者 token，非持有者
// 的操作不会影响锁。未抢到锁不是错误，调用方跳过本轮即可。
// TTL 到期后锁自动失效，崩溃的持有者不会造成死锁。
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockNotHeld 锁未持有 (已过期或被他人持有)
	ErrLockNotHeld = errors.New("lock not held")
)

// Lease 锁租约
type Lease interface {
	// Key 返回锁键
	Key() string
	// Extend 延长租约，只有持有者能成功
	Extend(ctx context.Context, ttl time.Duration) error
	// Release 释放租约，只有持有者能成功
	Release(ctx context.Context) error
}

// Locker 分布式锁管理器
//
// 后端可替换: 生产环境为 Redis，测试可用 miniredis 或内存实现。
type Locker interface {
	// TryAcquire 非阻塞抢占。返回 (lease, true, nil) 表示抢到，
	// (nil, false, nil) 表示已被他人持有。
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}
