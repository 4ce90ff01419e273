package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript 只有当 key 的值等于持有者 token 时才删除
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// extendScript 只有当 key 的值等于持有者 token 时才延长过期时间
var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLocker Redis 分布式锁管理器
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLocker 创建 Redis 分布式锁管理器
func NewRedisLocker(client redis.UniversalClient, keyPrefix string) *RedisLocker {
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// TryAcquire 非阻塞抢占
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	lease := &redisLease{
		client: l.client,
		key:    l.keyPrefix + key,
		token:  uuid.New().String(),
	}

	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return lease, true, nil
}

// redisLease Redis 锁租约
type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Key() string {
	return l.key
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}
