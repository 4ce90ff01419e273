package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*SeenCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSeenCache(client, "seen", time.Minute), mr
}

func TestSeenAfterMark(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := SwapKey("0xabc", 3)
	assert.False(t, c.Seen(ctx, key), "unmarked key must report unseen")

	c.MarkSeen(ctx, key)
	assert.True(t, c.Seen(ctx, key), "marked key must report seen")
	assert.False(t, c.Seen(ctx, SwapKey("0xabc", 4)), "different log index is a different key")
}

func TestSeenDoesNotMark(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// 只读检查不能把键写进缓存: 落库失败的记录重放时必须还能通过
	key := PoolKey(1, "0xdead")
	require.False(t, c.Seen(ctx, key))
	assert.False(t, c.Seen(ctx, key), "repeated read must still report unseen")
}

func TestSeenExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key := PoolKey(1, "0xdead")
	c.MarkSeen(ctx, key)
	require.True(t, c.Seen(ctx, key))

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Seen(ctx, key), "expired key must report unseen again")
}

func TestSeenBackendDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	// 缓存不可用按未见处理，写路径落到持久层约束上
	assert.False(t, c.Seen(context.Background(), LiquidityKey("0xpool", 1, 100)))
	c.MarkSeen(context.Background(), LiquidityKey("0xpool", 1, 100))
}
