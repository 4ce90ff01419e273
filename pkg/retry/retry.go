// Package retry 提供统一的指数退避重试策略
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy 重试策略
//
// MaxAttempts 是总尝试次数 (含首次)，BaseDelay 按 2^n 指数增长，
// Jitter 开启后在每次延迟上叠加 [0, delay/2) 的随机抖动，
// 避免多实例同时重试造成的雪崩。
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Delay 返回第 attempt 次失败后的等待时间 (attempt 从 0 开始)
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	}
	return delay
}

// Do 按策略执行 fn，全部失败后返回最后一次的错误
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
