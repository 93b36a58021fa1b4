package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
)

// RetryFunc 可重试的函数类型
type RetryFunc func() error

// maxBackoff 单次退避上限
const maxBackoff = 30 * time.Second

// retry 执行带指数退避的重试
func retry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn RetryFunc) error {
	r := RetryWithCallback{MaxRetries: maxRetries, BaseDelay: baseDelay}
	return r.Do(ctx, fn)
}

// calculateBackoff 计算指数退避时间
// 使用公式: baseDelay * 2^attempt + [0, 10%) jitter
// 最大延迟限制为 30 秒
func calculateBackoff(attempt int, baseDelay time.Duration) time.Duration {
	exp := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(baseDelay) * exp)

	if delay > 0 {
		delay += time.Duration(rand.Int64N(int64(delay)/10 + 1))
	}

	if delay > maxBackoff {
		delay = maxBackoff
	}

	return delay
}

// RetryWithCallback 带回调的重试
//
// Bedrock 的 ThrottlingException 在映射为 ErrRateLimited 后走这里重试，
// OnRetry 用于记录重试日志或指标。
type RetryWithCallback struct {
	MaxRetries int
	BaseDelay  time.Duration
	OnRetry    func(attempt int, err error)
}

// Do 执行带回调的重试
func (r *RetryWithCallback) Do(ctx context.Context, fn RetryFunc) error {
	var lastErr error

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return errors.ErrContextCanceled
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !errors.IsRetryable(err) {
			return err
		}

		if attempt == r.MaxRetries {
			break
		}

		if r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}

		timer := time.NewTimer(calculateBackoff(attempt, r.BaseDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.ErrContextCanceled
		case <-timer.C:
		}
	}

	return lastErr
}
