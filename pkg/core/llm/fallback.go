package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FallbackProvider 带备用降级的提供商
//
// 主提供商失败后依次尝试备用提供商，失败的提供商在 checkInterval 内被跳过。
type FallbackProvider struct {
	primary   Provider
	fallbacks []Provider
	logger    *slog.Logger
	mu        sync.RWMutex
	// 健康状态跟踪
	healthStatus  map[Provider]bool
	lastCheck     map[Provider]time.Time
	checkInterval time.Duration
}

// FallbackOption 备用提供商选项
type FallbackOption func(*FallbackProvider)

// WithFallbackCheckInterval 设置健康检查间隔
func WithFallbackCheckInterval(interval time.Duration) FallbackOption {
	return func(f *FallbackProvider) {
		f.checkInterval = interval
	}
}

// WithFallbackLogger 设置日志
func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(f *FallbackProvider) {
		f.logger = logger
	}
}

// NewFallbackProvider 创建带备用的提供商
func NewFallbackProvider(primary Provider, fallbacks []Provider, opts ...FallbackOption) *FallbackProvider {
	f := &FallbackProvider{
		primary:       primary,
		fallbacks:     fallbacks,
		logger:        slog.Default(),
		healthStatus:  make(map[Provider]bool),
		lastCheck:     make(map[Provider]time.Time),
		checkInterval: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Generate 生成响应（非流式）
func (f *FallbackProvider) Generate(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for _, provider := range f.getAvailableProviders() {
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			f.markHealthy(provider)
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, err
		}

		lastErr = err
		f.markUnhealthy(provider)
		f.logger.Warn("provider failed, trying fallback",
			"provider", provider.Name(),
			"model", provider.Model(),
			"error", err,
		)
	}

	return Response{}, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// GenerateStream 生成响应（流式）
//
// 只有在收到第一个内容块之前出错才会降级，已经输出的内容不会重放。
func (f *FallbackProvider) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	outChunkCh := make(chan StreamChunk)
	outErrCh := make(chan error, 1)

	go func() {
		defer close(outChunkCh)
		defer close(outErrCh)

		var lastErr error
		for _, provider := range f.getAvailableProviders() {
			received, err := f.forward(ctx, provider, req, outChunkCh)
			if err == nil {
				f.markHealthy(provider)
				return
			}
			if received || ctx.Err() != nil {
				outErrCh <- err
				return
			}

			lastErr = err
			f.markUnhealthy(provider)
			f.logger.Warn("stream provider failed, trying fallback",
				"provider", provider.Name(),
				"error", err,
			)
		}
		outErrCh <- fmt.Errorf("all providers failed, last error: %w", lastErr)
	}()

	return outChunkCh, outErrCh
}

// forward 转发单个提供商的流，返回是否已向下游发送过内容
func (f *FallbackProvider) forward(ctx context.Context, provider Provider, req Request, out chan<- StreamChunk) (bool, error) {
	chunkCh, errCh := provider.GenerateStream(ctx, req)
	received := false

	for chunk := range chunkCh {
		received = true
		select {
		case out <- chunk:
		case <-ctx.Done():
			// 排空上游，避免其 goroutine 阻塞
			go drain(chunkCh, errCh)
			return received, ctx.Err()
		}
	}
	if err := <-errCh; err != nil {
		return received, err
	}
	return received, nil
}

func drain(chunkCh <-chan StreamChunk, errCh <-chan error) {
	for range chunkCh {
	}
	for range errCh {
	}
}

// Name 返回提供商名称
func (f *FallbackProvider) Name() string {
	return fmt.Sprintf("fallback(%s)", f.primary.Name())
}

// Model 返回当前模型名称
func (f *FallbackProvider) Model() string {
	return f.primary.Model()
}

// Close 关闭所有客户端连接
func (f *FallbackProvider) Close() error {
	var firstErr error

	if err := f.primary.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	for _, fb := range f.fallbacks {
		if err := fb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// getAvailableProviders 获取可用的提供商列表
func (f *FallbackProvider) getAvailableProviders() []Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()

	all := append([]Provider{f.primary}, f.fallbacks...)
	providers := make([]Provider, 0, len(all))

	// 优先添加健康的提供商
	for _, p := range all {
		if f.isHealthy(p) {
			providers = append(providers, p)
		}
	}

	// 如果所有提供商都不健康，仍然尝试所有
	if len(providers) == 0 {
		return all
	}

	return providers
}

// isHealthy 检查提供商是否健康，调用方持有读锁
func (f *FallbackProvider) isHealthy(provider Provider) bool {
	healthy, ok := f.healthStatus[provider]
	if !ok || healthy {
		return true
	}

	// 不健康超过检查间隔后允许重试
	lastCheck, ok := f.lastCheck[provider]
	return ok && time.Since(lastCheck) > f.checkInterval
}

// markHealthy 标记提供商为健康
func (f *FallbackProvider) markHealthy(provider Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthStatus[provider] = true
	f.lastCheck[provider] = time.Now()
}

// markUnhealthy 标记提供商为不健康
func (f *FallbackProvider) markUnhealthy(provider Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthStatus[provider] = false
	f.lastCheck[provider] = time.Now()
}

// compile-time interface check
var _ Provider = (*FallbackProvider)(nil)
