package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// TracedProvider 为 LLM Provider 增加追踪与指标
type TracedProvider struct {
	provider llm.Provider
	tracer   Tracer
	metrics  Metrics
}

// TracedProviderOption 配置 TracedProvider
type TracedProviderOption func(*TracedProvider)

// WithTracedProviderTracer 设置追踪器
func WithTracedProviderTracer(tracer Tracer) TracedProviderOption {
	return func(p *TracedProvider) {
		p.tracer = tracer
	}
}

// WithTracedProviderMetrics 设置指标
func WithTracedProviderMetrics(metrics Metrics) TracedProviderOption {
	return func(p *TracedProvider) {
		p.metrics = metrics
	}
}

// NewTracedProvider 包装 LLM Provider
func NewTracedProvider(provider llm.Provider, opts ...TracedProviderOption) *TracedProvider {
	tp := &TracedProvider{
		provider: provider,
		tracer:   NewNoopTracer(),
		metrics:  NewNoopMetrics(),
	}

	for _, opt := range opts {
		opt(tp)
	}

	return tp
}

// Generate 生成响应并记录 Span
func (p *TracedProvider) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	ctx, span := p.tracer.Start(ctx, "llm.generate",
		WithSpanKind(SpanKindClient),
		WithAttributes(
			LLMProvider(p.provider.Name()),
			LLMModel(p.provider.Model()),
		),
	)
	defer span.End()

	startTime := time.Now()
	resp, err := p.provider.Generate(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		p.recordFailure(ctx, duration)
		span.Fail(err)
		return resp, err
	}

	p.recordSuccess(ctx, resp.TokenUsage, duration)
	span.SetAttributes(usageAttrs(resp.TokenUsage)...)
	if resp.ID != "" {
		span.SetAttributes(attribute.String(AttrLLMRequestID, resp.ID))
	}
	span.AddEvent("llm.response",
		attribute.String("finish_reason", resp.FinishReason),
		attribute.String("stop_reason", resp.StopReason),
	)
	span.SetStatus(StatusOK, "")

	return resp, nil
}

// GenerateStream 流式生成并记录 Span
//
// Span 在上游通道关闭或出错时结束。
func (p *TracedProvider) GenerateStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, <-chan error) {
	ctx, span := p.tracer.Start(ctx, "llm.generate_stream",
		WithSpanKind(SpanKindClient),
		WithAttributes(
			LLMProvider(p.provider.Name()),
			LLMModel(p.provider.Model()),
		),
	)

	chunkCh, errCh := p.provider.GenerateStream(ctx, req)

	tracedChunkCh := make(chan llm.StreamChunk)
	tracedErrCh := make(chan error, 1)

	go func() {
		defer close(tracedChunkCh)
		defer close(tracedErrCh)
		defer span.End()

		startTime := time.Now()
		var usage *message.TokenUsage

		fail := func(err error) {
			span.Fail(err)
			p.recordFailure(ctx, time.Since(startTime))
			tracedErrCh <- err
		}

		for chunkCh != nil || errCh != nil {
			select {
			case chunk, ok := <-chunkCh:
				if !ok {
					chunkCh = nil
					continue
				}
				if chunk.TokenUsage != nil {
					usage = chunk.TokenUsage
				}
				select {
				case tracedChunkCh <- chunk:
				case <-ctx.Done():
					fail(ctx.Err())
					return
				}

			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					fail(err)
					return
				}
			}
		}

		var u message.TokenUsage
		if usage != nil {
			u = *usage
		}
		p.recordSuccess(ctx, u, time.Since(startTime))
		span.SetAttributes(usageAttrs(u)...)
		span.SetStatus(StatusOK, "")
	}()

	return tracedChunkCh, tracedErrCh
}

// Name 返回提供商名称
func (p *TracedProvider) Name() string {
	return p.provider.Name()
}

// Model 返回模型名称
func (p *TracedProvider) Model() string {
	return p.provider.Model()
}

// Close 关闭底层提供商
func (p *TracedProvider) Close() error {
	return p.provider.Close()
}

// Unwrap 返回被包装的提供商
func (p *TracedProvider) Unwrap() llm.Provider {
	return p.provider
}

func usageAttrs(u message.TokenUsage) []attribute.KeyValue {
	attrs := LLMTokens(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	return append(attrs, LLMCacheTokens(u.CacheReadTokens, u.CacheWriteTokens)...)
}

func (p *TracedProvider) labels() []Attr {
	return []Attr{
		NewAttr("provider", p.provider.Name()),
		NewAttr("model", p.provider.Model()),
	}
}

func (p *TracedProvider) recordSuccess(ctx context.Context, u message.TokenUsage, duration time.Duration) {
	labels := p.labels()
	p.metrics.Counter(MetricLLMRequests).Add(ctx, 1, append(labels, NewAttr("status", "success"))...)
	p.metrics.Counter(MetricLLMTokensPrompt).Add(ctx, int64(u.PromptTokens), labels...)
	p.metrics.Counter(MetricLLMTokensCompletion).Add(ctx, int64(u.CompletionTokens), labels...)
	p.metrics.Counter(MetricLLMTokensTotal).Add(ctx, int64(u.TotalTokens), labels...)
	p.metrics.Counter(MetricLLMTokensCacheRead).Add(ctx, int64(u.CacheReadTokens), labels...)
	p.metrics.Counter(MetricLLMTokensCacheWrite).Add(ctx, int64(u.CacheWriteTokens), labels...)
	p.metrics.Histogram(MetricLLMRequestDuration).Record(ctx, float64(duration.Milliseconds()), labels...)
}

func (p *TracedProvider) recordFailure(ctx context.Context, duration time.Duration) {
	labels := p.labels()
	p.metrics.Counter(MetricLLMRequests).Add(ctx, 1, append(labels, NewAttr("status", "error"))...)
	p.metrics.Counter(MetricLLMErrors).Add(ctx, 1, labels...)
	p.metrics.Histogram(MetricLLMRequestDuration).Record(ctx, float64(duration.Milliseconds()), labels...)
}

// compile-time interface check
var _ llm.Provider = (*TracedProvider)(nil)
