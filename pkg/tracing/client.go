package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// InstrumentationName Span 的 instrumentation scope 名称
const InstrumentationName = "github.com/easyops/bedrock-agent-go/pkg/tracing"

// flusher 可强制导出的 TracerProvider
type flusher interface {
	ForceFlush(ctx context.Context) error
}

// Client 进程级追踪客户端
//
// 持有 OTel tracer、flush 能力、评分接收方与成本计算器，所有 Tracer 共享。
type Client struct {
	tracer  trace.Tracer
	flusher flusher
	scores  ScoreSink
	costs   *CostCalculator
	logger  otel.Logger
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithScoreSink 设置评分接收方，nil 时保留默认
func WithScoreSink(sink ScoreSink) ClientOption {
	return func(c *Client) {
		if sink != nil {
			c.scores = sink
		}
	}
}

// WithCostCalculator 设置成本计算器，nil 时保留默认
func WithCostCalculator(calc *CostCalculator) ClientOption {
	return func(c *Client) {
		if calc != nil {
			c.costs = calc
		}
	}
}

// WithLogger 设置日志器，nil 时保留默认
func WithLogger(logger otel.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient 基于 TracerProvider 创建客户端
func NewClient(tp trace.TracerProvider, opts ...ClientOption) *Client {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	c := &Client{
		tracer: tp.Tracer(InstrumentationName),
		scores: NoopScoreSink{},
		costs:  NewCostCalculator(),
		logger: otel.NewNoopLogger(),
	}
	if f, ok := tp.(flusher); ok {
		c.flusher = f
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromProvider 基于可观测性提供者创建客户端
//
// 配置了 Langfuse 密钥时评分写入 Langfuse，否则丢弃。
func NewClientFromProvider(p *otel.Provider, opts ...ClientOption) *Client {
	base := []ClientOption{WithLogger(p.Logger())}
	lf := p.Config().Tracing.Langfuse
	if sink, err := NewLangfuseScoreClient(lf, &http.Client{Timeout: p.Config().Tracing.Timeout}); err == nil {
		base = append(base, WithScoreSink(sink))
	}
	c := NewClient(p.TracerProvider(), append(base, opts...)...)
	c.flusher = p
	return c
}

// NewNoopClient 创建不记录任何内容的客户端
func NewNoopClient() *Client {
	return NewClient(nil)
}

// Flush 导出缓冲的 Span
func (c *Client) Flush(ctx context.Context) error {
	if c.flusher == nil {
		return nil
	}
	return c.flusher.ForceFlush(ctx)
}

// Costs 返回成本计算器
func (c *Client) Costs() *CostCalculator {
	return c.costs
}

// Logger 返回日志器
func (c *Client) Logger() otel.Logger {
	return c.logger
}
