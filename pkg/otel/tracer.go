// Package otel 封装 OpenTelemetry 追踪、指标与日志，并提供 Langfuse 导出
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer 创建 Span
type Tracer interface {
	// Start 在 ctx 中的 Span 之下开始子 Span
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// SpanFromContext 返回 ctx 中的当前 Span，没有时返回空实现
	SpanFromContext(ctx context.Context) Span
}

// Span 一个进行中的操作
type Span interface {
	End()
	SetAttributes(attrs ...attribute.KeyValue)
	AddEvent(name string, attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code StatusCode, description string)
	// Fail 记录错误并把状态置为 Error
	Fail(err error)
	SpanContext() SpanContext
}

// SpanContext Span 的十六进制 ID
type SpanContext struct {
	TraceID string
	SpanID  string
}

// StatusCode Span 状态
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// SpanKind Span 类型，模型调用为 Client，其余默认 Internal
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// SpanOption Span 选项
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind  SpanKind
	attrs []attribute.KeyValue
}

// WithSpanKind 设置 Span 类型
func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// WithAttributes 设置开始时的属性
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, attrs...) }
}

// OTelTracer 基于 trace.Tracer 的实现
type OTelTracer struct {
	tracer trace.Tracer
}

// NewTracer 包装 OpenTelemetry Tracer
func NewTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// Start 开始 Span
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	var cfg spanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	kind := trace.SpanKindInternal
	switch cfg.kind {
	case SpanKindServer:
		kind = trace.SpanKindServer
	case SpanKindClient:
		kind = trace.SpanKindClient
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(cfg.attrs...))
	return ctx, &OTelSpan{span: span}
}

// SpanFromContext 返回 ctx 中的 Span
func (t *OTelTracer) SpanFromContext(ctx context.Context) Span {
	return &OTelSpan{span: trace.SpanFromContext(ctx)}
}

// OTelSpan 包装 trace.Span
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End()                                      { s.span.End() }
func (s *OTelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s *OTelSpan) RecordError(err error)                     { s.span.RecordError(err) }

func (s *OTelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *OTelSpan) SetStatus(code StatusCode, description string) {
	switch code {
	case StatusOK:
		s.span.SetStatus(codes.Ok, description)
	case StatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *OTelSpan) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SpanContext 返回 ID，Span 无效时为空
func (s *OTelSpan) SpanContext() SpanContext {
	sc := s.span.SpanContext()
	if !sc.IsValid() {
		return SpanContext{}
	}
	return SpanContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}

// Unwrap 返回底层 trace.Span
func (s *OTelSpan) Unwrap() trace.Span { return s.span }

// NoopTracer 不产生 Span
type NoopTracer struct{}

// NewNoopTracer 创建空追踪器
func NewNoopTracer() *NoopTracer { return &NoopTracer{} }

func (*NoopTracer) Start(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, NoopSpan{}
}

func (*NoopTracer) SpanFromContext(context.Context) Span { return NoopSpan{} }

// NoopSpan 空 Span
type NoopSpan struct{}

func (NoopSpan) End()                                   {}
func (NoopSpan) SetAttributes(...attribute.KeyValue)    {}
func (NoopSpan) AddEvent(string, ...attribute.KeyValue) {}
func (NoopSpan) RecordError(error)                      {}
func (NoopSpan) SetStatus(StatusCode, string)           {}
func (NoopSpan) Fail(error)                             {}
func (NoopSpan) SpanContext() SpanContext               { return SpanContext{} }

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Tracer = (*NoopTracer)(nil)
	_ Span   = (*OTelSpan)(nil)
	_ Span   = NoopSpan{}
)
