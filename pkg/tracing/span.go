package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// Span 对 OTel Span 的封装
//
// 结束操作幂等；级别与状态消息在本地保存一份，便于调用方读取。
type Span struct {
	ctx    context.Context
	span   trace.Span
	client *Client
	isTool bool

	mu            sync.Mutex
	ended         bool
	level         string
	statusMessage string
}

func newSpan(ctx context.Context, span trace.Span, client *Client, isTool bool) *Span {
	return &Span{
		ctx:    ctx,
		span:   span,
		client: client,
		isTool: isTool,
		level:  otel.LevelDefault,
	}
}

// Context 返回携带该 Span 的上下文
func (s *Span) Context() context.Context {
	return s.ctx
}

// SetInput 设置输入
func (s *Span) SetInput(input any) {
	if input == nil {
		return
	}
	s.span.SetAttributes(attribute.String(otel.AttrLangfuseObservationInput, encode(input)))
}

// SetOutput 设置输出
func (s *Span) SetOutput(output any) {
	if output == nil {
		return
	}
	s.span.SetAttributes(attribute.String(otel.AttrLangfuseObservationOutput, encode(output)))
}

// SetError 标记为错误
func (s *Span) SetError(message string) {
	s.setLevel(otel.LevelError, message)
	s.span.SetStatus(codes.Error, message)
}

// SetWarning 标记为警告
func (s *Span) SetWarning(message string) {
	s.setLevel(otel.LevelWarning, message)
}

func (s *Span) setLevel(level, message string) {
	s.mu.Lock()
	s.level = level
	s.statusMessage = message
	s.mu.Unlock()

	s.span.SetAttributes(
		attribute.String(otel.AttrLangfuseObservationLevel, level),
		attribute.String(otel.AttrLangfuseStatusMessage, message),
	)
}

// UpdateMetadata 追加元数据
func (s *Span) UpdateMetadata(metadata map[string]any) {
	s.span.SetAttributes(metadataAttrs(metadata)...)
}

// Score 为该 Span 所在的 Trace 打分
func (s *Span) Score(ctx context.Context, name string, value float64, comment string) error {
	score := newScore(s.TraceID(), s.SpanID(), name, value, comment)
	if err := s.client.scores.Send(ctx, score); err != nil {
		s.client.logger.Warn("score not recorded", "name", name, "trace_id", score.TraceID, "error", err)
		return err
	}
	return nil
}

// StartChild 开始子 Span
func (s *Span) StartChild(name string, input any, metadata map[string]any) *Span {
	ctx, child := s.client.tracer.Start(s.ctx, name,
		trace.WithAttributes(otel.ObservationType(otel.ObservationSpan)),
	)
	c := newSpan(ctx, child, s.client, false)
	c.SetInput(input)
	c.UpdateMetadata(metadata)
	return c
}

// End 结束 Span，多次调用只生效一次
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	s.span.End()
}

// Ended 是否已结束
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Level 返回级别（DEFAULT / WARNING / ERROR）
func (s *Span) Level() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// StatusMessage 返回状态消息
func (s *Span) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusMessage
}

// IsTool 是否为工具 Span
func (s *Span) IsTool() bool {
	return s.isTool
}

// TraceID 返回 Trace ID，未采样时为空
func (s *Span) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID 返回 Span ID，未采样时为空
func (s *Span) SpanID() string {
	sc := s.span.SpanContext()
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

// encode 字符串原样保留，其他值编码为 JSON
func encode(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// metadataAttrs 把元数据展开为 langfuse.observation.metadata.<key>
func metadataAttrs(metadata map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for k, v := range metadata {
		if v == nil {
			continue
		}
		attrs = append(attrs, otel.ObservationMetadata(k, encode(v)))
	}
	return attrs
}
