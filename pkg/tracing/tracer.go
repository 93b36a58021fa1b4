package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// DefaultInterruptReason EndAllPendingSpans 未给出原因时使用
const DefaultInterruptReason = "interrupted"

// DefaultGenerationName Generation 默认名称
const DefaultGenerationName = "llm_response"

// Tracer 单个请求的追踪管理器
//
// 用法:
//
//	tracer := tracing.NewTracer(client, cfg)
//	err := tracer.TraceSpan(ctx, "chat", prompt, func(ctx context.Context, span *tracing.Span) error {
//	    tool := tracer.StartToolSpan(span, "Read", "toolu_1", 1, input)
//	    ...
//	    tracer.EndToolSpan("toolu_1", result, false)
//	    return nil
//	})
type Tracer struct {
	client *Client
	config TracingConfig

	mu      sync.Mutex
	pending map[string]*Span
	order   []string
}

// NewTracer 创建追踪管理器
func NewTracer(client *Client, cfg TracingConfig) *Tracer {
	if client == nil {
		client = NewNoopClient()
	}
	return &Tracer{
		client:  client,
		config:  cfg.WithDefaults(),
		pending: make(map[string]*Span),
	}
}

// Config 返回追踪配置
func (t *Tracer) Config() TracingConfig {
	return t.config
}

// Client 返回追踪客户端
func (t *Tracer) Client() *Client {
	return t.client
}

// SpanOption 根 Span 选项
type SpanOption func(*spanOptions)

type spanOptions struct {
	metadata map[string]any
	tags     []string
}

// WithMetadata 追加元数据
func WithMetadata(metadata map[string]any) SpanOption {
	return func(o *spanOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			o.metadata[k] = v
		}
	}
}

// WithTags 追加标签
func WithTags(tags ...string) SpanOption {
	return func(o *spanOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// StartSpan 开始根 Span
//
// 元数据 = 基础元数据 + 额外元数据 + tags；Trace 级属性写入会话、用户与标签。
// 调用方负责调用 End；需要自动收尾时使用 TraceSpan。
func (t *Tracer) StartSpan(ctx context.Context, name string, input any, opts ...SpanOption) *Span {
	var o spanOptions
	for _, opt := range opts {
		opt(&o)
	}

	metadata := t.config.BaseMetadata()
	for k, v := range o.metadata {
		metadata[k] = v
	}
	tags := append(t.config.BaseTags(), o.tags...)
	metadata["tags"] = tags

	attrs := []attribute.KeyValue{
		otel.ObservationType(otel.ObservationSpan),
		attribute.String(otel.AttrLangfuseTraceName, name),
		attribute.StringSlice(otel.AttrLangfuseTraceTags, tags),
		attribute.String(otel.AttrLangfuseRelease, AppVersion),
		attribute.String(otel.AttrLangfuseEnvironment, t.config.Environment),
	}
	if t.config.SessionID != "" {
		attrs = append(attrs, attribute.String(otel.AttrSessionID, t.config.SessionID))
	}
	if t.config.UserID != "" {
		attrs = append(attrs, attribute.String(otel.AttrUserID, t.config.UserID))
	}

	ctx, span := t.client.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	s := newSpan(ctx, span, t.client, false)
	s.SetInput(input)
	if input != nil {
		span.SetAttributes(attribute.String(otel.AttrLangfuseTraceInput, encode(input)))
	}
	s.UpdateMetadata(metadata)
	return s
}

// TraceSpan 在根 Span 内执行 fn
//
// fn 返回错误或 panic 时 Span 标记为 ERROR，错误原样返回（panic 继续抛出）；
// 无论成功与否 Span 都会结束并 flush。
func (t *Tracer) TraceSpan(ctx context.Context, name string, input any, fn func(ctx context.Context, span *Span) error, opts ...SpanOption) (err error) {
	span := t.StartSpan(ctx, name, input, opts...)
	defer func() {
		if r := recover(); r != nil {
			span.SetError(fmt.Sprint(r))
			span.End()
			t.flush(ctx)
			panic(r)
		}
		span.End()
		t.flush(ctx)
	}()

	if err = fn(span.Context(), span); err != nil {
		span.SetError(err.Error())
	}
	return err
}

// StartToolSpan 开始工具 Span 并登记为未决
//
// 必须通过 EndToolSpan 或 EndAllPendingSpans 结束。
func (t *Tracer) StartToolSpan(parent *Span, toolName, toolUseID string, callNumber int, input any) *Span {
	s := t.startTool(parent, toolName, toolUseID, input)
	s.UpdateMetadata(map[string]any{"tool_call_number": callNumber})

	t.mu.Lock()
	if _, exists := t.pending[toolUseID]; !exists {
		t.order = append(t.order, toolUseID)
	}
	t.pending[toolUseID] = s
	t.mu.Unlock()
	return s
}

func (t *Tracer) startTool(parent *Span, toolName, toolUseID string, input any) *Span {
	ctx, span := t.client.tracer.Start(parent.Context(), "tool:"+toolName,
		trace.WithAttributes(
			otel.ObservationType(otel.ObservationTool),
			otel.ToolName(toolName),
		),
	)
	s := newSpan(ctx, span, t.client, true)
	s.SetInput(input)
	s.UpdateMetadata(map[string]any{
		"tool_name":   toolName,
		"tool_use_id": toolUseID,
	})
	return s
}

// EndToolSpan 结束未决的工具 Span
//
// 出错时以 output（为空则 "Tool execution failed"）作为错误消息，否则写入输出。
// toolUseID 未登记时返回 nil。
func (t *Tracer) EndToolSpan(toolUseID string, output any, isError bool) *Span {
	t.mu.Lock()
	s, ok := t.pending[toolUseID]
	if ok {
		delete(t.pending, toolUseID)
		t.removeOrder(toolUseID)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}

	if isError {
		msg := "Tool execution failed"
		if output != nil {
			if text := encode(output); text != "" {
				msg = text
			}
		}
		s.SetError(msg)
	} else {
		s.SetOutput(output)
	}
	s.End()
	return s
}

func (t *Tracer) removeOrder(id string) {
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// TraceTool 在工具 Span 内执行 fn，不登记为未决
func (t *Tracer) TraceTool(parent *Span, toolName, toolUseID string, input any, fn func(ctx context.Context, span *Span) (string, error)) (string, error) {
	s := t.startTool(parent, toolName, toolUseID, input)
	defer s.End()

	out, err := fn(s.Context(), s)
	if err != nil {
		s.SetError(err.Error())
		return out, err
	}
	s.SetOutput(out)
	return out, nil
}

// PendingIDs 返回未决工具 Span 的 tool_use_id（按开始顺序）
func (t *Tracer) PendingIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids
}

// PendingCount 返回未决工具 Span 数量
func (t *Tracer) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// EndAllPendingSpans 以警告结束所有未决工具 Span
func (t *Tracer) EndAllPendingSpans(reason string) {
	if reason == "" {
		reason = DefaultInterruptReason
	}

	t.mu.Lock()
	spans := make([]*Span, 0, len(t.order))
	for _, id := range t.order {
		spans = append(spans, t.pending[id])
	}
	t.pending = make(map[string]*Span)
	t.order = nil
	t.mu.Unlock()

	for _, s := range spans {
		s.SetWarning("Span ended due to: " + reason)
		s.SetOutput("(no result - " + reason + ")")
		s.End()
	}
}

// GenerationParams Generation 参数
type GenerationParams struct {
	// Name 默认 llm_response
	Name   string
	Input  any
	Output any
	// Model 默认取追踪配置中的模型
	Model string
	// Metrics 为 nil 时元数据标记 metrics_available=false
	Metrics       *AgentMetrics
	ToolCallCount int
}

// CreateGeneration 在 parent 下创建并立即结束一个 Generation
func (t *Tracer) CreateGeneration(parent *Span, p GenerationParams) *Span {
	if p.Name == "" {
		p.Name = DefaultGenerationName
	}
	if p.Model == "" {
		p.Model = t.config.Model
	}

	params, _ := json.Marshal(map[string]any{
		"temperature": t.config.Temperature,
		"max_tokens":  t.config.MaxTokens,
	})

	ctx, span := t.client.tracer.Start(parent.Context(), p.Name,
		trace.WithAttributes(
			otel.ObservationType(otel.ObservationGeneration),
			attribute.String(otel.AttrLangfuseModelName, p.Model),
			attribute.String(otel.AttrLangfuseModelParameters, string(params)),
		),
	)
	g := newSpan(ctx, span, t.client, false)
	g.SetInput(p.Input)
	g.SetOutput(p.Output)

	responseLength := 0
	if p.Output != nil {
		responseLength = utf8.RuneCountInString(encode(p.Output))
	}

	if p.Metrics != nil {
		metadata := p.Metrics.ToMetadata()
		metadata["response_length"] = responseLength
		metadata["tool_calls"] = p.ToolCallCount
		g.UpdateMetadata(metadata)

		usage, _ := json.Marshal(p.Metrics.ToUsage())
		span.SetAttributes(attribute.String(otel.AttrLangfuseUsageDetails, string(usage)))
		if cost, ok := t.client.costs.Calculate(p.Model, *p.Metrics); ok {
			details, _ := json.Marshal(cost.Details())
			span.SetAttributes(attribute.String(otel.AttrLangfuseCostDetails, string(details)))
		}
	} else {
		g.UpdateMetadata(map[string]any{
			"response_length":   responseLength,
			"tool_calls":        p.ToolCallCount,
			"metrics_available": false,
		})
	}

	g.End()
	return g
}

// Flush 导出缓冲的 Span
func (t *Tracer) Flush(ctx context.Context) error {
	return t.client.Flush(ctx)
}

func (t *Tracer) flush(ctx context.Context) {
	if err := t.client.Flush(context.WithoutCancel(ctx)); err != nil {
		t.client.logger.Warn("trace flush failed", "error", err)
	}
}
