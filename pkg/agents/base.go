package agents

import (
	"context"
	"sync"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// base ChatAgent 与 ToolAgent 共用的请求构建、追踪与指标
type base struct {
	provider llm.Provider
	options  *AgentOptions
	history  *sessionHistory
}

func newBase(provider llm.Provider, opts []Option) (base, error) {
	if provider == nil {
		return base{}, errors.ErrProviderUnavailable
	}
	options := DefaultAgentOptions()
	for _, opt := range opts {
		opt(options)
	}
	return base{
		provider: provider,
		options:  options,
		history:  newSessionHistory(),
	}, nil
}

// Name 返回 Agent 名称
func (b *base) Name() string {
	return b.options.Name
}

// Options 返回 Agent 选项（只读）
func (b *base) Options() AgentOptions {
	return *b.options
}

// model 写入追踪的模型 ID
func (b *base) model() string {
	if b.options.Model != "" {
		return b.options.Model
	}
	return b.provider.Model()
}

// resolve 用默认会话与用户补全输入
func (b *base) resolve(input Input) Input {
	if input.SessionID == "" {
		input.SessionID = b.options.SessionID
	}
	if input.UserID == "" {
		input.UserID = b.options.UserID
	}
	return input
}

// newTracer 为一次调用创建追踪管理器
func (b *base) newTracer(input Input, tools []string) *tracing.Tracer {
	return tracing.NewTracer(b.options.Tracing, tracing.TracingConfig{
		SessionID:   input.SessionID,
		UserID:      input.UserID,
		Tags:        b.options.Tags,
		Environment: b.options.Environment,
		AWSRegion:   b.options.AWSRegion,
		Cwd:         b.options.WorkDir,
		Model:       b.model(),
		Temperature: b.options.Temperature,
		MaxTokens:   b.options.MaxTokens,
		Tools:       tools,
	})
}

// withTimeout 应用 Agent 超时
func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.options.Timeout > 0 {
		return context.WithTimeout(ctx, b.options.Timeout)
	}
	return context.WithCancel(ctx)
}

// messages 系统提示词 + 会话历史 + 当前输入
func (b *base) messages(input Input) []message.Message {
	msgs := make([]message.Message, 0, 2)
	if b.options.SystemPrompt != "" {
		msgs = append(msgs, message.NewSystemMessage(b.options.SystemPrompt))
	}
	if b.options.SessionHistory {
		msgs = append(msgs, b.history.get(input.SessionID)...)
	}
	return append(msgs, message.NewUserMessage(input.Query))
}

// request 构建模型请求
func (b *base) request(msgs []message.Message, tools []llm.ToolDefinition) llm.Request {
	temp := b.options.Temperature
	maxTokens := b.options.MaxTokens
	req := llm.Request{
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}
	return req
}

// remember 保存一轮对话
func (b *base) remember(input Input, response string) {
	if !b.options.SessionHistory {
		return
	}
	b.history.add(input.SessionID,
		message.NewUserMessage(input.Query),
		message.NewAssistantMessage(response),
	)
}

// finishMetrics 补全总耗时与估算费用
func (b *base) finishMetrics(m *tracing.AgentMetrics, start time.Time) {
	m.SetDuration(time.Since(start).Milliseconds())
	if cost, ok := b.options.Tracing.Costs().Calculate(b.model(), *m); ok {
		m.SetCost(cost.Total)
	}
}

// record 记录一次调用的指标
func (b *base) record(ctx context.Context, kind string, start time.Time, out Output, err error) {
	attrs := []otel.Attr{otel.NewAttr("agent", b.options.Name), otel.NewAttr("type", kind)}
	status := "success"
	if err != nil {
		status = "error"
		b.options.Metrics.Counter(otel.MetricAgentErrors).Add(ctx, 1, attrs...)
		b.options.Logger.WithContext(ctx).Error("agent run failed", "agent", b.options.Name, "type", kind, "error", err)
	}
	b.options.Metrics.Counter(otel.MetricAgentRuns).Add(ctx, 1, append(attrs, otel.NewAttr("status", status))...)
	b.options.Metrics.Histogram(otel.MetricAgentRunDuration).Record(ctx, float64(time.Since(start).Milliseconds()), attrs...)
	if out.Metrics.NumTurns > 0 {
		b.options.Metrics.Histogram(otel.MetricAgentIterations).Record(ctx, float64(out.Metrics.NumTurns), attrs...)
	}
	if out.Metrics.TotalCostUSD != nil {
		b.options.Metrics.Counter(otel.MetricLLMCost).Add(ctx, int64(*out.Metrics.TotalCostUSD*1e6), attrs...)
	}
}

// sessionHistory 按会话保存的对话历史
type sessionHistory struct {
	mu       sync.RWMutex
	sessions map[string][]message.Message
}

func newSessionHistory() *sessionHistory {
	return &sessionHistory{sessions: make(map[string][]message.Message)}
}

func (h *sessionHistory) get(session string) []message.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msgs := h.sessions[session]
	out := make([]message.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (h *sessionHistory) add(session string, msgs ...message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session] = append(h.sessions[session], msgs...)
}

func (h *sessionHistory) clear(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
}

// History 返回会话历史
func (b *base) History(sessionID string) []message.Message {
	return b.history.get(sessionID)
}

// ClearHistory 清除会话历史
func (b *base) ClearHistory(sessionID string) {
	b.history.clear(sessionID)
}
