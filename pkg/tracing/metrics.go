package tracing

import (
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// AgentMetrics 一次 Agent 调用的用量与耗时
//
// 可选字段使用指针，未知时不写入元数据。
type AgentMetrics struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int

	TotalCostUSD  *float64
	DurationMS    *int64
	DurationAPIMS *int64

	SessionID string
	NumTurns  int
}

// ToUsage 生成 Langfuse usage_details
func (m AgentMetrics) ToUsage() map[string]int {
	usage := map[string]int{
		"input":  m.InputTokens,
		"output": m.OutputTokens,
		"total":  m.InputTokens + m.OutputTokens,
	}
	if m.CacheCreationInputTokens > 0 {
		usage["cache_creation_input_tokens"] = m.CacheCreationInputTokens
	}
	if m.CacheReadInputTokens > 0 {
		usage["cache_read_input_tokens"] = m.CacheReadInputTokens
	}
	return usage
}

// ToMetadata 生成 Generation 元数据
func (m AgentMetrics) ToMetadata() map[string]any {
	md := map[string]any{
		"num_turns": m.NumTurns,
	}
	if m.DurationMS != nil {
		md["duration_ms"] = *m.DurationMS
	}
	if m.DurationAPIMS != nil {
		md["duration_api_ms"] = *m.DurationAPIMS
	}
	if m.TotalCostUSD != nil {
		md["total_cost_usd"] = *m.TotalCostUSD
	}
	if m.SessionID != "" {
		md["claude_session_id"] = m.SessionID
	}
	return md
}

// Usage 转换为 TokenUsage
func (m AgentMetrics) Usage() message.TokenUsage {
	return message.TokenUsage{
		PromptTokens:     m.InputTokens,
		CompletionTokens: m.OutputTokens,
		TotalTokens:      m.InputTokens + m.OutputTokens,
		CacheReadTokens:  m.CacheReadInputTokens,
		CacheWriteTokens: m.CacheCreationInputTokens,
	}
}

// Accumulate 累加一轮模型调用
//
// Token 与 API 耗时相加，轮数加一。
func (m *AgentMetrics) Accumulate(resp llm.Response) {
	u := resp.TokenUsage
	m.InputTokens += u.PromptTokens
	m.OutputTokens += u.CompletionTokens
	m.CacheCreationInputTokens += u.CacheWriteTokens
	m.CacheReadInputTokens += u.CacheReadTokens
	if resp.Latency > 0 {
		api := resp.Latency.Milliseconds()
		if m.DurationAPIMS != nil {
			api += *m.DurationAPIMS
		}
		m.DurationAPIMS = &api
	}
	m.NumTurns++
}

// MetricsFromResponse 从单次模型响应构建指标
func MetricsFromResponse(resp llm.Response) AgentMetrics {
	var m AgentMetrics
	m.Accumulate(resp)
	return m
}

// MetricsFromUsage 从流式结束块的用量构建指标
func MetricsFromUsage(usage message.TokenUsage) AgentMetrics {
	return AgentMetrics{
		InputTokens:              usage.PromptTokens,
		OutputTokens:             usage.CompletionTokens,
		CacheCreationInputTokens: usage.CacheWriteTokens,
		CacheReadInputTokens:     usage.CacheReadTokens,
		NumTurns:                 1,
	}
}

// SetDuration 设置总耗时（毫秒）
func (m *AgentMetrics) SetDuration(ms int64) {
	m.DurationMS = &ms
}

// SetCost 设置总费用
func (m *AgentMetrics) SetCost(usd float64) {
	m.TotalCostUSD = &usd
}
