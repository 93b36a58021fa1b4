package agents

import (
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/message"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// Input 定义 Agent 的输入结构
type Input struct {
	// Query 用户输入（必填）
	Query string `json:"query"`
	// UserID 用户标识，写入 Trace 的 user.id
	UserID string `json:"user_id,omitempty"`
	// SessionID 会话标识，写入 Trace 的 session.id，同时作为历史记录的键
	SessionID string `json:"session_id,omitempty"`
	// Metadata 附加到根 Span 的元数据
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Output 定义 Agent 的输出结构
type Output struct {
	// Response 最终响应文本
	Response string `json:"response"`
	// Steps 工具调用轨迹（ToolAgent）
	Steps []ReasoningStep `json:"steps,omitempty"`
	// ToolCalls 工具调用次数
	ToolCalls int `json:"tool_calls,omitempty"`
	// TokenUsage Token 使用统计
	TokenUsage message.TokenUsage `json:"token_usage"`
	// Metrics 写入 Generation 的用量与耗时
	Metrics tracing.AgentMetrics `json:"-"`
	// TraceID 根 Span 的 Trace ID，用于提交评分
	TraceID string `json:"trace_id,omitempty"`
	// Duration 总执行时间
	Duration time.Duration `json:"duration"`
	// Error 错误信息（如有）
	Error string `json:"error,omitempty"`
}

// HasError 检查输出是否包含错误
func (o *Output) HasError() bool {
	return o.Error != ""
}
