// Package llm 提供 LLM 服务的统一接口
package llm

import (
	"context"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// Provider 模型调用接口，实现有 Bedrock Converse、OpenAI 与带降级的组合
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
	// GenerateStream 流式生成。文本块关闭后错误通道最多给出一个错误；
	// 最后一个块 Done=true，携带 TokenUsage。
	GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error)
	// Name 提供商名称，如 bedrock、openai
	Name() string
	// Model 模型 ID
	Model() string
	Close() error
}

// ToolDefinition 工具定义（用于 Function Calling）
type ToolDefinition struct {
	// Name 工具名称
	Name string `json:"name"`
	// Description 工具描述
	Description string `json:"description"`
	// Parameters 参数 Schema (JSON Schema 格式)
	Parameters map[string]interface{} `json:"parameters"`
}

// Request LLM 请求
type Request struct {
	// Messages 消息历史
	Messages []message.Message
	// Tools 可用工具列表（可选）
	Tools []ToolDefinition
	// ToolChoice "auto"、"none" 或工具名
	ToolChoice interface{}
	// Temperature 温度参数（可选）
	Temperature *float64
	// MaxTokens 最大输出 token（可选）
	MaxTokens *int
	// TopP 核采样参数（可选）
	TopP *float64
	// Stop 停止序列（可选）
	Stop []string
	// CacheSystemPrompt 覆盖提供商的 prompt caching 设置（可选）
	CacheSystemPrompt *bool
}

// Response LLM 响应
type Response struct {
	// ID 响应标识
	ID string `json:"id"`
	// Content 响应文本内容
	Content string `json:"content"`
	// ToolCalls 工具调用请求（如有）
	ToolCalls []message.ToolCall `json:"tool_calls,omitempty"`
	// TokenUsage Token 使用统计
	TokenUsage message.TokenUsage `json:"token_usage"`
	// FinishReason 结束原因
	// 值: "stop", "tool_calls", "length", "content_filter"
	FinishReason string `json:"finish_reason"`
	// StopReason 提供商返回的原始结束原因，如 guardrail_intervened
	StopReason string `json:"stop_reason,omitempty"`
	// Model 实际响应的模型
	Model string `json:"model,omitempty"`
	// Latency 服务端报告的调用耗时（未报告时为客户端测量值）
	Latency time.Duration `json:"latency,omitempty"`
}

// StreamChunk 流式响应块
type StreamChunk struct {
	// Content 内容片段
	Content string `json:"content"`
	// ToolCalls 工具调用片段（如有）
	ToolCalls []message.ToolCall `json:"tool_calls,omitempty"`
	// Done 是否完成
	Done bool `json:"done"`
	// FinishReason 结束原因（当 Done=true 时）
	FinishReason string `json:"finish_reason,omitempty"`
	// StopReason 原始结束原因（当 Done=true 时）
	StopReason string `json:"stop_reason,omitempty"`
	// TokenUsage Token 使用统计（当 Done=true 时）
	TokenUsage *message.TokenUsage `json:"token_usage,omitempty"`
	// Latency 服务端报告的调用耗时（当 Done=true 时）
	Latency time.Duration `json:"latency,omitempty"`
}

// 结束原因
const (
	FinishStop          = "stop"
	FinishToolCalls     = "tool_calls"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)
