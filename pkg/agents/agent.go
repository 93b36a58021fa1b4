// Package agents 提供带追踪的对话智能体
//
// ChatAgent 处理无工具的对话（chat / chat_streaming），ToolAgent 在工具调用循环中
// 为每次 tool_use 打开工具 Span，SimpleQuery 是一次性查询的便捷函数。
// 每次调用创建独立的 tracing.Tracer，会话与用户写入 Trace 属性。
package agents

import (
	"context"
)

// Agent 智能体接口
type Agent interface {
	// Run 执行一次完整调用
	Run(ctx context.Context, input Input) (Output, error)

	// RunStream 流式执行
	//
	// 返回两个 channel：
	//   - <-chan StreamChunk: 流式输出块，最后一块为 ChunkTypeDone
	//   - <-chan error: 错误通道（最多一个错误）
	RunStream(ctx context.Context, input Input) (<-chan StreamChunk, <-chan error)

	// Name 返回 Agent 名称
	Name() string
}

// StreamChunk 流式输出块
type StreamChunk struct {
	// Type 块类型
	Type ChunkType `json:"type"`
	// Content 文本片段
	Content string `json:"content"`
	// Step 工具调用步骤（当 Type=ChunkTypeStep 时）
	Step *ReasoningStep `json:"step,omitempty"`
	// Output 完整输出（当 Type=ChunkTypeDone 时）
	Output *Output `json:"output,omitempty"`
	// Done 是否完成
	Done bool `json:"done"`
}

// ChunkType 流式块类型
type ChunkType string

const (
	// ChunkTypeText 文本内容
	ChunkTypeText ChunkType = "text"
	// ChunkTypeStep 工具调用或结果
	ChunkTypeStep ChunkType = "step"
	// ChunkTypeDone 完成标志
	ChunkTypeDone ChunkType = "done"
)

// sendChunk 发送块，ctx 取消时返回错误
func sendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) error {
	select {
	case ch <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
