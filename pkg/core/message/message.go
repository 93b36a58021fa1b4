// Package message 定义对话消息、工具调用与 Token 用量
package message

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRole 无法转换为提供商格式的角色
var ErrInvalidRole = errors.New("invalid message role")

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool 工具结果，Bedrock 中作为 user 消息里的 toolResult 块发送
	RoleTool Role = "tool"
)

// IsValid 是否为已知角色
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall 模型请求的一次工具调用
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Message 对话中的一条消息
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name 工具名（RoleTool）
	Name string `json:"name,omitempty"`
	// ToolCalls 助手消息请求的工具调用
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID 工具结果对应的调用 ID（RoleTool）
	ToolCallID string `json:"tool_call_id,omitempty"`
	// IsError 工具执行失败，Bedrock 以 status=error 回传
	IsError   bool                   `json:"is_error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// NewMessage 创建带 ID 和时间戳的消息
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content, Timestamp: time.Now()}
}

func NewSystemMessage(content string) Message    { return NewMessage(RoleSystem, content) }
func NewUserMessage(content string) Message      { return NewMessage(RoleUser, content) }
func NewAssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// NewAssistantToolCallMessage 携带工具调用的助手消息
func NewAssistantToolCallMessage(content string, calls []ToolCall) Message {
	m := NewMessage(RoleAssistant, content)
	m.ToolCalls = calls
	return m
}

// NewToolMessage 工具执行结果
func NewToolMessage(toolCallID, name, content string) Message {
	m := NewMessage(RoleTool, content)
	m.Name = name
	m.ToolCallID = toolCallID
	return m
}

// NewToolErrorMessage 工具执行失败的结果
func NewToolErrorMessage(toolCallID, name, content string) Message {
	m := NewToolMessage(toolCallID, name, content)
	m.IsError = true
	return m
}

// SplitSystem 拆出系统消息
//
// 多条系统消息按出现顺序以空行拼接，其余消息保持原顺序。
func SplitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleSystem {
			rest = append(rest, m)
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system, rest
}
