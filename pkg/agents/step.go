package agents

import "time"

// ReasoningStep 工具调用循环中的一步
type ReasoningStep struct {
	// Type 步骤类型（thought/action/observation）
	Type StepType `json:"type"`
	// Content 步骤内容
	Content string `json:"content,omitempty"`
	// ToolUseID 模型给出的工具调用 ID
	ToolUseID string `json:"tool_use_id,omitempty"`
	// ToolName 工具名称
	ToolName string `json:"tool_name,omitempty"`
	// ToolArgs 工具参数（当 Type=action 时）
	ToolArgs map[string]interface{} `json:"tool_args,omitempty"`
	// ToolResult 工具结果（当 Type=observation 时）
	ToolResult string `json:"tool_result,omitempty"`
	// IsError 工具是否执行失败
	IsError bool `json:"is_error,omitempty"`
	// Timestamp 时间戳
	Timestamp time.Time `json:"timestamp"`
}

// StepType 步骤类型
type StepType string

const (
	// StepTypeThought 伴随工具调用的文本
	StepTypeThought StepType = "thought"
	// StepTypeAction 工具调用
	StepTypeAction StepType = "action"
	// StepTypeObservation 工具结果
	StepTypeObservation StepType = "observation"
)

// NewThoughtStep 创建思考步骤
func NewThoughtStep(content string) ReasoningStep {
	return ReasoningStep{
		Type:      StepTypeThought,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewActionStep 创建行动步骤
func NewActionStep(toolUseID, toolName string, toolArgs map[string]interface{}) ReasoningStep {
	return ReasoningStep{
		Type:      StepTypeAction,
		ToolUseID: toolUseID,
		ToolName:  toolName,
		ToolArgs:  toolArgs,
		Timestamp: time.Now(),
	}
}

// NewObservationStep 创建观察步骤
func NewObservationStep(toolUseID, toolName, result string, isError bool) ReasoningStep {
	return ReasoningStep{
		Type:       StepTypeObservation,
		ToolUseID:  toolUseID,
		ToolName:   toolName,
		ToolResult: result,
		IsError:    isError,
		Timestamp:  time.Now(),
	}
}
