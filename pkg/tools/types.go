package tools

import (
	"encoding/json"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
)

// ParameterSchema 工具参数的 JSON Schema，顶层总是 object
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
	// AdditionalProperties 为 false 时 Validate 拒绝未声明的参数
	AdditionalProperties bool `json:"additionalProperties,omitempty"`
}

// PropertySchema 单个参数
//
// Type 取 string、number、integer、boolean、array、object。
// 数值与长度约束为 nil 时不检查。
type PropertySchema struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	// Items 数组元素
	Items *PropertySchema `json:"items,omitempty"`
	// Properties 与 Required 描述嵌套对象
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
	Minimum    *float64                  `json:"minimum,omitempty"`
	Maximum    *float64                  `json:"maximum,omitempty"`
	MinLength  *int                      `json:"minLength,omitempty"`
	MaxLength  *int                      `json:"maxLength,omitempty"`
	Pattern    string                    `json:"pattern,omitempty"`
}

// ToLLMDefinition 将 Tool 转换为 LLM 请求中的工具定义
//
// Schema 经 JSON 往返转换为普通 map。
func ToLLMDefinition(t Tool) llm.ToolDefinition {
	params := map[string]interface{}{"type": "object"}
	if data, err := json.Marshal(t.Parameters()); err == nil {
		_ = json.Unmarshal(data, &params)
	}
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]interface{}{}
	}
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  params,
	}
}

// ToolResult 工具执行结果
type ToolResult struct {
	// ToolUseID 对应模型返回的工具调用 ID
	ToolUseID string `json:"tool_use_id,omitempty"`
	// Name 工具名称
	Name string `json:"name"`
	// Success 是否成功
	Success bool `json:"success"`
	// Result 执行结果
	Result string `json:"result"`
	// Error 错误信息（如有）
	Error string `json:"error,omitempty"`
	// Duration 执行耗时
	Duration time.Duration `json:"duration,omitempty"`
}

// Output 返回回传给模型的文本：成功时为结果，失败时为错误信息
func (r ToolResult) Output() string {
	if r.Success {
		return r.Result
	}
	return r.Error
}

// NewToolResult 创建成功的工具结果
func NewToolResult(name, result string) ToolResult {
	return ToolResult{
		Name:    name,
		Success: true,
		Result:  result,
	}
}

// NewToolError 创建失败的工具结果
func NewToolError(name string, err error) ToolResult {
	return ToolResult{
		Name:    name,
		Success: false,
		Error:   err.Error(),
	}
}
