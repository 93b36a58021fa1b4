// Package tools 提供工具接口、注册表、参数校验和执行器
package tools

import (
	"context"
)

// Tool 智能体可调用的工具
//
// 名称和参数 Schema 会作为工具定义发送给模型，模型返回的 tool_use
// 由 Executor 按名称分发到 Execute。
type Tool interface {
	// Name 工具唯一名称
	Name() string

	// Description 告诉模型何时使用该工具
	Description() string

	// Parameters JSON Schema 形式的参数定义
	Parameters() ParameterSchema

	// Execute 执行工具，返回的文本作为 tool_result 回传给模型
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolWithValidation 支持参数验证的工具接口
type ToolWithValidation interface {
	Tool
	// Validate 验证参数
	Validate(args map[string]interface{}) error
}
