package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolFunc 工具执行函数
type ToolFunc func(ctx context.Context, args map[string]interface{}) (string, error)

// ValidatorFunc 自定义参数校验
type ValidatorFunc func(args map[string]interface{}) error

// FuncTool 由函数和手写 Schema 组成的工具
type FuncTool struct {
	name        string
	description string
	params      ParameterSchema
	fn          ToolFunc
	validator   ValidatorFunc
}

// FuncToolOption FuncTool 配置选项
type FuncToolOption func(*FuncTool)

// WithValidator 替换默认的 Schema 校验
func WithValidator(v ValidatorFunc) FuncToolOption {
	return func(t *FuncTool) {
		t.validator = v
	}
}

// NewFuncTool 创建函数工具
//
//	clock := tools.NewFuncTool("CurrentTime", "Current time in a time zone",
//	    tools.ParameterSchema{
//	        Type: "object",
//	        Properties: map[string]tools.PropertySchema{
//	            "timezone": {Type: "string", Description: "IANA time zone"},
//	        },
//	    },
//	    func(ctx context.Context, args map[string]interface{}) (string, error) { ... },
//	)
func NewFuncTool(name, description string, params ParameterSchema, fn ToolFunc, opts ...FuncToolOption) *FuncTool {
	t := &FuncTool{
		name:        name,
		description: description,
		params:      params,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTypedTool 以参数结构体 P 创建工具
//
// Schema 由 SchemaFromStruct 生成，调用时参数经 JSON 解码为 P。
//
//	type lookupParams struct {
//	    ID string `json:"id" desc:"Order ID" required:"true"`
//	}
//	tool := tools.NewTypedTool("Lookup", "Look up an order",
//	    func(ctx context.Context, p lookupParams) (string, error) { ... })
func NewTypedTool[P any](name, description string, fn func(ctx context.Context, params P) (string, error), opts ...FuncToolOption) *FuncTool {
	var zero P
	return NewFuncTool(name, description, SchemaFromStruct(zero),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			params, err := DecodeArgs[P](args)
			if err != nil {
				return "", err
			}
			return fn(ctx, params)
		}, opts...)
}

// DecodeArgs 把参数 map 解码为结构体
func DecodeArgs[P any](args map[string]interface{}) (P, error) {
	var params P
	data, err := json.Marshal(args)
	if err != nil {
		return params, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("decode arguments: %w", err)
	}
	return params, nil
}

// Name 返回工具名称
func (t *FuncTool) Name() string { return t.name }

// Description 返回工具描述
func (t *FuncTool) Description() string { return t.description }

// Parameters 返回参数 Schema
func (t *FuncTool) Parameters() ParameterSchema { return t.params }

// Execute 执行工具
func (t *FuncTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if t.fn == nil {
		return "", fmt.Errorf("tool %s has no function", t.name)
	}
	return t.fn(ctx, args)
}

// Validate 校验参数，未设置 WithValidator 时按 Schema 校验
func (t *FuncTool) Validate(args map[string]interface{}) error {
	if t.validator != nil {
		return t.validator(args)
	}
	return Validate(t.params, args)
}

var (
	_ Tool               = (*FuncTool)(nil)
	_ ToolWithValidation = (*FuncTool)(nil)
)
