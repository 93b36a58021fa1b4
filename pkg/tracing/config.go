// Package tracing 提供面向 Langfuse 的手动 Span 生命周期管理
//
// Agent 框架不支持装饰器式追踪时，由 Tracer 负责：
//   - 每个请求一个根 Span，保证只结束一次并在结束后 flush
//   - 工具 Span 按 tool_use_id 登记为未决，出错时统一收尾
//   - 错误级别（ERROR / WARNING / DEFAULT）与状态消息
//   - 基础元数据与标签，便于在 Langfuse 中过滤
package tracing

import (
	"strings"
)

// AppVersion 写入追踪元数据的应用版本
const AppVersion = "1.2.0"

// SDKName 写入追踪元数据的 SDK 名称
const SDKName = "claude-agent-sdk"

// TracingConfig 单个请求的追踪配置
type TracingConfig struct {
	SessionID string
	UserID    string

	// Tags 用户指定的标签，追加在基础标签之后
	Tags []string

	Environment string
	AWSRegion   string
	Cwd         string

	Model       string
	Temperature float64
	MaxTokens   int

	// Tools 允许使用的工具，为空时打 no-tools 标签
	Tools []string
}

// DefaultTracingConfig 返回默认追踪配置
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Environment: "development",
		AWSRegion:   "us-east-1",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// WithDefaults 返回带默认值的配置
//
// Temperature 不做替换，0 是合法的采样温度。
func (c TracingConfig) WithDefaults() TracingConfig {
	d := DefaultTracingConfig()
	if c.Environment == "" {
		c.Environment = d.Environment
	}
	if c.AWSRegion == "" {
		c.AWSRegion = d.AWSRegion
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// BaseMetadata 每个根 Span 都携带的元数据
func (c TracingConfig) BaseMetadata() map[string]any {
	return map[string]any{
		"version":     AppVersion,
		"environment": c.Environment,
		"aws_region":  c.AWSRegion,
		"cwd":         c.Cwd,
		"sdk":         SDKName,
		"session_id":  c.SessionID,
		"user_id":     c.UserID,
	}
}

// BaseTags 生成基础标签
//
// 顺序：env、region、model（设置了模型时）、with-tools / no-tools，最后是用户标签。
func (c TracingConfig) BaseTags() []string {
	tags := []string{
		"env:" + c.Environment,
		"region:" + c.AWSRegion,
	}
	if c.Model != "" {
		tags = append(tags, "model:"+ShortModelName(c.Model))
	}
	if len(c.Tools) > 0 {
		tags = append(tags, "with-tools")
	} else {
		tags = append(tags, "no-tools")
	}
	return append(tags, c.Tags...)
}

// ShortModelName 从模型 ID 中提取短名称
//
//	anthropic.claude-3-5-sonnet-20241022-v2:0        -> claude-3-5-sonnet-20241022-v2
//	arn:aws:bedrock:...:inference-profile/us.x.y:0   -> y
func ShortModelName(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if i := strings.Index(model, ":"); i >= 0 {
		model = model[:i]
	}
	if i := strings.LastIndex(model, "."); i >= 0 {
		model = model[i+1:]
	}
	return model
}
