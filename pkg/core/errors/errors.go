// Package errors 定义框架的通用错误类型
package errors

import (
	"errors"
	"fmt"
)

// 通用错误
var (
	// ErrNotImplemented 功能未实现
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrContextCanceled 上下文被取消
	ErrContextCanceled = errors.New("context canceled")
)

// LLM 相关错误
var (
	// ErrRateLimited 请求被限速
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout 请求超时
	ErrTimeout = errors.New("request timeout")
	// ErrTokenLimitExceeded Token 限制超出
	ErrTokenLimitExceeded = errors.New("token limit exceeded")
	// ErrInvalidAPIKey API 密钥无效
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrModelNotFound 模型未找到
	ErrModelNotFound = errors.New("model not found")
	// ErrProviderUnavailable 提供商不可用
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidResponse LLM 响应无效
	ErrInvalidResponse = errors.New("invalid LLM response")
	// ErrInvalidRequest 请求被服务端校验拒绝
	ErrInvalidRequest = errors.New("invalid LLM request")
)

// Agent 相关错误
var (
	// ErrMaxIterationsExceeded 超出最大迭代次数
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")
	// ErrAgentNotReady Agent 未就绪
	ErrAgentNotReady = errors.New("agent not ready")
	// ErrNoToolsAvailable 没有可用工具
	ErrNoToolsAvailable = errors.New("no tools available")
)

// Tool 相关错误
var (
	// ErrToolNotFound 工具未找到
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExecutionFailed 工具执行失败
	ErrToolExecutionFailed = errors.New("tool execution failed")
	// ErrInvalidToolArgs 工具参数无效
	ErrInvalidToolArgs = errors.New("invalid tool arguments")
	// ErrToolAlreadyRegistered 工具已注册
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	// ErrInvalidTool 无效的工具
	ErrInvalidTool = errors.New("invalid tool")
	// ErrToolTimeout 工具执行超时
	ErrToolTimeout = errors.New("tool execution timeout")
)

// Tracing 相关错误
var (
	// ErrSpanEnded Span 已结束
	ErrSpanEnded = errors.New("span already ended")
	// ErrMissingTracingCredentials 缺少 Langfuse 凭证
	ErrMissingTracingCredentials = errors.New("missing tracing credentials")
	// ErrScoreRejected 评分被追踪后端拒绝
	ErrScoreRejected = errors.New("score rejected by tracing backend")
)

// Guardrail 相关错误
var (
	// ErrGuardrailNotConfigured 未配置 Guardrail ID
	ErrGuardrailNotConfigured = errors.New("guardrail not configured")
	// ErrGuardrailFailed ApplyGuardrail 调用失败
	ErrGuardrailFailed = errors.New("guardrail check failed")
)

// 缓存指标查询相关错误
var (
	// ErrLogGroupNotFound 日志组不存在
	ErrLogGroupNotFound = errors.New("log group not found")
	// ErrQueryFailed 查询失败或被取消
	ErrQueryFailed = errors.New("log query failed")
	// ErrQueryTimeout 查询在等待时间内未完成
	ErrQueryTimeout = errors.New("log query timed out")
)

// Evaluation 相关错误
var (
	// ErrEmptyDataset 数据集为空
	ErrEmptyDataset = errors.New("dataset has no test cases")
	// ErrMissingTestCaseParams 测试用例缺少指标所需字段
	ErrMissingTestCaseParams = errors.New("test case is missing required params")
	// ErrJudgeResponse 评判模型输出无法解析
	ErrJudgeResponse = errors.New("unparseable judge response")
)

// WrapError 包装错误并添加上下文信息
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProviderUnavailable)
}

// IsFatal 判断错误是否为致命错误（不可恢复）
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidAPIKey) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingTracingCredentials) ||
		errors.Is(err, ErrLogGroupNotFound)
}
