package config

import "errors"

// 配置验证相关错误
var (
	// ErrInvalidProvider 提供商无效
	ErrInvalidProvider = errors.New("invalid llm provider")
	// ErrModelRequired 模型名称必填
	ErrModelRequired = errors.New("model name is required")
	// ErrRegionRequired 区域必填
	ErrRegionRequired = errors.New("aws region is required")
	// ErrInvalidTimeout 超时时间无效
	ErrInvalidTimeout = errors.New("invalid timeout value")
	// ErrInvalidMaxRetries 重试次数无效
	ErrInvalidMaxRetries = errors.New("invalid max retries value")
	// ErrNameRequired Agent 名称必填
	ErrNameRequired = errors.New("agent name is required")
	// ErrInvalidMaxIterations 迭代次数无效
	ErrInvalidMaxIterations = errors.New("max iterations must be between 1 and 100")
	// ErrInvalidTemperature 温度值无效
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 1")
	// ErrInvalidMaxTokens Token 数无效
	ErrInvalidMaxTokens = errors.New("max tokens must be positive")
	// ErrInvalidCheckInterval 检查间隔无效
	ErrInvalidCheckInterval = errors.New("guardrail check interval must not be negative")
	// ErrInvalidHours 查询时间窗口无效
	ErrInvalidHours = errors.New("hours must be positive")
	// ErrInvalidConcurrency 并发数无效
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrUnsupportedFormat 配置文件格式不支持
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)
