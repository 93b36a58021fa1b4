package config

import "time"

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	// Enabled 是否启用
	Enabled bool `koanf:"enabled"`
	// ServiceName 服务名称
	ServiceName string `koanf:"service_name"`
	// Exporter 追踪导出器: langfuse / otlp-grpc / otlp-http / stdout / none
	Exporter string `koanf:"exporter"`
	// TracerEndpoint 追踪端点（otlp 导出器使用）
	TracerEndpoint string `koanf:"tracer_endpoint"`
	// MetricsEndpoint 指标端点
	MetricsEndpoint string `koanf:"metrics_endpoint"`
	// MetricsExporter 指标后端: prometheus / otlp-grpc / otlp-http / stdout / memory / none
	MetricsExporter string `koanf:"metrics_exporter"`
	// SampleRate 采样率 [0, 1]
	SampleRate float64 `koanf:"sample_rate"`
	// Langfuse Langfuse 凭证
	Langfuse LangfuseConfig `koanf:"langfuse"`
}

// LangfuseConfig Langfuse 连接配置
type LangfuseConfig struct {
	// Host Langfuse 地址
	// 默认: https://cloud.langfuse.com
	Host string `koanf:"host"`
	// PublicKey 公钥（pk-lf-...）
	PublicKey string `koanf:"public_key"`
	// SecretKey 私钥（sk-lf-...）
	SecretKey string `koanf:"secret_key"`
}

// HasCredentials 是否配置了完整凭证
func (c LangfuseConfig) HasCredentials() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// WithDefaults 返回带默认值的配置
func (c ObservabilityConfig) WithDefaults() ObservabilityConfig {
	if c.ServiceName == "" {
		c.ServiceName = "bedrock-agent"
	}
	if c.Exporter == "" {
		c.Exporter = "langfuse"
	}
	if c.MetricsExporter == "" {
		c.MetricsExporter = "memory"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Langfuse.Host == "" {
		c.Langfuse.Host = "https://cloud.langfuse.com"
	}
	return c
}

// GuardrailConfig Bedrock Guardrail 配置
type GuardrailConfig struct {
	// ID Guardrail 标识，为空时跳过所有检查
	ID string `koanf:"id"`
	// Version Guardrail 版本
	// 默认: DRAFT
	Version string `koanf:"version"`
	// Region AWS 区域，默认沿用 llm.region
	Region string `koanf:"region"`
	// InputFiltering 是否检查用户输入
	InputFiltering bool `koanf:"input_filtering"`
	// OutputFiltering 是否检查模型输出
	OutputFiltering bool `koanf:"output_filtering"`
	// CheckInterval 流式输出每累计多少字符检查一次，0 表示只做最终检查
	// 默认: 100
	CheckInterval int `koanf:"check_interval"`
}

// Validate 验证 Guardrail 配置
func (c *GuardrailConfig) Validate() error {
	if c.CheckInterval < 0 {
		return ErrInvalidCheckInterval
	}
	return nil
}

// DefaultCacheMetricsRegion 未配置区域且没有 AWS_REGION 时查询的区域
const DefaultCacheMetricsRegion = "us-west-2"

// CacheMetricsConfig prompt cache 指标查询配置
type CacheMetricsConfig struct {
	// LogGroup Bedrock 调用日志所在日志组
	LogGroup string `koanf:"log_group"`
	// Region 日志组所在区域，默认取 AWS_REGION，再退回 us-west-2
	Region string `koanf:"region"`
	// ModelID 统计的模型
	ModelID string `koanf:"model_id"`
	// Hours 查询窗口（小时）
	Hours int `koanf:"hours"`
	// PollInterval 轮询查询结果的间隔
	PollInterval time.Duration `koanf:"poll_interval"`
	// MaxWait 等待查询完成的最长时间
	MaxWait time.Duration `koanf:"max_wait"`
}

// Validate 验证指标查询配置
func (c *CacheMetricsConfig) Validate() error {
	if c.Hours <= 0 {
		return ErrInvalidHours
	}
	return nil
}

// EvaluationConfig 评估配置
type EvaluationConfig struct {
	// Dataset 数据集路径（.json / .yaml）
	Dataset string `koanf:"dataset"`
	// JudgeModel 评判模型（Bedrock）
	JudgeModel string `koanf:"judge_model"`
	// JudgeFallbackModel 备用评判模型（OpenAI）
	JudgeFallbackModel string `koanf:"judge_fallback_model"`
	// CustomMetrics 是否启用 GEval 自定义指标
	CustomMetrics bool `koanf:"custom_metrics"`
	// Concurrency 并发评估的用例数
	Concurrency int `koanf:"concurrency"`
	// JudgeRPS 评判调用的每秒请求上限，0 表示不限制
	JudgeRPS float64 `koanf:"judge_rps"`
	// ReportPath 报告输出路径
	ReportPath string `koanf:"report_path"`
	// ResultsDB 结果历史数据库（sqlite），为空时不落库
	ResultsDB string `koanf:"results_db"`
}

// Validate 验证评估配置
func (c *EvaluationConfig) Validate() error {
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	return nil
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志级别: debug / info / warn / error
	Level string `koanf:"level"`
	// Format 输出格式: json / console
	Format string `koanf:"format"`
}
