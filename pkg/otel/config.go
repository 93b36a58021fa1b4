package otel

import (
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
)

// Config 可观测性配置
type Config struct {
	// Enabled 是否启用可观测性
	Enabled bool `koanf:"enabled"`

	// ServiceName 服务名称
	ServiceName string `koanf:"service_name"`
	// ServiceVersion 服务版本
	ServiceVersion string `koanf:"service_version"`
	// Environment 环境（development, staging, production）
	Environment string `koanf:"environment"`

	// Tracing 追踪配置
	Tracing TracingConfig `koanf:"tracing"`
	// Metrics 指标配置
	Metrics MetricsConfig `koanf:"metrics"`
	// Logging 日志配置
	Logging LoggingConfig `koanf:"logging"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	// Enabled 是否启用追踪
	Enabled bool `koanf:"enabled"`
	// Exporter 导出器类型，默认 langfuse
	Exporter ExporterType `koanf:"exporter"`
	// Endpoint OTLP 端点（otlp-grpc / otlp-http）
	Endpoint string `koanf:"endpoint"`
	// Insecure 是否使用不安全连接
	Insecure bool `koanf:"insecure"`
	// SampleRate 采样率 (0.0-1.0)
	SampleRate float64 `koanf:"sample_rate"`
	// Timeout 导出超时
	Timeout time.Duration `koanf:"timeout"`
	// Langfuse Langfuse OTLP 接入配置（exporter=langfuse）
	Langfuse LangfuseConfig `koanf:"langfuse"`
}

// LangfuseConfig Langfuse 接入配置
type LangfuseConfig struct {
	// Host Langfuse 地址，如 https://cloud.langfuse.com
	Host string `koanf:"host"`
	// PublicKey 公钥
	PublicKey string `koanf:"public_key"`
	// SecretKey 私钥
	SecretKey string `koanf:"secret_key"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用指标
	Enabled bool `koanf:"enabled"`
	// Backend 指标后端: memory / prometheus / otlp-grpc / otlp-http / stdout / none
	Backend string `koanf:"backend"`
	// Endpoint OTLP 端点
	Endpoint string `koanf:"endpoint"`
	// Insecure 是否使用不安全连接
	Insecure bool `koanf:"insecure"`
	// Interval 导出间隔
	Interval time.Duration `koanf:"interval"`
	// Namespace Prometheus 指标命名空间
	Namespace string `koanf:"namespace"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志级别 (debug, info, warn, error)
	Level string `koanf:"level"`
	// Format 日志格式 (console, json)
	Format string `koanf:"format"`
	// IncludeTraceID 是否包含 Trace ID
	IncludeTraceID bool `koanf:"include_trace_id"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "bedrock-agent",
		ServiceVersion: "1.2.0",
		Environment:    "development",
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   ExporterLangfuse,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
			Timeout:    30 * time.Second,
			Langfuse: LangfuseConfig{
				Host: "https://cloud.langfuse.com",
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Backend:   "memory",
			Endpoint:  "localhost:4317",
			Insecure:  true,
			Interval:  60 * time.Second,
			Namespace: "bedrock_agent",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			IncludeTraceID: true,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == ExporterLangfuse {
		if c.Tracing.Langfuse.PublicKey == "" || c.Tracing.Langfuse.SecretKey == "" {
			return ErrMissingCredentials
		}
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.ServiceName == "" {
		c.ServiceName = defaults.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = defaults.ServiceVersion
	}
	if c.Environment == "" {
		c.Environment = defaults.Environment
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = defaults.Tracing.Endpoint
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
	if c.Tracing.Timeout == 0 {
		c.Tracing.Timeout = defaults.Tracing.Timeout
	}
	if c.Tracing.Langfuse.Host == "" {
		c.Tracing.Langfuse.Host = defaults.Tracing.Langfuse.Host
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = defaults.Metrics.Backend
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = defaults.Metrics.Endpoint
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = defaults.Metrics.Interval
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	return c
}

// FromAppConfig 由应用配置生成可观测性配置
//
// 未配置 Langfuse 凭证时 langfuse 导出器降级为 none，追踪仍在进程内生效。
func FromAppConfig(cfg *config.Config) Config {
	obs := cfg.Observability.WithDefaults()
	out := DefaultConfig()

	out.Enabled = obs.Enabled
	out.ServiceName = obs.ServiceName
	if cfg.Agent.Environment != "" {
		out.Environment = cfg.Agent.Environment
	}

	out.Tracing.Enabled = obs.Enabled
	out.Tracing.Exporter = ExporterType(obs.Exporter)
	if obs.TracerEndpoint != "" {
		out.Tracing.Endpoint = obs.TracerEndpoint
	}
	out.Tracing.SampleRate = obs.SampleRate
	out.Tracing.Langfuse = LangfuseConfig{
		Host:      obs.Langfuse.Host,
		PublicKey: obs.Langfuse.PublicKey,
		SecretKey: obs.Langfuse.SecretKey,
	}
	if out.Tracing.Exporter == ExporterLangfuse && !obs.Langfuse.HasCredentials() {
		out.Tracing.Exporter = ExporterNone
	}

	out.Metrics.Enabled = obs.Enabled && obs.MetricsExporter != "none"
	out.Metrics.Backend = obs.MetricsExporter
	if obs.MetricsEndpoint != "" {
		out.Metrics.Endpoint = obs.MetricsEndpoint
	}

	if cfg.Logging.Level != "" {
		out.Logging.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		out.Logging.Format = cfg.Logging.Format
	}
	return out
}
