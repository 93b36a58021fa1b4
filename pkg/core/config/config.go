// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 环境变量前缀，嵌套层级用双下划线分隔
// 例如 BEDROCK_AGENT_LLM__MAX_RETRIES -> llm.max_retries
const EnvPrefix = "BEDROCK_AGENT_"

// Config 全局配置结构
type Config struct {
	// LLM LLM 配置
	LLM LLMConfig `koanf:"llm"`
	// Agent Agent 配置
	Agent AgentConfig `koanf:"agent"`
	// Observability 可观测性配置
	Observability ObservabilityConfig `koanf:"observability"`
	// Guardrail 内容安全配置
	Guardrail GuardrailConfig `koanf:"guardrail"`
	// CacheMetrics prompt cache 指标配置
	CacheMetrics CacheMetricsConfig `koanf:"cache_metrics"`
	// Evaluation 评估配置
	Evaluation EvaluationConfig `koanf:"evaluation"`
	// Logging 日志配置
	Logging LoggingConfig `koanf:"logging"`
}

// Validate 验证全部配置
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Guardrail.Validate(); err != nil {
		return fmt.Errorf("guardrail: %w", err)
	}
	if err := c.CacheMetrics.Validate(); err != nil {
		return fmt.Errorf("cache_metrics: %w", err)
	}
	if err := c.Evaluation.Validate(); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	return nil
}

// defaults 在文件和环境变量之前写入，布尔默认值只能在这里给出
var defaults = map[string]interface{}{
	"llm.provider":                    string(ProviderBedrock),
	"llm.model":                       DefaultModelID,
	"llm.region":                      DefaultRegion,
	"llm.temperature":                 DefaultTemperature,
	"llm.max_tokens":                  4096,
	"llm.timeout":                     "60s",
	"llm.max_retries":                 3,
	"llm.retry_delay":                 "1s",
	"agent.name":                      "bedrock-agent",
	"agent.max_iterations":            10,
	"agent.tools":                     []string{"Read", "Write"},
	"agent.environment":               "development",
	"agent.timeout":                   "5m",
	"observability.enabled":           true,
	"observability.service_name":      "bedrock-agent",
	"observability.exporter":          "langfuse",
	"observability.metrics_exporter":  "memory",
	"observability.sample_rate":       1.0,
	"observability.langfuse.host":     "https://cloud.langfuse.com",
	"guardrail.version":               "DRAFT",
	"guardrail.input_filtering":       true,
	"guardrail.output_filtering":      true,
	"guardrail.check_interval":        100,
	"cache_metrics.log_group":         "bedrock-logs",
	"cache_metrics.model_id":          "global.anthropic.claude-haiku-4-5-20251001-v1:0",
	"cache_metrics.hours":             1,
	"cache_metrics.poll_interval":     "1s",
	"cache_metrics.max_wait":          "30s",
	"evaluation.dataset":              "evaluation_dataset.json",
	"evaluation.judge_model":          "anthropic.claude-3-haiku-20240307-v1:0",
	"evaluation.judge_fallback_model": "gpt-4",
	"evaluation.custom_metrics":       true,
	"evaluation.concurrency":          1,
	"evaluation.report_path":          "evaluation_report.json",
	"logging.level":                   "info",
	"logging.format":                  "json",
}

// wellKnownEnv 兼容常见的 AWS / Langfuse 环境变量
var wellKnownEnv = map[string]string{
	"MODEL_ID":                  "llm.model",
	"AWS_REGION":                "llm.region",
	"OPENAI_API_KEY":            "llm.fallback_api_key",
	"BEDROCK_GUARDRAIL_ID":      "guardrail.id",
	"BEDROCK_GUARDRAIL_VERSION": "guardrail.version",
	"LANGFUSE_PUBLIC_KEY":       "observability.langfuse.public_key",
	"LANGFUSE_SECRET_KEY":       "observability.langfuse.secret_key",
	"LANGFUSE_HOST":             "observability.langfuse.host",
	"LANGFUSE_BASE_URL":         "observability.langfuse.host",
}

// Loader 配置加载器
type Loader struct {
	k *koanf.Koanf
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
	}
}

// LoadDefaults 写入默认值
func (l *Loader) LoadDefaults() error {
	for key, val := range defaults {
		if err := l.k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// LoadFile 从文件加载配置
func (l *Loader) LoadFile(path string) error {
	// 检查文件是否存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // 文件不存在不报错，使用默认值
	}

	// 根据文件扩展名选择解析器
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err := l.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv 从环境变量加载配置
func (l *Loader) LoadEnv(prefix string) error {
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		// 转换环境变量名: BEDROCK_AGENT_LLM__MAX_RETRIES -> llm.max_retries
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil)
}

// LoadWellKnownEnv 加载 MODEL_ID、AWS_REGION、LANGFUSE_* 等通用环境变量
//
// AWS_REGION 同时作为未显式配置的 cache_metrics.region。
func (l *Loader) LoadWellKnownEnv() error {
	if err := l.k.Load(env.Provider("", ".", func(s string) string {
		// 返回空字符串的变量会被忽略
		return wellKnownEnv[s]
	}), nil); err != nil {
		return err
	}
	if region := os.Getenv("AWS_REGION"); region != "" && l.k.String("cache_metrics.region") == "" {
		return l.k.Set("cache_metrics.region", region)
	}
	return nil
}

// Unmarshal 解析配置到结构体
func (l *Loader) Unmarshal(cfg *Config) error {
	return l.k.Unmarshal("", cfg)
}

// Load 加载完整配置（默认值 + 文件 + 环境变量）
func Load(configPath string) (*Config, error) {
	loader := NewLoader()

	if err := loader.LoadDefaults(); err != nil {
		return nil, err
	}

	// 加载配置文件
	if configPath != "" {
		if err := loader.LoadFile(configPath); err != nil {
			return nil, err
		}
	}

	// 通用环境变量，其后是带前缀的变量（优先级最高）
	if err := loader.LoadWellKnownEnv(); err != nil {
		return nil, err
	}
	if err := loader.LoadEnv(EnvPrefix); err != nil {
		return nil, err
	}

	// 解析到结构体
	cfg := &Config{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 应用默认值
	applyDefaults(cfg)

	return cfg, nil
}

// Default 返回不读取文件和环境变量的默认配置
func Default() *Config {
	loader := NewLoader()
	cfg := &Config{}
	if err := loader.LoadDefaults(); err == nil {
		_ = loader.Unmarshal(cfg)
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults 应用默认配置值
func applyDefaults(cfg *Config) {
	cfg.LLM = cfg.LLM.WithDefaults()
	cfg.Agent = cfg.Agent.WithDefaults()
	cfg.Observability = cfg.Observability.WithDefaults()

	if cfg.Guardrail.Version == "" {
		cfg.Guardrail.Version = "DRAFT"
	}
	if cfg.Guardrail.Region == "" {
		cfg.Guardrail.Region = cfg.LLM.Region
	}
	if cfg.CacheMetrics.Region == "" {
		cfg.CacheMetrics.Region = DefaultCacheMetricsRegion
	}
	if cfg.CacheMetrics.PollInterval == 0 {
		cfg.CacheMetrics.PollInterval = time.Second
	}
	if cfg.CacheMetrics.MaxWait == 0 {
		cfg.CacheMetrics.MaxWait = 30 * time.Second
	}
	if cfg.Evaluation.Concurrency == 0 {
		cfg.Evaluation.Concurrency = 1
	}
}
