package config

import "time"

// Provider LLM 提供商类型
type Provider string

const (
	// ProviderBedrock Amazon Bedrock (Converse API)
	ProviderBedrock Provider = "bedrock"
	// ProviderOpenAI OpenAI 提供商
	ProviderOpenAI Provider = "openai"
)

// IsValid 检查提供商是否有效
func (p Provider) IsValid() bool {
	switch p {
	case ProviderBedrock, ProviderOpenAI:
		return true
	default:
		return false
	}
}

// DefaultModelID 默认 Bedrock 模型
const DefaultModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// DefaultRegion 默认 AWS 区域
const DefaultRegion = "us-east-1"

// DefaultTemperature 默认采样温度，由默认值表写入，显式配置的 0 保持不变
const DefaultTemperature = 0.7

// LLMConfig LLM 配置
type LLMConfig struct {
	// Provider 提供商
	Provider Provider `koanf:"provider"`
	// Model 模型名称（Bedrock 为 model ID 或 inference profile）
	Model string `koanf:"model"`
	// Region AWS 区域（仅 bedrock）
	Region string `koanf:"region"`
	// APIKey API 密钥（仅 openai）
	APIKey string `koanf:"api_key"`
	// BaseURL 自定义 API 端点
	BaseURL string `koanf:"base_url"`
	// Temperature 采样温度
	// 默认: 0.7, 范围: [0, 1]
	Temperature float64 `koanf:"temperature"`
	// MaxTokens 最大输出 token 数
	// 默认: 4096
	MaxTokens int `koanf:"max_tokens"`
	// PromptCaching 系统提示词足够长时写入 cache point
	PromptCaching bool `koanf:"prompt_caching"`
	// Timeout 请求超时时间
	// 默认: 60s, 最大: 5m
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries 最大重试次数
	// 默认: 3, 最大: 10
	MaxRetries int `koanf:"max_retries"`
	// RetryDelay 重试间隔基数
	// 默认: 1s
	RetryDelay time.Duration `koanf:"retry_delay"`
	// FallbackAPIKey 备用 OpenAI 密钥，来自 OPENAI_API_KEY
	FallbackAPIKey string `koanf:"fallback_api_key"`
	// Fallback 备用提供商配置
	Fallback *LLMConfig `koanf:"fallback"`
}

// Validate 验证 LLM 配置
func (c *LLMConfig) Validate() error {
	if !c.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if c.Model == "" {
		return ErrModelRequired
	}
	if c.Provider == ProviderBedrock && c.Region == "" {
		return ErrRegionRequired
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return ErrInvalidTemperature
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Timeout > 5*time.Minute {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.Fallback != nil {
		return c.Fallback.Validate()
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c LLMConfig) WithDefaults() LLMConfig {
	if c.Provider == "" {
		c.Provider = ProviderBedrock
	}
	if c.Model == "" && c.Provider == ProviderBedrock {
		c.Model = DefaultModelID
	}
	if c.Region == "" && c.Provider == ProviderBedrock {
		c.Region = DefaultRegion
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.Fallback != nil {
		fb := c.Fallback.WithDefaults()
		if fb.Provider == ProviderOpenAI && fb.APIKey == "" {
			fb.APIKey = c.FallbackAPIKey
		}
		c.Fallback = &fb
	}
	return c
}
