package llm

import (
	"context"
	"fmt"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
)

// FromConfig 从配置创建 LLM Provider
//
// 配置了 fallback 时返回 FallbackProvider，主提供商在前。
func FromConfig(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// 创建主提供商
	primary, err := createProviderFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 如果有备用配置，创建 FallbackProvider
	if cfg.Fallback != nil {
		fallback, err := FromConfig(ctx, *cfg.Fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback provider: %w", err)
		}
		return NewFallbackProvider(primary, []Provider{fallback}), nil
	}

	return primary, nil
}

// createProviderFromConfig 根据配置创建特定提供商
func createProviderFromConfig(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	opts := []Option{
		WithModel(cfg.Model),
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.MaxRetries),
		WithRetryDelay(cfg.RetryDelay),
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	switch cfg.Provider {
	case config.ProviderBedrock:
		opts = append(opts, WithRegion(cfg.Region), WithPromptCaching(cfg.PromptCaching))
		return NewBedrock(ctx, opts...)
	case config.ProviderOpenAI:
		if cfg.APIKey != "" {
			opts = append(opts, WithAPIKey(cfg.APIKey))
		}
		return NewOpenAI(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() config.LLMConfig {
	return config.LLMConfig{Provider: config.ProviderBedrock, Temperature: config.DefaultTemperature}.WithDefaults()
}

// JudgeConfig 返回评估使用的评判模型配置
// 评判温度由请求级参数固定为 0；fallbackAPIKey 非空时追加 OpenAI 备用
func JudgeConfig(model, region, fallbackModel, fallbackAPIKey string) config.LLMConfig {
	cfg := config.LLMConfig{
		Provider:  config.ProviderBedrock,
		Model:     model,
		Region:    region,
		MaxTokens: 4096,
	}
	if fallbackAPIKey != "" && fallbackModel != "" {
		cfg.Fallback = &config.LLMConfig{
			Provider: config.ProviderOpenAI,
			Model:    fallbackModel,
			APIKey:   fallbackAPIKey,
		}
	}
	return cfg
}
