package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.ProviderBedrock, cfg.LLM.Provider)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"Read", "Write"}, cfg.Agent.Tools)
	assert.Equal(t, "DRAFT", cfg.Guardrail.Version)
	assert.True(t, cfg.Guardrail.InputFiltering)
	assert.True(t, cfg.Guardrail.OutputFiltering)
	assert.Equal(t, 100, cfg.Guardrail.CheckInterval)
	assert.Equal(t, "bedrock-logs", cfg.CacheMetrics.LogGroup)
	assert.Equal(t, 30*time.Second, cfg.CacheMetrics.MaxWait)
	assert.Equal(t, "gpt-4", cfg.Evaluation.JudgeFallbackModel)
	assert.Equal(t, "evaluation_report.json", cfg.Evaluation.ReportPath)
	require.NoError(t, cfg.Validate())
}

func TestLoad_CacheMetricsRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCacheMetricsRegion, cfg.CacheMetrics.Region)

	t.Setenv("AWS_REGION", "eu-central-1")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", cfg.LLM.Region)
	assert.Equal(t, "eu-central-1", cfg.CacheMetrics.Region)

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_metrics:\n  region: ap-northeast-1\n"), 0o600))
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ap-northeast-1", cfg.CacheMetrics.Region)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	data := `
llm:
  model: anthropic.claude-3-7-sonnet-20250219-v1:0
  prompt_caching: true
guardrail:
  id: gr-123
  input_filtering: false
  check_interval: 50
agent:
  tags: [demo, nightly]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic.claude-3-7-sonnet-20250219-v1:0", cfg.LLM.Model)
	assert.True(t, cfg.LLM.PromptCaching)
	assert.Equal(t, "gr-123", cfg.Guardrail.ID)
	assert.False(t, cfg.Guardrail.InputFiltering)
	assert.True(t, cfg.Guardrail.OutputFiltering)
	assert.Equal(t, 50, cfg.Guardrail.CheckInterval)
	assert.Equal(t, []string{"demo", "nightly"}, cfg.Agent.Tags)
}

func TestLoad_ZeroTemperature(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTemperature, cfg.LLM.Temperature)

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  temperature: 0\n"), 0o600))
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Zero(t, cfg.LLM.WithDefaults().Temperature)
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cache_metrics":{"hours":6}}`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.CacheMetrics.Hours)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))

	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModelID, cfg.LLM.Model)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")
	t.Setenv("AWS_REGION", "ap-northeast-1")
	t.Setenv("BEDROCK_GUARDRAIL_ID", "gr-env")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-lf-1")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-lf-1")
	t.Setenv("BEDROCK_AGENT_LLM__MAX_RETRIES", "5")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.LLM.Model)
	assert.Equal(t, "ap-northeast-1", cfg.LLM.Region)
	assert.Equal(t, "ap-northeast-1", cfg.Guardrail.Region)
	assert.Equal(t, "gr-env", cfg.Guardrail.ID)
	assert.True(t, cfg.Observability.Langfuse.HasCredentials())
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
}

func TestLLMConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr error
	}{
		{"valid", config.LLMConfig{}.WithDefaults(), nil},
		{"bad provider", config.LLMConfig{Provider: "ollama", Model: "m"}, config.ErrInvalidProvider},
		{"no model", config.LLMConfig{Provider: config.ProviderOpenAI}, config.ErrModelRequired},
		{"no region", config.LLMConfig{Provider: config.ProviderBedrock, Model: "m"}, config.ErrRegionRequired},
		{"temperature", config.LLMConfig{Provider: config.ProviderOpenAI, Model: "m", Temperature: 1.5}, config.ErrInvalidTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLLMConfig_FallbackInheritsAPIKey(t *testing.T) {
	cfg := config.LLMConfig{
		FallbackAPIKey: "sk-openai",
		Fallback:       &config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4"},
	}.WithDefaults()

	require.NotNil(t, cfg.Fallback)
	assert.Equal(t, "sk-openai", cfg.Fallback.APIKey)
	assert.Equal(t, 3, cfg.Fallback.MaxRetries)
}
