package tracing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

func TestShortModelName(t *testing.T) {
	tests := map[string]string{
		"anthropic.claude-3-5-sonnet-20241022-v2:0":                              "claude-3-5-sonnet-20241022-v2",
		"global.anthropic.claude-haiku-4-5-20251001-v1:0":                        "claude-haiku-4-5-20251001-v1",
		"arn:aws:bedrock:us-east-1:123:inference-profile/us.anthropic.claude-x:0": "claude-x",
		"gpt-4": "gpt-4",
		"":      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, tracing.ShortModelName(in), in)
	}
}

func TestBaseTags(t *testing.T) {
	cfg := tracing.DefaultTracingConfig()
	assert.Equal(t, []string{"env:development", "region:us-east-1", "no-tools"}, cfg.BaseTags())

	cfg.Environment = "production"
	cfg.Model = "anthropic.claude-3-haiku-20240307-v1:0"
	cfg.Tools = []string{"Read"}
	cfg.Tags = []string{"api-v2"}
	assert.Equal(t, []string{
		"env:production", "region:us-east-1", "model:claude-3-haiku-20240307-v1", "with-tools", "api-v2",
	}, cfg.BaseTags())
}

func TestBaseMetadata(t *testing.T) {
	cfg := tracing.TracingConfig{SessionID: "s", UserID: "u", Cwd: "/tmp"}.WithDefaults()
	md := cfg.BaseMetadata()

	assert.Equal(t, tracing.AppVersion, md["version"])
	assert.Equal(t, "development", md["environment"])
	assert.Equal(t, "us-east-1", md["aws_region"])
	assert.Equal(t, "/tmp", md["cwd"])
	assert.Equal(t, tracing.SDKName, md["sdk"])
	assert.Equal(t, "s", md["session_id"])
	assert.Equal(t, "u", md["user_id"])
	assert.Equal(t, 4096, cfg.MaxTokens)
}

func TestWithDefaults_KeepsZeroTemperature(t *testing.T) {
	assert.Equal(t, 0.0, tracing.TracingConfig{}.WithDefaults().Temperature)
	assert.Equal(t, 0.3, tracing.TracingConfig{Temperature: 0.3}.WithDefaults().Temperature)
	assert.Equal(t, 0.7, tracing.DefaultTracingConfig().Temperature)
}
