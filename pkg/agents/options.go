package agents

import (
	"os"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// Option Agent 配置选项函数
type Option func(*AgentOptions)

// AgentOptions Agent 配置选项
type AgentOptions struct {
	Name         string
	SystemPrompt string

	// Model 写入 Generation 的模型 ID，默认取 Provider.Model()
	Model       string
	Temperature float64
	MaxTokens   int

	MaxIterations int
	Timeout       time.Duration

	// 追踪配置
	Environment string
	AWSRegion   string
	WorkDir     string
	Tags        []string
	SessionID   string
	UserID      string

	// SessionHistory 按 SessionID 保存多轮对话
	SessionHistory bool

	Tracing *tracing.Client
	Logger  otel.Logger
	Metrics otel.Metrics
}

// DefaultAgentOptions 返回默认选项
func DefaultAgentOptions() *AgentOptions {
	cwd, _ := os.Getwd()
	return &AgentOptions{
		Name:          "bedrock-agent",
		Temperature:   0.7,
		MaxTokens:     4096,
		MaxIterations: 10,
		Timeout:       5 * time.Minute,
		Environment:   "development",
		AWSRegion:     config.DefaultRegion,
		WorkDir:       cwd,
		Tracing:       tracing.NewNoopClient(),
		Logger:        otel.NewNoopLogger(),
		Metrics:       otel.NewNoopMetrics(),
	}
}

// WithConfig 从应用配置填充选项
func WithConfig(cfg *config.Config) Option {
	return func(o *AgentOptions) {
		llmCfg := cfg.LLM.WithDefaults()
		agentCfg := cfg.Agent.WithDefaults()

		o.Name = agentCfg.Name
		o.SystemPrompt = agentCfg.SystemPrompt
		o.Model = llmCfg.Model
		o.Temperature = llmCfg.Temperature
		o.MaxTokens = llmCfg.MaxTokens
		o.MaxIterations = agentCfg.MaxIterations
		o.Timeout = agentCfg.Timeout
		o.Environment = agentCfg.Environment
		o.AWSRegion = llmCfg.Region
		o.Tags = append([]string(nil), agentCfg.Tags...)
		if agentCfg.WorkDir != "" {
			o.WorkDir = agentCfg.WorkDir
		}
	}
}

// WithName 设置 Agent 名称
func WithName(name string) Option {
	return func(o *AgentOptions) {
		o.Name = name
	}
}

// WithSystemPrompt 设置系统提示词
func WithSystemPrompt(prompt string) Option {
	return func(o *AgentOptions) {
		o.SystemPrompt = prompt
	}
}

// WithModel 设置写入追踪的模型 ID
func WithModel(model string) Option {
	return func(o *AgentOptions) {
		o.Model = model
	}
}

// WithAgentTemperature 设置温度参数
func WithAgentTemperature(t float64) Option {
	return func(o *AgentOptions) {
		o.Temperature = t
	}
}

// WithAgentMaxTokens 设置最大 token 数
func WithAgentMaxTokens(n int) Option {
	return func(o *AgentOptions) {
		o.MaxTokens = n
	}
}

// WithMaxIterations 设置工具循环最大轮数
func WithMaxIterations(n int) Option {
	return func(o *AgentOptions) {
		o.MaxIterations = n
	}
}

// WithAgentTimeout 设置超时时间
func WithAgentTimeout(d time.Duration) Option {
	return func(o *AgentOptions) {
		o.Timeout = d
	}
}

// WithEnvironment 设置部署环境
func WithEnvironment(env string) Option {
	return func(o *AgentOptions) {
		o.Environment = env
	}
}

// WithRegion 设置写入追踪元数据的 AWS 区域
func WithRegion(region string) Option {
	return func(o *AgentOptions) {
		o.AWSRegion = region
	}
}

// WithWorkDir 设置工作目录
func WithWorkDir(dir string) Option {
	return func(o *AgentOptions) {
		o.WorkDir = dir
	}
}

// WithTags 追加 Trace 标签
func WithTags(tags ...string) Option {
	return func(o *AgentOptions) {
		o.Tags = append(o.Tags, tags...)
	}
}

// WithSession 设置默认会话 ID，Input.SessionID 优先
func WithSession(id string) Option {
	return func(o *AgentOptions) {
		o.SessionID = id
	}
}

// WithUser 设置默认用户 ID，Input.UserID 优先
func WithUser(id string) Option {
	return func(o *AgentOptions) {
		o.UserID = id
	}
}

// WithSessionHistory 开启按会话保存的多轮历史
func WithSessionHistory(enabled bool) Option {
	return func(o *AgentOptions) {
		o.SessionHistory = enabled
	}
}

// WithTracing 设置追踪客户端
func WithTracing(client *tracing.Client) Option {
	return func(o *AgentOptions) {
		if client != nil {
			o.Tracing = client
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l otel.Logger) Option {
	return func(o *AgentOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m otel.Metrics) Option {
	return func(o *AgentOptions) {
		if m != nil {
			o.Metrics = m
		}
	}
}
