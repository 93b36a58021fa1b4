package config

import "time"

// AgentConfig Agent 配置
type AgentConfig struct {
	// Name Agent 名称
	Name string `koanf:"name"`
	// SystemPrompt 系统提示词
	SystemPrompt string `koanf:"system_prompt"`
	// MaxIterations 工具调用循环的最大轮数
	// 默认: 10, 范围: [1, 100]
	MaxIterations int `koanf:"max_iterations"`
	// Tools 允许使用的内置工具
	// 默认: [Read, Write]
	Tools []string `koanf:"tools"`
	// WorkDir 文件工具的工作目录，默认当前目录
	WorkDir string `koanf:"work_dir"`
	// Environment 部署环境，写入 trace 标签 env:<environment>
	// 默认: development
	Environment string `koanf:"environment"`
	// Tags 附加到每条 trace 的标签
	Tags []string `koanf:"tags"`
	// Timeout 执行超时时间
	// 默认: 5m
	Timeout time.Duration `koanf:"timeout"`
}

// Validate 验证 Agent 配置
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.MaxIterations < 1 || c.MaxIterations > 100 {
		return ErrInvalidMaxIterations
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c AgentConfig) WithDefaults() AgentConfig {
	if c.Name == "" {
		c.Name = "bedrock-agent"
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 10
	}
	if c.Tools == nil {
		c.Tools = []string{"Read", "Write"}
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	return c
}
