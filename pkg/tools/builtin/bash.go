package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/tools"
)

// DefaultBashTimeout 命令默认超时
const DefaultBashTimeout = 30 * time.Second

// maxBashTimeout 调用方可请求的最大超时
const maxBashTimeout = 10 * time.Minute

// defaultBlocked 默认禁止的命令片段
var defaultBlocked = []string{
	"rm -rf /",
	"rm -rf /*",
	":(){ :|:& };:",
	"dd if=/dev/zero",
	"mkfs",
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
}

// BashParams Bash 工具参数
type BashParams struct {
	Command string `json:"command" desc:"The shell command to execute" required:"true"`
	Timeout int    `json:"timeout" desc:"Timeout in seconds (default 30, max 600)"`
}

// Bash 在工作目录中执行 shell 命令
type Bash struct {
	workDir string
	blocked []string
	timeout time.Duration
}

// BashOption Bash 配置选项
type BashOption func(*Bash)

// WithBlockedCommands 追加禁止的命令
func WithBlockedCommands(commands ...string) BashOption {
	return func(b *Bash) {
		b.blocked = append(b.blocked, commands...)
	}
}

// WithBashTimeout 设置默认超时
func WithBashTimeout(d time.Duration) BashOption {
	return func(b *Bash) {
		b.timeout = d
	}
}

// NewBash 创建 Bash 工具
func NewBash(sb *Sandbox, opts ...BashOption) *Bash {
	b := &Bash{
		workDir: sb.Root(),
		blocked: append([]string(nil), defaultBlocked...),
		timeout: DefaultBashTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name 返回工具名称
func (b *Bash) Name() string {
	return "Bash"
}

// Description 返回工具描述
func (b *Bash) Description() string {
	return "Execute a shell command in the working directory. Dangerous commands are blocked."
}

// Parameters 返回参数 Schema
func (b *Bash) Parameters() tools.ParameterSchema {
	return tools.SchemaFromStruct(BashParams{})
}

// Validate 验证参数
func (b *Bash) Validate(args map[string]interface{}) error {
	if err := tools.Validate(b.Parameters(), args); err != nil {
		return err
	}
	return b.checkCommand(stringArg(args, "command"))
}

// Execute 执行命令
func (b *Bash) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command := stringArg(args, "command")
	if err := b.checkCommand(command); err != nil {
		return "", err
	}

	timeout := b.timeout
	if secs := intArg(args, "timeout"); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > maxBashTimeout {
		timeout = maxBashTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = b.workDir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := strings.TrimRight(stdout.String(), "\n")
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "STDERR: " + stderr.String()
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("command timed out after %v", timeout)
		}
		return strings.TrimSpace(output), fmt.Errorf("command failed: %w", err)
	}

	return strings.TrimSpace(output), nil
}

func (b *Bash) checkCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is empty")
	}
	lower := strings.ToLower(command)
	for _, blocked := range b.blocked {
		if strings.Contains(lower, strings.ToLower(blocked)) {
			return fmt.Errorf("command is blocked for security: %s", command)
		}
	}
	return nil
}

var _ tools.ToolWithValidation = (*Bash)(nil)

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
