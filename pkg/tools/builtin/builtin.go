// Package builtin 提供智能体默认可用的文件与命令工具
package builtin

import (
	"fmt"

	"github.com/easyops/bedrock-agent-go/pkg/tools"
)

// Names 所有内置工具名称
var Names = []string{"Read", "Write", "Bash"}

// DefaultNames 未指定时启用的工具
var DefaultNames = []string{"Read", "Write"}

// ByName 按名称创建内置工具，文件访问限制在 workDir 内
func ByName(names []string, workDir string) ([]tools.Tool, error) {
	sb, err := NewSandbox(workDir)
	if err != nil {
		return nil, err
	}

	result := make([]tools.Tool, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "Read":
			result = append(result, NewRead(sb))
		case "Write":
			result = append(result, NewWrite(sb))
		case "Bash":
			result = append(result, NewBash(sb))
		default:
			return nil, fmt.Errorf("unknown tool %q (available: %v)", name, Names)
		}
	}
	return result, nil
}

// Registry 创建包含指定工具的注册表
func Registry(names []string, workDir string) (*tools.Registry, error) {
	list, err := ByName(names, workDir)
	if err != nil {
		return nil, err
	}
	reg := tools.NewRegistry()
	if err := reg.RegisterAll(list...); err != nil {
		return nil, err
	}
	return reg, nil
}
