package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/easyops/bedrock-agent-go/pkg/tools"
)

// DefaultReadLimit Read 默认返回的最大行数
const DefaultReadLimit = 2000

// maxLineLength 单行超过该长度时截断
const maxLineLength = 2000

// ReadParams Read 工具参数
type ReadParams struct {
	Path   string `json:"path" desc:"File path, relative to the working directory" required:"true"`
	Offset int    `json:"offset" desc:"1-based line number to start reading from"`
	Limit  int    `json:"limit" desc:"Maximum number of lines to return (default 2000)"`
}

// WriteParams Write 工具参数
type WriteParams struct {
	Path    string `json:"path" desc:"File path, relative to the working directory" required:"true"`
	Content string `json:"content" desc:"Full content to write" required:"true"`
}

// Sandbox 把文件访问限制在工作目录内
type Sandbox struct {
	root string
}

// NewSandbox 创建沙箱，workDir 为空时使用当前目录
func NewSandbox(workDir string) (*Sandbox, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	root, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	return &Sandbox{root: filepath.Clean(root)}, nil
}

// Root 返回工作目录
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve 把路径解析为工作目录内的绝对路径
func (s *Sandbox) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the working directory", path)
	}
	return path, nil
}

// NewRead 创建 Read 工具
func NewRead(sb *Sandbox) *tools.FuncTool {
	return tools.NewTypedTool("Read",
		"Read a text file from the working directory. Returns numbered lines.",
		func(ctx context.Context, p ReadParams) (string, error) {
			path, err := sb.Resolve(p.Path)
			if err != nil {
				return "", err
			}
			return readLines(path, p.Offset, p.Limit)
		},
	)
}

// NewWrite 创建 Write 工具
func NewWrite(sb *Sandbox) *tools.FuncTool {
	return tools.NewTypedTool("Write",
		"Write a text file in the working directory, replacing any existing content.",
		func(ctx context.Context, p WriteParams) (string, error) {
			path, err := sb.Resolve(p.Path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("create directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(p.Content), 0o644); err != nil {
				return "", fmt.Errorf("write file: %w", err)
			}
			rel, _ := filepath.Rel(sb.Root(), path)
			return fmt.Sprintf("Wrote %d bytes to %s", len(p.Content), rel), nil
		},
	)
}

func readLines(path string, offset, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", err
	}
	defer f.Close()

	if offset < 1 {
		offset = 1
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var sb strings.Builder
	line := 0
	written := 0
	for scanner.Scan() {
		line++
		if line < offset {
			continue
		}
		if written >= limit {
			break
		}
		text := scanner.Text()
		if len(text) > maxLineLength {
			text = text[:maxLineLength] + "..."
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", line, text)
		written++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if written == 0 {
		if line == 0 {
			return "(empty file)", nil
		}
		return fmt.Sprintf("(offset %d is past end of file, %d lines)", offset, line), nil
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
