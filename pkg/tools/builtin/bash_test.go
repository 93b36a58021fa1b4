package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBash_RunsInWorkDir(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), "marker.txt"), []byte("x"), 0o644))

	out, err := NewBash(sb).Execute(context.Background(), map[string]interface{}{"command": "ls"})
	require.NoError(t, err)
	assert.Equal(t, "marker.txt", out)
}

func TestBash_StderrAndFailure(t *testing.T) {
	bash := NewBash(newTestSandbox(t))

	out, err := bash.Execute(context.Background(), map[string]interface{}{"command": "echo out; echo err >&2"})
	require.NoError(t, err)
	assert.Equal(t, "out\nSTDERR: err", out)

	out, err = bash.Execute(context.Background(), map[string]interface{}{"command": "printf 'a\\nb\\n\\n'; echo err >&2"})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nSTDERR: err", out)

	_, err = bash.Execute(context.Background(), map[string]interface{}{"command": "exit 3"})
	assert.ErrorContains(t, err, "command failed")
}

func TestBash_Blocked(t *testing.T) {
	bash := NewBash(newTestSandbox(t), WithBlockedCommands("curl"))

	for _, cmd := range []string{"rm -rf /", "sudo SHUTDOWN now", "curl http://example.com"} {
		_, err := bash.Execute(context.Background(), map[string]interface{}{"command": cmd})
		assert.ErrorContains(t, err, "blocked", cmd)
		assert.Error(t, bash.Validate(map[string]interface{}{"command": cmd}))
	}

	assert.Error(t, bash.Validate(map[string]interface{}{"command": "  "}))
	assert.Error(t, bash.Validate(map[string]interface{}{}))
	assert.NoError(t, bash.Validate(map[string]interface{}{"command": "echo hi", "timeout": float64(5)}))
}

func TestBash_Timeout(t *testing.T) {
	bash := NewBash(newTestSandbox(t), WithBashTimeout(50*time.Millisecond))

	_, err := bash.Execute(context.Background(), map[string]interface{}{"command": "sleep 2"})
	assert.ErrorContains(t, err, "timed out")
}
