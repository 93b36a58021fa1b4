package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/guardrail"
)

func TestCommandTree(t *testing.T) {
	tests := []struct {
		path  []string
		flags []string
	}{
		{[]string{"chat"}, []string{"stream", "session", "user", "system"}},
		{[]string{"query"}, []string{"session", "user"}},
		{[]string{"tools"}, []string{"tools", "work-dir", "list"}},
		{[]string{"guardrail", "check"}, []string{"source", "json"}},
		{[]string{"guardrail", "chat"}, []string{"interval"}},
		{[]string{"cache", "metrics"}, []string{"model-id", "hours", "json", "schedule"}},
		{[]string{"cache", "test"}, []string{"pause"}},
		{[]string{"cache", "compare"}, []string{"runs", "pause"}},
		{[]string{"eval"}, []string{"dataset", "report", "no-custom-metrics", "db"}},
	}
	for _, tt := range tests {
		cmd, _, err := rootCmd.Find(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.path[len(tt.path)-1], cmd.Name())
		for _, f := range tt.flags {
			assert.NotNil(t, cmd.Flags().Lookup(f), "%v --%s", tt.path, f)
		}
	}

	for _, f := range []string{"config", "verbose", "metrics-addr"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(f), f)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one\ntwo", 10))
	assert.Equal(t, "abc...", firstLine("abcdef", 3))
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, guardrail.SourceOutput, guardrail.Result{
		Action:       guardrail.ActionIntervened,
		Blocked:      true,
		FilteredText: "[redacted]",
		Assessments: []guardrail.Assessment{{
			PIIEntities: []guardrail.PIIEntity{{Type: "EMAIL", Match: "a@b.c", Action: "ANONYMIZED"}},
		}},
	})
	out := buf.String()
	assert.Contains(t, out, "Action:  GUARDRAIL_INTERVENED")
	assert.Contains(t, out, "Blocked: true")
	assert.Contains(t, out, "Output:  [redacted]")
	assert.Contains(t, out, `PII: EMAIL = "a@b.c" (action: ANONYMIZED)`)
}

func TestPrintSteps(t *testing.T) {
	var buf bytes.Buffer
	printSteps(&buf, []agents.ReasoningStep{
		agents.NewThoughtStep("let me look"),
		agents.NewActionStep("t1", "Read", map[string]interface{}{"path": "go.mod"}),
		agents.NewObservationStep("t1", "Read", "module x\ngo 1.24", false),
		agents.NewObservationStep("t2", "Bash", "denied", true),
	})
	out := buf.String()
	assert.Contains(t, out, "-> Read map[path:go.mod]")
	assert.Contains(t, out, "<- Read (ok) module x\n")
	assert.Contains(t, out, "<- Bash (error) denied")
	assert.NotContains(t, out, "let me look")
}

func TestListTools(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listTools(&buf))
	out := buf.String()
	assert.Contains(t, out, "Bash(command*, timeout)")
	assert.Contains(t, out, "Read(path*, limit, offset)")
	assert.Contains(t, out, "Write(path*, content*)")
	assert.Contains(t, out, "- path (string): File path, relative to the working directory")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(fmt.Errorf("eval: %w", errors.ErrMissingTracingCredentials)))
	assert.Equal(t, 2, exitCode(errors.ErrInvalidConfig))
	assert.Equal(t, 1, exitCode(errors.ErrQueryTimeout))
}
