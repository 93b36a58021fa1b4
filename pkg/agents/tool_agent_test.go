package agents_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
	"github.com/easyops/bedrock-agent-go/pkg/tools"
	"github.com/easyops/bedrock-agent-go/pkg/tools/builtin"
)

func readCall(id, path string) message.ToolCall {
	return message.ToolCall{ID: id, Name: "Read", Arguments: map[string]interface{}{"path": path}}
}

func TestToolAgent_Run(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello from file"), 0o644))

	r := newRecorder(t)
	fp := &fakeProvider{responses: []llm.Response{
		{
			Content:      "Let me read.",
			ToolCalls:    []message.ToolCall{readCall("tu_1", "a.txt")},
			FinishReason: llm.FinishToolCalls,
			TokenUsage:   message.TokenUsage{PromptTokens: 20, CompletionTokens: 5},
		},
		{
			Content:    "The file says hello.",
			TokenUsage: message.TokenUsage{PromptTokens: 30, CompletionTokens: 6},
		},
	}}

	agent, err := agents.NewToolAgent(fp, nil, agents.WithTracing(r.client), agents.WithWorkDir(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"Read", "Write"}, agent.Tools())

	out, err := agent.Run(context.Background(), agents.Input{Query: "what is in a.txt?", SessionID: "s-1"})
	require.NoError(t, err)

	assert.Equal(t, "Let me read.The file says hello.", out.Response)
	assert.Equal(t, 1, out.ToolCalls)
	assert.Equal(t, 2, out.Metrics.NumTurns)
	assert.Equal(t, 50, out.TokenUsage.PromptTokens)
	require.Len(t, out.Steps, 3)
	assert.Equal(t, agents.StepTypeThought, out.Steps[0].Type)
	assert.Equal(t, agents.StepTypeAction, out.Steps[1].Type)
	assert.Equal(t, agents.StepTypeObservation, out.Steps[2].Type)
	assert.Contains(t, out.Steps[2].ToolResult, "hello from file")

	first := fp.request(t, 0)
	require.Len(t, first.Tools, 2)
	assert.Equal(t, "auto", first.ToolChoice)

	second := fp.request(t, 1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, message.RoleTool, last.Role)
	assert.Equal(t, "tu_1", last.ToolCallID)
	assert.Contains(t, last.Content, "hello from file")

	root := r.span(t, "chat_with_tools")
	assert.Equal(t, "[Read, Write]", metadata(t, root, "tools"))
	assert.Equal(t, "2", metadata(t, root, "tools_count"))
	assert.Equal(t, "1", metadata(t, root, "tool_calls"))
	tags, _ := attrOf(root, otel.AttrLangfuseTraceTags)
	assert.Contains(t, tags.AsStringSlice(), "with-tools")

	tool := r.span(t, "tool:Read")
	assert.Equal(t, root.SpanContext.SpanID(), tool.Parent.SpanID())
	assert.Equal(t, "tu_1", metadata(t, tool, "tool_use_id"))
	assert.Equal(t, "1", metadata(t, tool, "tool_call_number"))
	assert.Contains(t, stringAttr(t, tool, otel.AttrLangfuseObservationOutput), "hello from file")

	gen := r.span(t, "llm_response")
	assert.Equal(t, "1", metadata(t, gen, "tool_calls"))
	assert.Equal(t, "2", metadata(t, gen, "num_turns"))
}

func TestToolAgent_ToolFailureContinues(t *testing.T) {
	r := newRecorder(t)
	fp := &fakeProvider{responses: []llm.Response{
		{ToolCalls: []message.ToolCall{readCall("tu_1", "missing.txt")}},
		{Content: "The file does not exist."},
	}}
	reg, err := builtin.Registry([]string{"Read"}, t.TempDir())
	require.NoError(t, err)

	agent, err := agents.NewToolAgent(fp, reg, agents.WithTracing(r.client))
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), agents.Input{Query: "read it"})
	require.NoError(t, err)
	assert.Equal(t, "The file does not exist.", out.Response)
	require.Len(t, out.Steps, 2)
	assert.True(t, out.Steps[1].IsError)

	tool := r.span(t, "tool:Read")
	assert.Equal(t, "ERROR", stringAttr(t, tool, otel.AttrLangfuseObservationLevel))

	second := fp.request(t, 1)
	last := second.Messages[len(second.Messages)-1]
	assert.True(t, last.IsError)
	assert.Contains(t, last.Content, "file not found")
}

func TestToolAgent_MaxIterations(t *testing.T) {
	r := newRecorder(t)
	call := llm.Response{ToolCalls: []message.ToolCall{readCall("tu_x", "a.txt")}}
	fp := &fakeProvider{responses: []llm.Response{call, call, call}}
	reg, err := builtin.Registry([]string{"Read"}, t.TempDir())
	require.NoError(t, err)

	agent, err := agents.NewToolAgent(fp, reg, agents.WithTracing(r.client), agents.WithMaxIterations(2))
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), agents.Input{Query: "loop"})
	assert.ErrorIs(t, err, errors.ErrMaxIterationsExceeded)
	assert.Equal(t, 2, out.ToolCalls)
	assert.Equal(t, "ERROR", stringAttr(t, r.span(t, "chat_with_tools"), otel.AttrLangfuseObservationLevel))
}

func TestToolAgent_PanicEndsPendingToolSpans(t *testing.T) {
	r := newRecorder(t)
	reg := tools.NewRegistry()
	reg.MustRegister(tools.NewFuncTool("Explode", "panics", tools.ParameterSchema{Type: "object"},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			panic("boom")
		}))
	reg.MustRegister(tools.NewFuncTool("Later", "never runs", tools.ParameterSchema{Type: "object"},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "ran", nil
		}))

	fp := &fakeProvider{responses: []llm.Response{{ToolCalls: []message.ToolCall{
		{ID: "tu_1", Name: "Explode", Arguments: map[string]interface{}{}},
		{ID: "tu_2", Name: "Later", Arguments: map[string]interface{}{}},
	}}}}

	agent, err := agents.NewToolAgent(fp, reg, agents.WithTracing(r.client))
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = agent.Run(context.Background(), agents.Input{Query: "go"})
	})

	later := r.span(t, "tool:Later")
	assert.Equal(t, "WARNING", stringAttr(t, later, otel.AttrLangfuseObservationLevel))
	assert.Equal(t, "Span ended due to: error: boom", stringAttr(t, later, otel.AttrLangfuseStatusMessage))
	assert.Equal(t, "(no result - error: boom)", stringAttr(t, later, otel.AttrLangfuseObservationOutput))
	assert.Equal(t, "ERROR", stringAttr(t, r.span(t, "chat_with_tools"), otel.AttrLangfuseObservationLevel))
}

func TestToolAgent_StreamCanceledEndsPendingToolSpans(t *testing.T) {
	r := newRecorder(t)
	reg := tools.NewRegistry()
	reg.MustRegister(tools.NewFuncTool("Wait", "blocks until canceled", tools.ParameterSchema{Type: "object"},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
	reg.MustRegister(tools.NewFuncTool("Later", "never runs", tools.ParameterSchema{Type: "object"},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "ran", nil
		}))

	fp := &fakeProvider{responses: []llm.Response{{ToolCalls: []message.ToolCall{
		{ID: "tu_1", Name: "Wait", Arguments: map[string]interface{}{}},
		{ID: "tu_2", Name: "Later", Arguments: map[string]interface{}{}},
	}}}}
	agent, err := agents.NewToolAgent(fp, reg, agents.WithTracing(r.client))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, errs := agent.RunStream(ctx, agents.Input{Query: "go"})

	for c := range chunks {
		if c.Type == agents.ChunkTypeStep {
			cancel()
		}
	}
	assert.ErrorIs(t, <-errs, context.Canceled)

	later := r.span(t, "tool:Later")
	assert.Equal(t, "WARNING", stringAttr(t, later, otel.AttrLangfuseObservationLevel))
	assert.Equal(t, "Span ended due to: error: context canceled", stringAttr(t, later, otel.AttrLangfuseStatusMessage))
	assert.Equal(t, "(no result - error: context canceled)", stringAttr(t, later, otel.AttrLangfuseObservationOutput))
	assert.Equal(t, "ERROR", stringAttr(t, r.span(t, "chat_with_tools"), otel.AttrLangfuseObservationLevel))
}

func TestToolAgent_Stream(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("data"), 0o644))

	fp := &fakeProvider{responses: []llm.Response{
		{ToolCalls: []message.ToolCall{readCall("tu_1", "a.txt")}},
		{Content: "It contains data."},
	}}
	agent, err := agents.NewToolAgent(fp, nil, agents.WithWorkDir(dir))
	require.NoError(t, err)

	chunks, errs := agent.RunStream(context.Background(), agents.Input{Query: "read"})

	var kinds []agents.ChunkType
	var final *agents.Output
	for c := range chunks {
		kinds = append(kinds, c.Type)
		if c.Done {
			final = c.Output
		}
	}
	require.NoError(t, <-errs)

	assert.Equal(t, []agents.ChunkType{
		agents.ChunkTypeStep, agents.ChunkTypeStep, agents.ChunkTypeText, agents.ChunkTypeDone,
	}, kinds)
	require.NotNil(t, final)
	assert.Equal(t, "It contains data.", final.Response)
}
