package agents_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

func TestChatAgent_Chat(t *testing.T) {
	r := newRecorder(t)
	metrics := otel.NewInMemoryMetrics()
	fp := &fakeProvider{responses: []llm.Response{{
		Content:    "  Hello\nWorld  ",
		TokenUsage: message.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}}

	agent, err := agents.NewChat(fp,
		agents.WithTracing(r.client),
		agents.WithSystemPrompt("be brief"),
		agents.WithMetrics(metrics),
	)
	require.NoError(t, err)

	reply, err := agent.Chat(context.Background(), "hi", agents.Input{SessionID: "s-1", UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", reply)

	req := fp.request(t, 0)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, message.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.7, *req.Temperature)

	root := r.span(t, "chat")
	assert.Equal(t, "false", metadata(t, root, "streaming"))
	assert.Equal(t, "1", metadata(t, root, "message_count"))
	assert.Equal(t, "11", metadata(t, root, "response_length"))
	assert.Equal(t, "s-1", stringAttr(t, root, otel.AttrSessionID))
	assert.Equal(t, "u-1", stringAttr(t, root, otel.AttrUserID))
	assert.Equal(t, "Hello\nWorld", stringAttr(t, root, otel.AttrLangfuseObservationOutput))

	gen := r.span(t, "llm_response")
	assert.Equal(t, root.SpanContext.SpanID(), gen.Parent.SpanID())
	assert.Equal(t, "generation", stringAttr(t, gen, otel.AttrLangfuseObservationType))
	assert.Contains(t, stringAttr(t, gen, otel.AttrLangfuseUsageDetails), `"input":10`)

	assert.Equal(t, int64(1), metrics.GetCounterValue(otel.MetricAgentRuns))
	assert.Equal(t, int64(0), metrics.GetCounterValue(otel.MetricAgentErrors))
}

func TestChatAgent_ZeroTemperatureFromConfig(t *testing.T) {
	r := newRecorder(t)
	fp := &fakeProvider{responses: []llm.Response{{Content: "ok"}}}
	cfg := config.Default()
	cfg.LLM.Temperature = 0

	agent, err := agents.NewChat(fp, agents.WithConfig(cfg), agents.WithTracing(r.client))
	require.NoError(t, err)
	_, err = agent.Chat(context.Background(), "hi")
	require.NoError(t, err)

	req := fp.request(t, 0)
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
	assert.Contains(t, stringAttr(t, r.span(t, "llm_response"), otel.AttrLangfuseModelParameters), `"temperature":0`)
}

func TestChatAgent_RunOutput(t *testing.T) {
	r := newRecorder(t)
	fp := &fakeProvider{responses: []llm.Response{{
		Content:    "ok",
		TokenUsage: message.TokenUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
	}}}
	agent, err := agents.NewChat(fp, agents.WithTracing(r.client))
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), agents.Input{Query: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Response)
	assert.Equal(t, 4, out.TokenUsage.TotalTokens)
	assert.Equal(t, 1, out.Metrics.NumTurns)
	require.NotNil(t, out.Metrics.DurationMS)
	require.NotNil(t, out.Metrics.TotalCostUSD)
	assert.Equal(t, r.span(t, "chat").SpanContext.TraceID().String(), out.TraceID)
	assert.False(t, out.HasError())
}

func TestChatAgent_SessionHistory(t *testing.T) {
	fp := &fakeProvider{responses: []llm.Response{{Content: "first"}, {Content: "second"}, {Content: "other"}}}
	agent, err := agents.NewChat(fp, agents.WithSessionHistory(true))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = agent.Chat(ctx, "one", agents.Input{SessionID: "s-1"})
	require.NoError(t, err)
	_, err = agent.Chat(ctx, "two", agents.Input{SessionID: "s-1"})
	require.NoError(t, err)
	_, err = agent.Chat(ctx, "three", agents.Input{SessionID: "s-2"})
	require.NoError(t, err)

	second := fp.request(t, 1)
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "one", second.Messages[0].Content)
	assert.Equal(t, "first", second.Messages[1].Content)
	assert.Equal(t, "two", second.Messages[2].Content)

	assert.Len(t, fp.request(t, 2).Messages, 1)
	assert.Len(t, agent.History("s-1"), 4)

	agent.ClearHistory("s-1")
	assert.Empty(t, agent.History("s-1"))
}

func TestChatAgent_Error(t *testing.T) {
	r := newRecorder(t)
	metrics := otel.NewInMemoryMetrics()
	fp := &fakeProvider{err: errors.New("throttled")}
	agent, err := agents.NewChat(fp, agents.WithTracing(r.client), agents.WithMetrics(metrics))
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), agents.Input{Query: "hi"})
	require.EqualError(t, err, "throttled")
	assert.Equal(t, "throttled", out.Error)

	root := r.span(t, "chat")
	assert.Equal(t, codes.Error, root.Status.Code)
	assert.Equal(t, "ERROR", stringAttr(t, root, otel.AttrLangfuseObservationLevel))
	assert.Equal(t, int64(1), metrics.GetCounterValue(otel.MetricAgentErrors))
}

func TestNewChat_NilProvider(t *testing.T) {
	_, err := agents.NewChat(nil)
	assert.Error(t, err)
}

func TestChatAgent_Stream(t *testing.T) {
	r := newRecorder(t)
	fp := &fakeProvider{chunks: []llm.StreamChunk{
		{Content: "Hel"},
		{Content: "lo"},
		{Done: true, FinishReason: llm.FinishStop, TokenUsage: &message.TokenUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}},
	}}
	agent, err := agents.NewChat(fp, agents.WithTracing(r.client))
	require.NoError(t, err)

	chunks, errs := agent.ChatStream(context.Background(), "hi", agents.Input{UserID: "u-1"})

	var text string
	var done *agents.Output
	for c := range chunks {
		switch c.Type {
		case agents.ChunkTypeText:
			text += c.Content
		case agents.ChunkTypeDone:
			done = c.Output
		}
	}
	require.NoError(t, <-errs)

	assert.Equal(t, "Hello", text)
	require.NotNil(t, done)
	assert.Equal(t, "Hello", done.Response)
	assert.Equal(t, 6, done.TokenUsage.TotalTokens)

	root := r.span(t, "chat_streaming")
	assert.Equal(t, "true", metadata(t, root, "streaming"))
	assert.Equal(t, "5", metadata(t, root, "response_length"))
	tags, ok := attrOf(root, otel.AttrLangfuseTraceTags)
	require.True(t, ok)
	assert.Contains(t, tags.AsStringSlice(), "streaming")
	r.span(t, "llm_response")
}

func TestChatAgent_StreamError(t *testing.T) {
	r := newRecorder(t)
	fp := &fakeProvider{err: errors.New("stream broke")}
	agent, err := agents.NewChat(fp, agents.WithTracing(r.client))
	require.NoError(t, err)

	chunks, errs := agent.RunStream(context.Background(), agents.Input{Query: "hi"})
	for range chunks {
	}
	assert.EqualError(t, <-errs, "stream broke")
	assert.Equal(t, codes.Error, r.span(t, "chat_streaming").Status.Code)
}

func TestSimpleQuery(t *testing.T) {
	r := newRecorder(t)
	fp := &fakeProvider{responses: []llm.Response{{Content: "answer\n"}}}

	reply, err := agents.SimpleQuery(context.Background(), fp, "question",
		agents.WithTracing(r.client),
		agents.WithSession("s-9"),
		agents.WithTags("demo"),
	)
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)

	root := r.span(t, "simple_query")
	assert.Equal(t, "false", metadata(t, root, "streaming"))
	assert.Equal(t, "6", metadata(t, root, "response_length"))
	assert.Equal(t, "s-9", stringAttr(t, root, otel.AttrSessionID))
	tags, _ := attrOf(root, otel.AttrLangfuseTraceTags)
	assert.Contains(t, tags.AsStringSlice(), "demo")
	assert.Contains(t, tags.AsStringSlice(), "no-tools")

	_, err = agents.SimpleQuery(context.Background(), nil, "q")
	assert.Error(t, err)
}
