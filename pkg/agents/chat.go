package agents

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// ChatAgent 无工具的对话代理
//
// 每次调用产生一个根 Span（chat 或 chat_streaming）和一个 llm_response Generation。
//
// 使用示例:
//
//	agent, err := agents.NewChat(provider,
//	    agents.WithSystemPrompt("You are a helpful assistant."),
//	    agents.WithTracing(client),
//	)
//	reply, err := agent.Chat(ctx, "What is Amazon Bedrock?", agents.Input{SessionID: "s-1"})
type ChatAgent struct {
	base
}

// NewChat 创建 ChatAgent
func NewChat(provider llm.Provider, opts ...Option) (*ChatAgent, error) {
	b, err := newBase(provider, opts)
	if err != nil {
		return nil, err
	}
	return &ChatAgent{base: b}, nil
}

// Chat 发送消息并返回完整回复
//
// meta 可选，提供会话、用户与附加元数据，Query 字段被 prompt 覆盖。
func (a *ChatAgent) Chat(ctx context.Context, prompt string, meta ...Input) (string, error) {
	out, err := a.Run(ctx, inputFor(prompt, meta))
	return out.Response, err
}

// Run 执行一次非流式对话
func (a *ChatAgent) Run(ctx context.Context, input Input) (Output, error) {
	start := time.Now()
	input = a.resolve(input)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var out Output
	tracer := a.newTracer(input, nil)
	err := tracer.TraceSpan(ctx, "chat", input.Query, func(ctx context.Context, span *tracing.Span) error {
		out.TraceID = span.TraceID()

		resp, err := a.provider.Generate(ctx, a.request(a.messages(input), nil))
		if err != nil {
			return err
		}

		text := strings.TrimSpace(resp.Content)
		messageCount := 0
		if text != "" {
			messageCount = 1
		}

		metrics := tracing.MetricsFromResponse(resp)
		a.finishMetrics(&metrics, start)
		tracer.CreateGeneration(span, tracing.GenerationParams{
			Input:   input.Query,
			Output:  text,
			Metrics: &metrics,
		})

		span.SetOutput(text)
		span.UpdateMetadata(map[string]any{
			"message_count":   messageCount,
			"response_length": utf8.RuneCountInString(text),
		})

		out.Response = text
		out.TokenUsage = resp.TokenUsage
		out.Metrics = metrics
		return nil
	}, tracing.WithMetadata(map[string]any{"streaming": "false"}), tracing.WithMetadata(input.Metadata))

	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
	} else {
		a.remember(input, out.Response)
	}
	a.record(ctx, "chat", start, out, err)
	return out, err
}

// ChatStream 流式发送消息
func (a *ChatAgent) ChatStream(ctx context.Context, prompt string, meta ...Input) (<-chan StreamChunk, <-chan error) {
	return a.RunStream(ctx, inputFor(prompt, meta))
}

// RunStream 执行一次流式对话
//
// 文本增量按到达顺序发送，结束时发送携带完整 Output 的 ChunkTypeDone。
func (a *ChatAgent) RunStream(ctx context.Context, input Input) (<-chan StreamChunk, <-chan error) {
	chunkCh := make(chan StreamChunk, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		start := time.Now()
		input := a.resolve(input)

		ctx, cancel := a.withTimeout(ctx)
		defer cancel()

		var out Output
		tracer := a.newTracer(input, nil)
		err := tracer.TraceSpan(ctx, "chat_streaming", input.Query, func(ctx context.Context, span *tracing.Span) error {
			out.TraceID = span.TraceID()

			var sb strings.Builder
			result, err := consumeStream(ctx, a.provider, a.request(a.messages(input), nil), func(text string) error {
				sb.WriteString(text)
				return sendChunk(ctx, chunkCh, StreamChunk{Type: ChunkTypeText, Content: text})
			})
			if err != nil {
				return err
			}

			full := sb.String()
			metrics := tracing.MetricsFromUsage(result.usage)
			if result.latency > 0 {
				api := result.latency.Milliseconds()
				metrics.DurationAPIMS = &api
			}
			a.finishMetrics(&metrics, start)
			tracer.CreateGeneration(span, tracing.GenerationParams{
				Input:   input.Query,
				Output:  full,
				Metrics: &metrics,
			})

			span.SetOutput(full)
			span.UpdateMetadata(map[string]any{"response_length": utf8.RuneCountInString(full)})

			out.Response = full
			out.TokenUsage = result.usage
			out.Metrics = metrics
			return nil
		},
			tracing.WithMetadata(map[string]any{"streaming": "true"}),
			tracing.WithMetadata(input.Metadata),
			tracing.WithTags("streaming"),
		)

		out.Duration = time.Since(start)
		a.record(ctx, "chat_streaming", start, out, err)
		if err != nil {
			out.Error = err.Error()
			errCh <- err
			return
		}
		a.remember(input, out.Response)
		_ = sendChunk(ctx, chunkCh, StreamChunk{Type: ChunkTypeDone, Output: &out, Done: true})
	}()

	return chunkCh, errCh
}

// inputFor 合并 prompt 与可选的调用元数据
func inputFor(prompt string, meta []Input) Input {
	var in Input
	if len(meta) > 0 {
		in = meta[0]
	}
	in.Query = prompt
	return in
}

var _ Agent = (*ChatAgent)(nil)
