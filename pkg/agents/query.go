package agents

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// SimpleQuery 一次性查询，不保留历史也不使用工具
//
// 产生根 Span simple_query 与一个 Generation，会话与用户通过 WithSession、WithUser 设置。
func SimpleQuery(ctx context.Context, provider llm.Provider, prompt string, opts ...Option) (string, error) {
	b, err := newBase(provider, opts)
	if err != nil {
		return "", err
	}

	start := time.Now()
	input := b.resolve(Input{Query: prompt})

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var out Output
	tracer := b.newTracer(input, nil)
	err = tracer.TraceSpan(ctx, "simple_query", prompt, func(ctx context.Context, span *tracing.Span) error {
		resp, err := provider.Generate(ctx, b.request(b.messages(input), nil))
		if err != nil {
			return err
		}

		text := strings.TrimSpace(resp.Content)
		metrics := tracing.MetricsFromResponse(resp)
		b.finishMetrics(&metrics, start)
		tracer.CreateGeneration(span, tracing.GenerationParams{
			Input:   prompt,
			Output:  text,
			Metrics: &metrics,
		})

		span.SetOutput(text)
		span.UpdateMetadata(map[string]any{"response_length": utf8.RuneCountInString(text)})

		out.Response = text
		out.Metrics = metrics
		return nil
	}, tracing.WithMetadata(map[string]any{"streaming": "false"}))

	b.record(ctx, "simple_query", start, out, err)
	return out.Response, err
}
