package agents

import (
	"context"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// streamResult 流结束块中的信息
type streamResult struct {
	usage        message.TokenUsage
	latency      time.Duration
	toolCalls    []message.ToolCall
	finishReason string
}

// consumeStream 读取模型流，文本增量交给 onText
//
// 两个通道都关闭后返回；onText 返回错误时立即停止。
func consumeStream(ctx context.Context, provider llm.Provider, req llm.Request, onText func(string) error) (streamResult, error) {
	var result streamResult

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := provider.GenerateStream(streamCtx, req)
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return result, err
			}
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if chunk.Content != "" {
				if err := onText(chunk.Content); err != nil {
					return result, err
				}
			}
			if chunk.Done {
				if chunk.TokenUsage != nil {
					result.usage = *chunk.TokenUsage
				}
				result.latency = chunk.Latency
				result.toolCalls = chunk.ToolCalls
				result.finishReason = chunk.FinishReason
			}
		}
	}
	return result, nil
}
