package llm

import (
	"context"
	stderrors "errors"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// GenerateStream 生成响应（流式）
func (c *OpenAIClient) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunkChan := make(chan StreamChunk, 10)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		chatReq := c.buildChatRequest(req)
		chatReq.Stream = true
		chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			errChan <- mapOpenAIError(err)
			return
		}
		defer stream.Close()

		// 工具调用参数按 index 分片到达，结束后统一解析
		type partial struct {
			id, name string
			args     strings.Builder
		}
		calls := make(map[int]*partial)
		var finishReason string
		var usage *message.TokenUsage

		send := func(chunk StreamChunk) bool {
			select {
			case chunkChan <- chunk:
				return true
			case <-ctx.Done():
				errChan <- ctx.Err()
				return false
			}
		}

		for {
			response, err := stream.Recv()
			if stderrors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errChan <- mapOpenAIError(err)
				return
			}

			if response.Usage != nil {
				usage = &message.TokenUsage{
					PromptTokens:     response.Usage.PromptTokens,
					CompletionTokens: response.Usage.CompletionTokens,
					TotalTokens:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]
			if choice.Delta.Content != "" {
				if !send(StreamChunk{Content: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				p, ok := calls[idx]
				if !ok {
					p = &partial{}
					calls[idx] = p
				}
				if tc.ID != "" {
					p.id = tc.ID
				}
				if tc.Function.Name != "" {
					p.name = tc.Function.Name
				}
				p.args.WriteString(tc.Function.Arguments)
			}

			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}

		indexes := make([]int, 0, len(calls))
		for idx := range calls {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)

		var toolCalls []message.ToolCall
		for _, idx := range indexes {
			p := calls[idx]
			toolCalls = append(toolCalls, message.ToolCall{
				ID:        p.id,
				Name:      p.name,
				Arguments: parseArguments(p.args.String()),
			})
		}

		send(StreamChunk{
			Done:         true,
			FinishReason: finishReason,
			StopReason:   finishReason,
			ToolCalls:    toolCalls,
			TokenUsage:   usage,
		})
	}()

	return chunkChan, errChan
}
