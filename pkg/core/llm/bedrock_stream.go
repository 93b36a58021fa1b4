package llm

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// GenerateStream 生成响应（流式）
//
// 文本增量逐块发送；工具调用的 JSON 输入在块结束时解析，
// 随最后一个 Done 块一起返回，Done 块同时携带 Token 用量。
func (c *BedrockClient) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunkCh := make(chan StreamChunk, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		parts, err := c.buildParts(req)
		if err != nil {
			errCh <- err
			return
		}

		input := &bedrockruntime.ConverseStreamInput{
			ModelId:         aws.String(c.options.Model),
			Messages:        parts.messages,
			System:          parts.system,
			InferenceConfig: parts.inference,
			ToolConfig:      parts.tools,
		}

		var out *bedrockruntime.ConverseStreamOutput
		start := time.Now()
		err = retry(ctx, c.options.MaxRetries, c.options.RetryDelay, func() error {
			var callErr error
			out, callErr = c.api.ConverseStream(ctx, input)
			return mapBedrockError(callErr)
		})
		if err != nil {
			errCh <- err
			return
		}

		stream := out.GetStream()
		defer stream.Close()

		asm := newStreamAssembler()
		if err := asm.consume(ctx, stream.Events(), chunkCh); err != nil {
			errCh <- err
			return
		}
		if err := stream.Err(); err != nil {
			errCh <- mapBedrockError(err)
			return
		}

		done := asm.done()
		if done.Latency == 0 {
			done.Latency = time.Since(start)
		}
		select {
		case chunkCh <- done:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return chunkCh, errCh
}

// toolUseState 正在接收的工具调用
type toolUseState struct {
	id    string
	name  string
	input strings.Builder
}

// streamAssembler 把 ConverseStream 事件组装为 StreamChunk
type streamAssembler struct {
	current       *toolUseState
	toolCalls     []message.ToolCall
	usage         *message.TokenUsage
	finishReason  string
	stopReason    string
	latency       time.Duration
	lastTextBlock int32
	sentText      bool
}

func newStreamAssembler() *streamAssembler {
	return &streamAssembler{lastTextBlock: -1}
}

// consume 读取事件直到通道关闭，文本增量转发到 out
func (a *streamAssembler) consume(ctx context.Context, events <-chan types.ConverseStreamOutput, out chan<- StreamChunk) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			text := a.handle(event)
			if text == "" {
				continue
			}
			select {
			case out <- StreamChunk{Content: text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handle 处理单个事件，返回需要转发的文本
func (a *streamAssembler) handle(event types.ConverseStreamOutput) string {
	switch e := event.(type) {
	case *types.ConverseStreamOutputMemberContentBlockStart:
		if start, ok := e.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
			a.current = &toolUseState{
				id:   aws.ToString(start.Value.ToolUseId),
				name: aws.ToString(start.Value.Name),
			}
		}

	case *types.ConverseStreamOutputMemberContentBlockDelta:
		switch d := e.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			if d.Value == "" {
				return ""
			}
			// 与非流式一致，不同文本块之间用换行分隔
			idx := aws.ToInt32(e.Value.ContentBlockIndex)
			text := d.Value
			if a.sentText && idx != a.lastTextBlock {
				text = "\n" + text
			}
			a.lastTextBlock = idx
			a.sentText = true
			return text
		case *types.ContentBlockDeltaMemberToolUse:
			if a.current != nil {
				a.current.input.WriteString(aws.ToString(d.Value.Input))
			}
		}

	case *types.ConverseStreamOutputMemberContentBlockStop:
		a.finishToolUse()

	case *types.ConverseStreamOutputMemberMessageStop:
		a.finishToolUse()
		a.finishReason = mapStopReason(e.Value.StopReason)
		a.stopReason = string(e.Value.StopReason)

	case *types.ConverseStreamOutputMemberMetadata:
		if e.Value.Usage != nil {
			usage := convertUsage(e.Value.Usage)
			a.usage = &usage
		}
		if e.Value.Metrics != nil {
			a.latency = time.Duration(aws.ToInt64(e.Value.Metrics.LatencyMs)) * time.Millisecond
		}
	}
	return ""
}

// finishToolUse 结束当前工具调用并解析其输入
func (a *streamAssembler) finishToolUse() {
	if a.current == nil {
		return
	}
	a.toolCalls = append(a.toolCalls, message.ToolCall{
		ID:        a.current.id,
		Name:      a.current.name,
		Arguments: parseArguments(a.current.input.String()),
	})
	a.current = nil
}

// done 返回结束块
func (a *streamAssembler) done() StreamChunk {
	a.finishToolUse()
	return StreamChunk{
		Done:         true,
		FinishReason: a.finishReason,
		StopReason:   a.stopReason,
		ToolCalls:    a.toolCalls,
		TokenUsage:   a.usage,
		Latency:      a.latency,
	}
}
