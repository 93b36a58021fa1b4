package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
	"github.com/easyops/bedrock-agent-go/pkg/tools"
	"github.com/easyops/bedrock-agent-go/pkg/tools/builtin"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// ToolExecutedOutput 未收到结果的工具 Span 在下一轮助手消息到达时的输出
const ToolExecutedOutput = "(tool executed by SDK)"

// NoResultReason 循环结束后仍未关闭的工具 Span 的原因
const NoResultReason = "no result received"

const toolSystemPrompt = `You are a helpful assistant that can use tools to complete tasks.

When you need to use a tool, respond with the tool call. After receiving the tool result, continue until you can provide the final answer.

Guidelines:
1. Use tools when you need to read or change files in the working directory
2. If a tool returns an error, read it and adjust your approach
3. Provide a clear final answer when you have enough information`

// ToolAgent 带工具调用循环的代理
//
// 模型每返回一个 tool_use 就打开一个 tool:<name> 子 Span（登记为未决），
// 工具执行完成后以结果关闭。循环结束时仍未关闭的 Span 统一收尾，
// 出错时以 "error: <e>" 为原因关闭全部未决 Span，再把错误记录到根 Span。
//
// 使用示例:
//
//	reg, _ := builtin.Registry([]string{"Read", "Write"}, ".")
//	agent, err := agents.NewToolAgent(provider, reg, agents.WithTracing(client))
//	out, err := agent.Run(ctx, agents.Input{Query: "Summarize README.md"})
type ToolAgent struct {
	base
	registry *tools.Registry
	executor *tools.Executor
}

// NewToolAgent 创建 ToolAgent
//
// registry 为 nil 时在工作目录中启用默认工具（Read、Write）。
func NewToolAgent(provider llm.Provider, registry *tools.Registry, opts ...Option) (*ToolAgent, error) {
	b, err := newBase(provider, opts)
	if err != nil {
		return nil, err
	}
	if b.options.SystemPrompt == "" {
		b.options.SystemPrompt = toolSystemPrompt
	}
	if registry == nil {
		registry, err = builtin.Registry(builtin.DefaultNames, b.options.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("create default tools: %w", err)
		}
	}
	return &ToolAgent{
		base:     b,
		registry: registry,
		executor: tools.NewExecutor(registry,
			tools.WithExecutorMetrics(b.options.Metrics),
			tools.WithExecutorLogger(b.options.Logger),
		),
	}, nil
}

// Registry 返回工具注册表
func (a *ToolAgent) Registry() *tools.Registry {
	return a.registry
}

// Tools 返回允许使用的工具名称
func (a *ToolAgent) Tools() []string {
	return a.registry.List()
}

// Run 执行工具调用循环
func (a *ToolAgent) Run(ctx context.Context, input Input) (Output, error) {
	return a.run(ctx, input, nil)
}

// RunStream 流式执行工具调用循环
//
// 每轮助手文本、工具调用与工具结果按发生顺序发送。
func (a *ToolAgent) RunStream(ctx context.Context, input Input) (<-chan StreamChunk, <-chan error) {
	chunkCh := make(chan StreamChunk, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		out, err := a.run(ctx, input, func(chunk StreamChunk) error {
			return sendChunk(ctx, chunkCh, chunk)
		})
		if err != nil {
			errCh <- err
			return
		}
		_ = sendChunk(ctx, chunkCh, StreamChunk{Type: ChunkTypeDone, Output: &out, Done: true})
	}()

	return chunkCh, errCh
}

func (a *ToolAgent) run(ctx context.Context, input Input, emit func(StreamChunk) error) (Output, error) {
	start := time.Now()
	input = a.resolve(input)
	if emit == nil {
		emit = func(StreamChunk) error { return nil }
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	names := a.registry.List()
	toolsLabel, toolsCount := "none", "0"
	if len(names) > 0 {
		toolsLabel = "[" + strings.Join(names, ", ") + "]"
		toolsCount = strconv.Itoa(len(names))
	}

	var out Output
	tracer := a.newTracer(input, names)
	err := tracer.TraceSpan(ctx, "chat_with_tools", input.Query, func(ctx context.Context, span *tracing.Span) (err error) {
		out.TraceID = span.TraceID()
		defer func() {
			if r := recover(); r != nil {
				tracer.EndAllPendingSpans(fmt.Sprintf("error: %v", r))
				panic(r)
			}
			if err != nil {
				tracer.EndAllPendingSpans("error: " + err.Error())
			}
		}()

		var (
			metrics   tracing.AgentMetrics
			full      strings.Builder
			callCount int
			current   []string
			steps     []ReasoningStep
		)

		// 新一轮助手消息到达时，上一轮仍未关闭的工具视为已执行
		closeCurrent := func() {
			for _, id := range current {
				tracer.EndToolSpan(id, ToolExecutedOutput, false)
			}
			current = current[:0]
		}

		msgs := a.messages(input)
		defs := a.registry.LLMDefinitions()
		finished := false

		for iteration := 0; iteration < a.options.MaxIterations; iteration++ {
			if err := ctx.Err(); err != nil {
				return errors.ErrContextCanceled
			}

			resp, err := a.provider.Generate(ctx, a.request(msgs, defs))
			if err != nil {
				return err
			}
			metrics.Accumulate(resp)
			closeCurrent()

			if resp.Content != "" {
				full.WriteString(resp.Content)
				if err := emit(StreamChunk{Type: ChunkTypeText, Content: resp.Content}); err != nil {
					return err
				}
			}

			if len(resp.ToolCalls) == 0 {
				finished = true
				break
			}
			if resp.Content != "" {
				steps = append(steps, NewThoughtStep(resp.Content))
			}
			msgs = append(msgs, message.NewAssistantToolCallMessage(resp.Content, resp.ToolCalls))

			for _, tc := range resp.ToolCalls {
				callCount++
				tracer.StartToolSpan(span, tc.Name, tc.ID, callCount, tc.Arguments)
				current = append(current, tc.ID)

				step := NewActionStep(tc.ID, tc.Name, tc.Arguments)
				steps = append(steps, step)
				if err := emit(StreamChunk{Type: ChunkTypeStep, Step: &step}); err != nil {
					return err
				}
			}

			for _, tc := range resp.ToolCalls {
				// 取消后不再执行剩余工具，其 Span 由 EndAllPendingSpans 收尾
				if err := ctx.Err(); err != nil {
					return err
				}
				result := a.executor.ExecuteCall(ctx, tools.ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments})
				tracer.EndToolSpan(tc.ID, result.Output(), !result.Success)

				step := NewObservationStep(tc.ID, tc.Name, result.Output(), !result.Success)
				steps = append(steps, step)
				if err := emit(StreamChunk{Type: ChunkTypeStep, Step: &step}); err != nil {
					return err
				}

				if result.Success {
					msgs = append(msgs, message.NewToolMessage(tc.ID, tc.Name, result.Result))
				} else {
					msgs = append(msgs, message.NewToolErrorMessage(tc.ID, tc.Name, "Error: "+result.Error))
				}
			}
		}

		closeCurrent()
		tracer.EndAllPendingSpans(NoResultReason)
		out.Steps = steps
		out.ToolCalls = callCount

		if !finished {
			return errors.ErrMaxIterationsExceeded
		}

		response := full.String()
		a.finishMetrics(&metrics, start)
		tracer.CreateGeneration(span, tracing.GenerationParams{
			Input:         input.Query,
			Output:        response,
			Metrics:       &metrics,
			ToolCallCount: callCount,
		})

		span.SetOutput(response)
		span.UpdateMetadata(map[string]any{
			"tool_calls":      callCount,
			"response_length": utf8.RuneCountInString(response),
		})

		out.Response = response
		out.TokenUsage = metrics.Usage()
		out.Metrics = metrics
		return nil
	}, tracing.WithMetadata(map[string]any{
		"tools":       toolsLabel,
		"tools_count": toolsCount,
	}), tracing.WithMetadata(input.Metadata))

	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
	} else {
		a.remember(input, out.Response)
	}
	a.record(ctx, "tool", start, out, err)
	return out, err
}

var _ Agent = (*ToolAgent)(nil)
