package guardrail

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/config"
)

// DefaultCheckInterval 流式输出默认检查间隔（字符）
const DefaultCheckInterval = 100

// EventType 流式事件类型
type EventType string

const (
	// EventInputChecked 输入检查完成
	EventInputChecked EventType = "input_checked"
	// EventText 模型输出文本
	EventText EventType = "text"
	// EventOutputChecked 输出检查完成（分段或最终）
	EventOutputChecked EventType = "output_checked"
	// EventBlocked 内容被拦截，之后只会再发送 EventDone
	EventBlocked EventType = "blocked"
	// EventDone 结束
	EventDone EventType = "done"
)

// Event GuardedAgent 发出的事件
type Event struct {
	Type EventType `json:"type"`
	// Content 文本片段（EventText）
	Content string `json:"content,omitempty"`
	// Source 检查的来源
	Source Source `json:"source,omitempty"`
	// Final 是否为最终检查
	Final bool `json:"final,omitempty"`
	// Result 检查结果
	Result *Result `json:"result,omitempty"`
	// Outcome 最终结果（EventDone）
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Outcome 一次受保护对话的结果
type Outcome struct {
	// Response 已输出的文本
	Response string `json:"response"`
	// Blocked 是否被拦截
	Blocked bool `json:"blocked"`
	// BlockedAt 拦截阶段：input、stream 或 final
	BlockedAt string `json:"blocked_at,omitempty"`
	// Checks 调用检查的次数
	Checks int `json:"checks"`
	// Output 底层 Agent 的输出（正常结束时）
	Output *agents.Output `json:"output,omitempty"`
}

// GuardedAgent 带内容安全检查的流式 Agent
type GuardedAgent struct {
	agent           agents.Agent
	checker         Checker
	inputFiltering  bool
	outputFiltering bool
	interval        int
}

// GuardedOption GuardedAgent 配置选项
type GuardedOption func(*GuardedAgent)

// WithInputFiltering 是否检查输入
func WithInputFiltering(enabled bool) GuardedOption {
	return func(g *GuardedAgent) { g.inputFiltering = enabled }
}

// WithOutputFiltering 是否检查输出
func WithOutputFiltering(enabled bool) GuardedOption {
	return func(g *GuardedAgent) { g.outputFiltering = enabled }
}

// WithCheckInterval 设置检查间隔，0 表示只做最终检查
func WithCheckInterval(n int) GuardedOption {
	return func(g *GuardedAgent) {
		if n >= 0 {
			g.interval = n
		}
	}
}

// WithGuardrailConfig 应用配置中的过滤开关与间隔
func WithGuardrailConfig(cfg config.GuardrailConfig) GuardedOption {
	return func(g *GuardedAgent) {
		g.inputFiltering = cfg.InputFiltering
		g.outputFiltering = cfg.OutputFiltering
		if cfg.CheckInterval >= 0 {
			g.interval = cfg.CheckInterval
		}
	}
}

// NewGuarded 创建 GuardedAgent
//
// checker 为 nil 时不做任何检查，直接转发底层 Agent 的输出。
func NewGuarded(agent agents.Agent, checker Checker, opts ...GuardedOption) *GuardedAgent {
	g := &GuardedAgent{
		agent:           agent,
		checker:         checker,
		inputFiltering:  true,
		outputFiltering: true,
		interval:        DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stream 流式执行
//
// 事件通道以 EventDone 结束；检查或底层 Agent 出错时错误写入错误通道，不再发送 EventDone。
func (g *GuardedAgent) Stream(ctx context.Context, input agents.Input) (<-chan Event, <-chan error) {
	events := make(chan Event, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errCh)

		outcome, err := g.stream(ctx, input, events)
		if err != nil {
			errCh <- err
			return
		}
		_ = send(ctx, events, Event{Type: EventDone, Outcome: &outcome})
	}()

	return events, errCh
}

// Run 执行并收集结果
func (g *GuardedAgent) Run(ctx context.Context, input agents.Input) (Outcome, error) {
	events, errCh := g.Stream(ctx, input)
	var outcome Outcome
	for ev := range events {
		if ev.Type == EventDone && ev.Outcome != nil {
			outcome = *ev.Outcome
		}
	}
	if err := <-errCh; err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (g *GuardedAgent) stream(ctx context.Context, input agents.Input, events chan<- Event) (Outcome, error) {
	var outcome Outcome

	if g.inputFiltering && g.checker != nil {
		result, err := g.checker.Check(ctx, input.Query, SourceInput)
		if err != nil {
			return outcome, err
		}
		outcome.Checks++
		if err := send(ctx, events, Event{Type: EventInputChecked, Source: SourceInput, Result: &result}); err != nil {
			return outcome, err
		}
		if result.Blocked {
			outcome.Blocked = true
			outcome.BlockedAt = "input"
			return outcome, send(ctx, events, Event{Type: EventBlocked, Source: SourceInput, Result: &result})
		}
		input.Query = result.FilteredText
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks, agentErrs := g.agent.RunStream(runCtx, input)

	// 提前结束时取消底层 Agent 并等待其退出
	stop := func() {
		cancel()
		for range chunks {
		}
		<-agentErrs
	}

	checkOutput := g.outputFiltering && g.checker != nil
	var full, buffer strings.Builder
	for chunk := range chunks {
		switch chunk.Type {
		case agents.ChunkTypeText:
			full.WriteString(chunk.Content)
			buffer.WriteString(chunk.Content)
			if err := send(ctx, events, Event{Type: EventText, Content: chunk.Content}); err != nil {
				stop()
				return outcome, err
			}

			if !checkOutput || g.interval <= 0 || utf8.RuneCountInString(buffer.String()) < g.interval {
				continue
			}
			result, err := g.checker.Check(ctx, buffer.String(), SourceOutput)
			if err != nil {
				stop()
				return outcome, err
			}
			outcome.Checks++
			if err := send(ctx, events, Event{Type: EventOutputChecked, Source: SourceOutput, Result: &result}); err != nil {
				stop()
				return outcome, err
			}
			if result.Blocked {
				stop()
				outcome.Response = full.String()
				outcome.Blocked = true
				outcome.BlockedAt = "stream"
				return outcome, send(ctx, events, Event{Type: EventBlocked, Source: SourceOutput, Result: &result})
			}
			buffer.Reset()

		case agents.ChunkTypeDone:
			outcome.Output = chunk.Output
		}
	}
	if err := <-agentErrs; err != nil {
		return outcome, err
	}

	outcome.Response = full.String()
	if checkOutput && outcome.Response != "" && (g.interval == 0 || buffer.Len() > 0) {
		result, err := g.checker.Check(ctx, outcome.Response, SourceOutput)
		if err != nil {
			return outcome, err
		}
		outcome.Checks++
		if err := send(ctx, events, Event{Type: EventOutputChecked, Source: SourceOutput, Final: true, Result: &result}); err != nil {
			return outcome, err
		}
		if result.Blocked {
			outcome.Blocked = true
			outcome.BlockedAt = "final"
			return outcome, send(ctx, events, Event{Type: EventBlocked, Source: SourceOutput, Final: true, Result: &result})
		}
	}
	return outcome, nil
}

func send(ctx context.Context, ch chan<- Event, ev Event) error {
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
