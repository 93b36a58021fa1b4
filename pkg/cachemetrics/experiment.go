package cachemetrics

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// LongSystemPrompt 超过 1024 Token 的系统提示词，可被缓存
//
//go:embed prompts/long_system_prompt.md
var LongSystemPrompt string

// ShortSystemPrompt 过短而不会被缓存的系统提示词
const ShortSystemPrompt = "You are a technical assistant."

// BasicQuestions 基础实验使用的问题
var BasicQuestions = []string{
	"What can Bedrock Guardrails content filters detect?",
	"Which kinds of personal information can the sensitive information filters handle?",
	"How is prompt caching billed compared to normal input tokens?",
}

// CompareQuestion 对比实验使用的问题
const CompareQuestion = "What are the effects of prompt caching?"

// ExperimentConfig 实验参数
type ExperimentConfig struct {
	// Runs 对比实验每组执行次数
	// 默认: 3
	Runs int
	// Pause 两次请求之间的等待，需小于缓存 TTL，负值表示不等待
	// 默认: 基础实验 3s，对比实验 2s
	Pause time.Duration
	// UserID 写入 Trace 的用户
	// 默认: tester
	UserID string
	// AgentOptions 创建 ChatAgent 时追加的选项
	AgentOptions []agents.Option
	// OnRun 每次请求完成后回调
	OnRun func(Run)
}

// Run 单次请求的记录
type Run struct {
	Label     string             `json:"label"`
	Index     int                `json:"index"`
	Question  string             `json:"question"`
	SessionID string             `json:"session_id"`
	Response  string             `json:"response"`
	Elapsed   time.Duration      `json:"elapsed"`
	Usage     message.TokenUsage `json:"usage"`
}

// BasicResult 基础实验结果
type BasicResult struct {
	Runs []Run `json:"runs"`
}

// RunBasic 用同一个长系统提示词依次提问
//
// 第一次请求写入缓存，之后的请求应读取缓存。会话为 cache-test-<i>（从 1 开始）。
func RunBasic(ctx context.Context, provider llm.Provider, cfg ExperimentConfig) (*BasicResult, error) {
	cfg = cfg.withDefaults(3 * time.Second)
	agent, err := newExperimentAgent(provider, LongSystemPrompt, cfg)
	if err != nil {
		return nil, err
	}

	result := &BasicResult{}
	for i, q := range BasicQuestions {
		run, err := chatOnce(ctx, agent, cfg, "basic", i+1, q, fmt.Sprintf("cache-test-%d", i+1))
		if err != nil {
			return result, err
		}
		result.Runs = append(result.Runs, run)

		if i < len(BasicQuestions)-1 {
			if err := sleep(ctx, cfg.Pause); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// CompareResult 对比实验结果
type CompareResult struct {
	Short []Run `json:"short"`
	Long  []Run `json:"long"`
	// AvgShort 短提示词平均耗时
	AvgShort time.Duration `json:"avg_short"`
	// AvgLong 长提示词平均耗时
	AvgLong time.Duration `json:"avg_long"`
	// AvgLongCached 长提示词第 2 次起的平均耗时
	AvgLongCached time.Duration `json:"avg_long_cached"`
	// Speedup 缓存读取相对首次写入的提速（%），未提速时为 0
	Speedup float64 `json:"speedup"`
}

// Compare 对比短系统提示词与长（可缓存）系统提示词的延迟
func Compare(ctx context.Context, provider llm.Provider, cfg ExperimentConfig) (*CompareResult, error) {
	cfg = cfg.withDefaults(2 * time.Second)
	result := &CompareResult{}

	short, err := newExperimentAgent(provider, ShortSystemPrompt, cfg)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cfg.Runs; i++ {
		run, err := chatOnce(ctx, short, cfg, "short", i+1, CompareQuestion, fmt.Sprintf("short-%d", i))
		if err != nil {
			return result, err
		}
		result.Short = append(result.Short, run)
	}
	if err := sleep(ctx, cfg.Pause); err != nil {
		return result, err
	}

	long, err := newExperimentAgent(provider, LongSystemPrompt, cfg)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cfg.Runs; i++ {
		run, err := chatOnce(ctx, long, cfg, "long", i+1, CompareQuestion, fmt.Sprintf("long-%d", i))
		if err != nil {
			return result, err
		}
		result.Long = append(result.Long, run)
		if i < cfg.Runs-1 {
			if err := sleep(ctx, cfg.Pause); err != nil {
				return result, err
			}
		}
	}

	result.AvgShort = average(result.Short)
	result.AvgLong = average(result.Long)
	if len(result.Long) > 1 {
		result.AvgLongCached = average(result.Long[1:])
		first := result.Long[0].Elapsed
		if result.AvgLongCached < first {
			result.Speedup = float64(first-result.AvgLongCached) / float64(first) * 100
		}
	}
	return result, nil
}

func (c ExperimentConfig) withDefaults(pause time.Duration) ExperimentConfig {
	if c.Runs <= 0 {
		c.Runs = 3
	}
	if c.Pause < 0 {
		c.Pause = 0
	} else if c.Pause == 0 {
		c.Pause = pause
	}
	if c.UserID == "" {
		c.UserID = "tester"
	}
	return c
}

func newExperimentAgent(provider llm.Provider, systemPrompt string, cfg ExperimentConfig) (*agents.ChatAgent, error) {
	opts := append([]agents.Option{}, cfg.AgentOptions...)
	opts = append(opts, agents.WithSystemPrompt(systemPrompt))
	return agents.NewChat(provider, opts...)
}

func chatOnce(ctx context.Context, agent *agents.ChatAgent, cfg ExperimentConfig, label string, index int, question, session string) (Run, error) {
	start := time.Now()
	out, err := agent.Run(ctx, agents.Input{Query: question, SessionID: session, UserID: cfg.UserID})
	if err != nil {
		return Run{}, fmt.Errorf("%s run %d: %w", label, index, err)
	}
	run := Run{
		Label:     label,
		Index:     index,
		Question:  question,
		SessionID: session,
		Response:  out.Response,
		Elapsed:   time.Since(start),
		Usage:     out.TokenUsage,
	}
	if cfg.OnRun != nil {
		cfg.OnRun(run)
	}
	return run, nil
}

func average(runs []Run) time.Duration {
	if len(runs) == 0 {
		return 0
	}
	var total time.Duration
	for _, r := range runs {
		total += r.Elapsed
	}
	return total / time.Duration(len(runs))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
