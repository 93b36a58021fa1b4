package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// 评判模型默认值
const (
	DefaultJudgeModel         = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultJudgeFallbackModel = "gpt-4"
	judgeMaxTokens            = 4096
)

// Verdict 评判模型给出的分数与理由
type Verdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Judge 评判模型封装
//
// 温度固定为 0，回复要求为 {"score": <0..1>, "reason": "..."}。
type Judge struct {
	provider llm.Provider
	modelID  string
	limiter  *rate.Limiter
}

// JudgeOption Judge 配置选项
type JudgeOption func(*Judge)

// WithRateLimit 限制每秒调用次数，rps <= 0 表示不限制
func WithRateLimit(rps float64) JudgeOption {
	return func(j *Judge) {
		if rps > 0 {
			j.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewJudge 按配置创建 Judge
//
// 主模型走 Bedrock；fallbackAPIKey 非空时追加 OpenAI 备用模型。
func NewJudge(ctx context.Context, cfg config.EvaluationConfig, region, fallbackAPIKey string, opts ...JudgeOption) (*Judge, error) {
	model := cfg.JudgeModel
	if model == "" {
		model = DefaultJudgeModel
	}
	fallback := cfg.JudgeFallbackModel
	if fallback == "" {
		fallback = DefaultJudgeFallbackModel
	}

	provider, err := llm.FromConfig(ctx, llm.JudgeConfig(model, region, fallback, fallbackAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create judge: %w", err)
	}
	opts = append([]JudgeOption{WithRateLimit(cfg.JudgeRPS)}, opts...)
	return NewJudgeWithProvider(provider, model, opts...), nil
}

// NewJudgeWithProvider 使用已有 Provider 创建 Judge
func NewJudgeWithProvider(provider llm.Provider, modelID string, opts ...JudgeOption) *Judge {
	j := &Judge{provider: provider, modelID: modelID}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name 评判模型名称
func (j *Judge) Name() string {
	return "AWS Bedrock " + j.modelID
}

// Generate 发送提示词并返回回复文本
func (j *Judge) Generate(ctx context.Context, prompt string) (string, error) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	temp := 0.0
	maxTokens := judgeMaxTokens
	resp, err := j.provider.Generate(ctx, llm.Request{
		Messages:    []message.Message{message.NewUserMessage(prompt)},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Evaluate 发送评判提示词并解析分数
func (j *Judge) Evaluate(ctx context.Context, prompt string) (Verdict, error) {
	reply, err := j.Generate(ctx, prompt)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply)
}

// ParseVerdict 从回复中提取第一个 JSON 对象
//
// 分数必须在 [0, 1] 内，否则返回 ErrJudgeResponse。
func ParseVerdict(reply string) (Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON object in %q", errors.ErrJudgeResponse, truncate(reply, 80))
	}

	var raw struct {
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", errors.ErrJudgeResponse, err)
	}
	if raw.Score == nil {
		return Verdict{}, fmt.Errorf("%w: missing score", errors.ErrJudgeResponse)
	}
	if *raw.Score < 0 || *raw.Score > 1 {
		return Verdict{}, fmt.Errorf("%w: score %v out of range", errors.ErrJudgeResponse, *raw.Score)
	}
	return Verdict{Score: *raw.Score, Reason: strings.TrimSpace(raw.Reason)}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
