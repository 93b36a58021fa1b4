package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
)

// Param GEval 评估时使用的用例字段
type Param string

// Param 取值
const (
	ParamInput            Param = "INPUT"
	ParamActualOutput     Param = "ACTUAL_OUTPUT"
	ParamExpectedOutput   Param = "EXPECTED_OUTPUT"
	ParamContext          Param = "CONTEXT"
	ParamRetrievalContext Param = "RETRIEVAL_CONTEXT"
)

// Sample 一次待评估的问答
type Sample struct {
	TestCase
	ActualOutput string
}

// MetricResult 单项指标结果
type MetricResult struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Success   bool    `json:"success"`
	Reason    string  `json:"reason,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Metric 评估指标
type Metric interface {
	Name() string
	Threshold() float64
	Measure(ctx context.Context, judge *Judge, s Sample) (MetricResult, error)
}

// promptMetric 由评判提示词定义的指标
type promptMetric struct {
	name      string
	threshold float64
	// lowerIsBetter 为 true 时分数不高于阈值才算通过
	lowerIsBetter bool
	params        []Param
	instructions  string
}

func (m *promptMetric) Name() string       { return m.name }
func (m *promptMetric) Threshold() float64 { return m.threshold }

// Passed 按指标方向判断分数是否达标
func (m *promptMetric) Passed(score float64) bool {
	if m.lowerIsBetter {
		return score <= m.threshold
	}
	return score >= m.threshold
}

func (m *promptMetric) Measure(ctx context.Context, judge *Judge, s Sample) (MetricResult, error) {
	res := MetricResult{Name: m.name, Threshold: m.threshold}
	if missing := m.missing(s); len(missing) > 0 {
		err := errors.WrapError(errors.ErrMissingTestCaseParams, fmt.Sprintf("%s needs %v", m.name, missing))
		res.Error = err.Error()
		return res, err
	}
	v, err := judge.Evaluate(ctx, m.prompt(s))
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("metric %s: %w", m.name, err)
	}
	res.Score = v.Score
	res.Reason = v.Reason
	res.Success = m.Passed(v.Score)
	return res, nil
}

// missing 返回用例中为空的必需字段
func (m *promptMetric) missing(s Sample) []Param {
	var out []Param
	for _, p := range m.params {
		switch {
		case p == ParamExpectedOutput && s.ExpectedOutput == "",
			p == ParamContext && len(s.Context) == 0,
			p == ParamRetrievalContext && len(s.RetrievalContext) == 0:
			out = append(out, p)
		}
	}
	return out
}

func (m *promptMetric) prompt(s Sample) string {
	var b strings.Builder
	b.WriteString("You are an evaluator. ")
	b.WriteString(m.instructions)
	b.WriteString("\n\n")
	for _, p := range m.params {
		switch p {
		case ParamInput:
			fmt.Fprintf(&b, "Input:\n%s\n\n", s.Input)
		case ParamActualOutput:
			fmt.Fprintf(&b, "Actual output:\n%s\n\n", s.ActualOutput)
		case ParamExpectedOutput:
			fmt.Fprintf(&b, "Expected output:\n%s\n\n", s.ExpectedOutput)
		case ParamContext:
			fmt.Fprintf(&b, "Context:\n%s\n\n", bullets(s.Context))
		case ParamRetrievalContext:
			fmt.Fprintf(&b, "Retrieval context:\n%s\n\n", bullets(s.RetrievalContext))
		}
	}
	b.WriteString(`Respond with only a JSON object: {"score": <number between 0 and 1>, "reason": "<one or two sentences>"}`)
	return b.String()
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

// AnswerRelevancy 回答与问题的相关程度
func AnswerRelevancy(threshold float64) Metric {
	return &promptMetric{
		name:         "Answer Relevancy",
		threshold:    threshold,
		params:       []Param{ParamInput, ParamActualOutput},
		instructions: "Score how relevant the actual output is to the input. 1 means every statement addresses the input, 0 means none do.",
	}
}

// Faithfulness 回答与检索上下文的一致程度
func Faithfulness(threshold float64) Metric {
	return &promptMetric{
		name:         "Faithfulness",
		threshold:    threshold,
		params:       []Param{ParamActualOutput, ParamRetrievalContext},
		instructions: "Score how factually consistent the actual output is with the retrieval context. 1 means no claim contradicts the context.",
	}
}

// ContextualRelevancy 检索上下文与问题的相关程度
func ContextualRelevancy(threshold float64) Metric {
	return &promptMetric{
		name:         "Contextual Relevancy",
		threshold:    threshold,
		params:       []Param{ParamInput, ParamRetrievalContext},
		instructions: "Score how relevant the retrieval context is to the input. 1 means every statement in the context is useful for answering.",
	}
}

// Hallucination 回答与事实上下文矛盾的比例，分数越低越好
func Hallucination(threshold float64) Metric {
	return &promptMetric{
		name:          "Hallucination",
		threshold:     threshold,
		lowerIsBetter: true,
		params:        []Param{ParamActualOutput, ParamContext},
		instructions:  "Score the fraction of context statements that the actual output contradicts. 0 means no contradiction, 1 means every statement is contradicted.",
	}
}

// GEval 按自定义准则评估
func GEval(name, criteria string, threshold float64, params ...Param) Metric {
	if len(params) == 0 {
		params = []Param{ParamInput, ParamActualOutput}
	}
	return &promptMetric{
		name:         name,
		threshold:    threshold,
		params:       params,
		instructions: "Evaluate the response against these criteria: " + criteria,
	}
}

// StandardMetrics 通用指标及其默认阈值
func StandardMetrics() []Metric {
	return []Metric{
		AnswerRelevancy(0.7),
		Faithfulness(0.8),
		ContextualRelevancy(0.7),
		Hallucination(0.5),
	}
}

// CustomMetrics GEval 自定义指标
func CustomMetrics() []Metric {
	return []Metric{
		GEval("Tool Usage Correctness",
			"Determine whether the agent chose appropriate tools for the input, passed correct arguments, and reflected the tool results accurately in its answer.",
			0.8, ParamInput, ParamActualOutput, ParamContext),
		GEval("Response Quality",
			"Assess whether the response is accurate, complete, well organized and helpful for the user's request.",
			0.75, ParamInput, ParamActualOutput),
		GEval("Japanese Language Quality",
			"Assess the naturalness of the Japanese, correct use of keigo, and absence of grammatical errors or awkward phrasing.",
			0.8, ParamActualOutput),
	}
}
