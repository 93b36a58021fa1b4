// Package guardrail 封装 Bedrock Guardrails 内容安全检查
//
// BedrockGuardrail 调用 ApplyGuardrail 检查单段文本，GuardedAgent 在流式对话中
// 先检查用户输入，再按字符间隔分段检查模型输出，被拦截时立即停止。
package guardrail

import (
	"context"
	"fmt"
	"strings"
)

// Source 被检查内容的来源
type Source string

const (
	// SourceInput 用户输入
	SourceInput Source = "INPUT"
	// SourceOutput 模型输出
	SourceOutput Source = "OUTPUT"
)

// ParseSource 解析来源，大小写不敏感
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToUpper(strings.TrimSpace(s))) {
	case SourceInput:
		return SourceInput, nil
	case SourceOutput:
		return SourceOutput, nil
	default:
		return "", fmt.Errorf("invalid guardrail source %q (want INPUT or OUTPUT)", s)
	}
}

// Guardrail 动作
const (
	ActionNone       = "NONE"
	ActionIntervened = "GUARDRAIL_INTERVENED"
)

// Checker 内容检查器
type Checker interface {
	// Check 检查一段文本
	Check(ctx context.Context, text string, source Source) (Result, error)
}

// CheckerFunc 函数形式的 Checker
type CheckerFunc func(ctx context.Context, text string, source Source) (Result, error)

// Check 实现 Checker
func (f CheckerFunc) Check(ctx context.Context, text string, source Source) (Result, error) {
	return f(ctx, text, source)
}

// Result 一次检查的结果
type Result struct {
	// Action 服务返回的动作，缺省为 NONE
	Action string `json:"action"`
	// ActionReason 动作原因（如有）
	ActionReason string `json:"action_reason,omitempty"`
	// FilteredText 仅 OUTPUT 且服务返回了输出时为改写后的文本，否则为原文
	FilteredText string `json:"filtered_text"`
	// Assessments 各策略的评估明细
	Assessments []Assessment `json:"assessments,omitempty"`
	// Blocked 是否被拦截
	Blocked bool `json:"blocked"`
	// Usage 计费单元
	Usage Usage `json:"usage"`
}

// Details 汇总所有评估中命中的条目
func (r Result) Details() []string {
	var out []string
	for _, a := range r.Assessments {
		out = append(out, a.Details()...)
	}
	return out
}

// Assessment 单个评估
type Assessment struct {
	ContentFilters []ContentFilter `json:"content_filters,omitempty"`
	PIIEntities    []PIIEntity     `json:"pii_entities,omitempty"`
	Regexes        []RegexMatch    `json:"regexes,omitempty"`
	Topics         []TopicMatch    `json:"topics,omitempty"`
	Words          []WordMatch     `json:"words,omitempty"`
}

// ContentFilter 内容过滤器结果
type ContentFilter struct {
	Type       string `json:"type"`
	Confidence string `json:"confidence"`
	Action     string `json:"action"`
	Detected   bool   `json:"detected"`
}

// PIIEntity 识别到的敏感实体
type PIIEntity struct {
	Type   string `json:"type"`
	Match  string `json:"match"`
	Action string `json:"action"`
}

// RegexMatch 自定义正则命中
type RegexMatch struct {
	Name   string `json:"name"`
	Match  string `json:"match"`
	Action string `json:"action"`
}

// TopicMatch 禁止话题命中
type TopicMatch struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Action string `json:"action"`
}

// WordMatch 词语命中
type WordMatch struct {
	Match   string `json:"match"`
	Action  string `json:"action"`
	Managed bool   `json:"managed,omitempty"`
}

// Details 每个命中条目一行
func (a Assessment) Details() []string {
	var out []string
	for _, f := range a.ContentFilters {
		out = append(out, fmt.Sprintf("Content filter: %s (confidence: %s, detected: %t)", f.Type, f.Confidence, f.Detected))
	}
	for _, e := range a.PIIEntities {
		out = append(out, fmt.Sprintf("PII: %s = %q (action: %s)", e.Type, e.Match, e.Action))
	}
	for _, r := range a.Regexes {
		out = append(out, fmt.Sprintf("Regex: %s = %q (action: %s)", r.Name, r.Match, r.Action))
	}
	for _, t := range a.Topics {
		out = append(out, fmt.Sprintf("Topic: %s (action: %s)", t.Name, t.Action))
	}
	for _, w := range a.Words {
		kind := "custom"
		if w.Managed {
			kind = "managed"
		}
		out = append(out, fmt.Sprintf("Word (%s): %q (action: %s)", kind, w.Match, w.Action))
	}
	return out
}

// Usage Guardrail 计费单元
type Usage struct {
	ContentPolicyUnits                  int `json:"content_policy_units"`
	SensitiveInformationPolicyUnits     int `json:"sensitive_information_policy_units"`
	SensitiveInformationPolicyFreeUnits int `json:"sensitive_information_policy_free_units,omitempty"`
	TopicPolicyUnits                    int `json:"topic_policy_units,omitempty"`
	WordPolicyUnits                     int `json:"word_policy_units,omitempty"`
	ContextualGroundingPolicyUnits      int `json:"contextual_grounding_policy_units,omitempty"`
}
