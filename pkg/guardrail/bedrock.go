package guardrail

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// DefaultVersion 未指定版本时使用的 Guardrail 版本
const DefaultVersion = "DRAFT"

// ApplyGuardrailAPI Bedrock Runtime 客户端中本包用到的方法
type ApplyGuardrailAPI interface {
	ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error)
}

// BedrockGuardrail 基于 ApplyGuardrail 的检查器
type BedrockGuardrail struct {
	api     ApplyGuardrailAPI
	id      string
	version string
	logger  otel.Logger
	metrics otel.Metrics
}

// Option BedrockGuardrail 配置选项
type Option func(*BedrockGuardrail)

// WithVersion 设置 Guardrail 版本
func WithVersion(version string) Option {
	return func(g *BedrockGuardrail) {
		if version != "" {
			g.version = version
		}
	}
}

// WithLogger 设置日志
func WithLogger(l otel.Logger) Option {
	return func(g *BedrockGuardrail) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m otel.Metrics) Option {
	return func(g *BedrockGuardrail) {
		if m != nil {
			g.metrics = m
		}
	}
}

// New 按配置创建 BedrockGuardrail
//
// cfg.Region 为空时使用 region，二者都为空时使用默认区域。
func New(ctx context.Context, cfg config.GuardrailConfig, region string, opts ...Option) (*BedrockGuardrail, error) {
	if cfg.ID == "" {
		return nil, errors.ErrGuardrailNotConfigured
	}
	if cfg.Region != "" {
		region = cfg.Region
	}
	if region == "" {
		region = config.DefaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", errors.ErrInvalidConfig, err)
	}

	opts = append([]Option{WithVersion(cfg.Version)}, opts...)
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg.ID, opts...), nil
}

// NewWithAPI 使用已有客户端创建 BedrockGuardrail
func NewWithAPI(api ApplyGuardrailAPI, id string, opts ...Option) *BedrockGuardrail {
	g := &BedrockGuardrail{
		api:     api,
		id:      id,
		version: DefaultVersion,
		logger:  otel.NewNoopLogger(),
		metrics: otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID 返回 Guardrail 标识
func (g *BedrockGuardrail) ID() string { return g.id }

// Version 返回 Guardrail 版本
func (g *BedrockGuardrail) Version() string { return g.version }

// Check 调用 ApplyGuardrail 检查文本
func (g *BedrockGuardrail) Check(ctx context.Context, text string, source Source) (Result, error) {
	if g.id == "" {
		return Result{}, errors.ErrGuardrailNotConfigured
	}

	start := time.Now()
	out, err := g.api.ApplyGuardrail(ctx, &bedrockruntime.ApplyGuardrailInput{
		GuardrailIdentifier: aws.String(g.id),
		GuardrailVersion:    aws.String(g.version),
		Source:              types.GuardrailContentSource(source),
		Content: []types.GuardrailContentBlock{
			&types.GuardrailContentBlockMemberText{
				Value: types.GuardrailTextBlock{Text: aws.String(text)},
			},
		},
	})

	attrs := []otel.Attr{otel.NewAttr("source", string(source))}
	g.metrics.Histogram(otel.MetricGuardrailDuration).Record(ctx, float64(time.Since(start).Milliseconds()), attrs...)
	if err != nil {
		g.logger.WithContext(ctx).Error("guardrail check failed", "guardrail_id", g.id, "source", source, "error", err)
		return Result{}, fmt.Errorf("%w: %v", errors.ErrGuardrailFailed, err)
	}

	result := convertOutput(out, text, source)
	g.metrics.Counter(otel.MetricGuardrailChecks).Add(ctx, 1, append(attrs, otel.NewAttr("action", result.Action))...)
	if result.Blocked {
		g.metrics.Counter(otel.MetricGuardrailBlocks).Add(ctx, 1, attrs...)
	}
	g.logger.WithContext(ctx).Debug("guardrail checked",
		"guardrail_id", g.id,
		"source", source,
		"action", result.Action,
		"chars", len(text),
	)
	return result, nil
}

// convertOutput 把 ApplyGuardrail 响应转换为 Result
func convertOutput(out *bedrockruntime.ApplyGuardrailOutput, text string, source Source) Result {
	result := Result{Action: ActionNone, FilteredText: text}
	if out == nil {
		return result
	}
	if out.Action != "" {
		result.Action = string(out.Action)
	}
	result.ActionReason = aws.ToString(out.ActionReason)
	result.Blocked = result.Action == ActionIntervened

	if source == SourceOutput && len(out.Outputs) > 0 {
		result.FilteredText = aws.ToString(out.Outputs[0].Text)
	}

	for _, a := range out.Assessments {
		result.Assessments = append(result.Assessments, convertAssessment(a))
	}
	if out.Usage != nil {
		result.Usage = Usage{
			ContentPolicyUnits:                  int(aws.ToInt32(out.Usage.ContentPolicyUnits)),
			SensitiveInformationPolicyUnits:     int(aws.ToInt32(out.Usage.SensitiveInformationPolicyUnits)),
			SensitiveInformationPolicyFreeUnits: int(aws.ToInt32(out.Usage.SensitiveInformationPolicyFreeUnits)),
			TopicPolicyUnits:                    int(aws.ToInt32(out.Usage.TopicPolicyUnits)),
			WordPolicyUnits:                     int(aws.ToInt32(out.Usage.WordPolicyUnits)),
			ContextualGroundingPolicyUnits:      int(aws.ToInt32(out.Usage.ContextualGroundingPolicyUnits)),
		}
	}
	return result
}

func convertAssessment(a types.GuardrailAssessment) Assessment {
	var out Assessment
	if p := a.ContentPolicy; p != nil {
		for _, f := range p.Filters {
			out.ContentFilters = append(out.ContentFilters, ContentFilter{
				Type:       string(f.Type),
				Confidence: string(f.Confidence),
				Action:     string(f.Action),
				Detected:   aws.ToBool(f.Detected),
			})
		}
	}
	if p := a.SensitiveInformationPolicy; p != nil {
		for _, e := range p.PiiEntities {
			out.PIIEntities = append(out.PIIEntities, PIIEntity{
				Type:   string(e.Type),
				Match:  aws.ToString(e.Match),
				Action: string(e.Action),
			})
		}
		for _, r := range p.Regexes {
			out.Regexes = append(out.Regexes, RegexMatch{
				Name:   aws.ToString(r.Name),
				Match:  aws.ToString(r.Match),
				Action: string(r.Action),
			})
		}
	}
	if p := a.TopicPolicy; p != nil {
		for _, t := range p.Topics {
			out.Topics = append(out.Topics, TopicMatch{
				Name:   aws.ToString(t.Name),
				Type:   string(t.Type),
				Action: string(t.Action),
			})
		}
	}
	if p := a.WordPolicy; p != nil {
		for _, w := range p.CustomWords {
			out.Words = append(out.Words, WordMatch{Match: aws.ToString(w.Match), Action: string(w.Action)})
		}
		for _, w := range p.ManagedWordLists {
			out.Words = append(out.Words, WordMatch{Match: aws.ToString(w.Match), Action: string(w.Action), Managed: true})
		}
	}
	return out
}

var _ Checker = (*BedrockGuardrail)(nil)
