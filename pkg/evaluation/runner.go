package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

// 评估会话约定
const (
	EvaluatorUserID = "evaluator"
	evalTag         = "evaluation"
)

// CheckCredentials 评分需要写回 Langfuse，未配置密钥时返回 ErrMissingTracingCredentials
func CheckCredentials(lf config.LangfuseConfig) error {
	if !lf.HasCredentials() {
		return errors.WrapError(errors.ErrMissingTracingCredentials,
			"set LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY")
	}
	return nil
}

// Runner 评估执行器
type Runner struct {
	agent       agents.Agent
	judge       *Judge
	client      *tracing.Client
	metricSet   []Metric
	concurrency int
	tracing     tracing.TracingConfig
	logger      otel.Logger
	metrics     otel.Metrics
}

// RunnerOption Runner 配置选项
type RunnerOption func(*Runner)

// WithMetricSet 设置评估指标，默认 StandardMetrics
func WithMetricSet(ms ...Metric) RunnerOption {
	return func(r *Runner) { r.metricSet = ms }
}

// WithConcurrency 设置并发评估的用例数
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTracingConfig 设置用例 Span 的基础元数据
func WithTracingConfig(cfg tracing.TracingConfig) RunnerOption {
	return func(r *Runner) { r.tracing = cfg }
}

// WithRunnerLogger 设置日志
func WithRunnerLogger(l otel.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRunnerMetrics 设置指标
func WithRunnerMetrics(m otel.Metrics) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewRunner 创建评估执行器
func NewRunner(agent agents.Agent, judge *Judge, client *tracing.Client, opts ...RunnerOption) *Runner {
	if client == nil {
		client = tracing.NewNoopClient()
	}
	r := &Runner{
		agent:       agent,
		judge:       judge,
		client:      client,
		metricSet:   StandardMetrics(),
		concurrency: 1,
		logger:      otel.NewNoopLogger(),
		metrics:     otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 评估数据集中的全部用例
//
// 单个用例或指标失败只记录在结果中；只有 ctx 取消会中止整次评估。
// 结束前 flush 追踪数据，确保评分关联的 Trace 已导出。
func (r *Runner) Run(ctx context.Context, ds *Dataset) (*Report, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Agent:     r.agent.Name(),
		Judge:     r.judge.Name(),
		StartedAt: time.Now().UTC(),
		Cases:     make([]CaseResult, len(ds.TestCases)),
	}
	logger := r.logger.WithContext(ctx)
	logger.Info("evaluation started", "run_id", report.RunID, "cases", len(ds.TestCases), "metrics", len(r.metricSet))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, tc := range ds.TestCases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Cases[i] = CaseResult{Index: i, Input: tc.Input, ExpectedOutput: tc.ExpectedOutput, Error: err.Error()}
				return err
			}
			report.Cases[i] = r.runCase(gctx, i, tc)
			return nil
		})
	}
	runErr := g.Wait()

	if err := r.client.Flush(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("flush traces failed", "error", err)
	}
	report.FinishedAt = time.Now().UTC()
	report.Summarize(r.metricSet)
	if runErr != nil {
		return report, runErr
	}
	logger.Info("evaluation finished", "run_id", report.RunID, "passed", report.Passed())
	return report, nil
}

// runCase 在用例 Span 内运行 Agent 并逐项打分
func (r *Runner) runCase(ctx context.Context, i int, tc TestCase) CaseResult {
	sessionID := fmt.Sprintf("eval-%d", i)
	res := CaseResult{Index: i, Input: tc.Input, ExpectedOutput: tc.ExpectedOutput}
	start := time.Now()

	cfg := r.tracing
	cfg.SessionID = sessionID
	cfg.UserID = EvaluatorUserID
	cfg.Tags = append(append([]string(nil), cfg.Tags...), evalTag)
	tracer := tracing.NewTracer(r.client, cfg)
	span := tracer.StartSpan(ctx, fmt.Sprintf("Evaluation Test Case %d", i+1), tc.Input,
		tracing.WithMetadata(map[string]any{
			"test_case_index": i,
			"expected_output": tc.ExpectedOutput,
		}),
	)
	defer span.End()

	logger := r.logger.WithContext(span.Context())
	r.metrics.Counter(otel.MetricEvalCases).Add(ctx, 1)

	out, err := r.agent.Run(span.Context(), agents.Input{
		Query:     tc.Input,
		UserID:    EvaluatorUserID,
		SessionID: sessionID,
	})
	res.TraceID = span.TraceID()
	if err != nil {
		span.SetError(err.Error())
		res.Error = err.Error()
		res.Duration = time.Since(start)
		logger.Error("test case failed", "index", i+1, "error", err)
		return res
	}
	res.ActualOutput = out.Response
	span.SetOutput(out.Response)

	sample := Sample{TestCase: tc, ActualOutput: out.Response}
	for _, m := range r.metricSet {
		mr, err := m.Measure(span.Context(), r.judge, sample)
		res.Metrics = append(res.Metrics, mr)
		attrs := []otel.Attr{otel.NewAttr("metric", mr.Name)}
		if err != nil {
			r.metrics.Counter(otel.MetricEvalFailures).Add(ctx, 1, attrs...)
			logger.Warn("metric not measured", "index", i+1, "metric", mr.Name, "error", err)
			continue
		}
		r.metrics.Histogram(otel.MetricEvalScore).Record(ctx, mr.Score, attrs...)
		if !mr.Success {
			r.metrics.Counter(otel.MetricEvalFailures).Add(ctx, 1, attrs...)
		}
		// 评分失败已由 Span 记录日志
		_ = span.Score(span.Context(), mr.Name, mr.Score, mr.Reason)
	}
	res.Duration = time.Since(start)
	logger.Debug("test case evaluated", "index", i+1, "metrics", len(res.Metrics))
	return res
}
