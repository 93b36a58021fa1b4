package cachemetrics

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// LogsAPI CloudWatch Logs 客户端中本包用到的方法
type LogsAPI interface {
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
}

// BuildQuery 生成 Logs Insights 查询
//
// modelId 同时匹配模型 ID 与推理配置文件 ARN。
func BuildQuery(modelID string) string {
	pattern := strings.ReplaceAll(modelID, "/", `\/`)
	return "fields @timestamp, input.inputTokenCount, input.cacheReadInputTokenCount, input.cacheWriteInputTokenCount\n" +
		"| filter modelId like /" + pattern + "/\n" +
		"| stats sum(input.inputTokenCount) as totalInput,\n" +
		"    sum(input.cacheReadInputTokenCount) as totalCacheRead,\n" +
		"    sum(input.cacheWriteInputTokenCount) as totalCacheWrite,\n" +
		"    count(*) as requestCount"
}

// Report 一次查询的结果
type Report struct {
	ModelID  string    `json:"model_id"`
	Region   string    `json:"region"`
	LogGroup string    `json:"log_group"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	// HasData 统计窗口内是否有请求
	HasData bool   `json:"has_data"`
	Totals  Totals `json:"totals"`
	Stats   *Stats `json:"stats,omitempty"`
}

// Collector 查询调用日志并计算缓存统计
type Collector struct {
	api          LogsAPI
	logGroup     string
	region       string
	pollInterval time.Duration
	maxWait      time.Duration
	now          func() time.Time
	logger       otel.Logger
	metrics      otel.Metrics
}

// CollectorOption Collector 配置选项
type CollectorOption func(*Collector)

// WithLogger 设置日志
func WithLogger(l otel.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics 设置指标，每次查询后更新缓存仪表
func WithMetrics(m otel.Metrics) CollectorOption {
	return func(c *Collector) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock 设置时间来源
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// NewCollector 按配置创建 Collector
func NewCollector(ctx context.Context, cfg config.CacheMetricsConfig, opts ...CollectorOption) (*Collector, error) {
	region := cfg.Region
	if region == "" {
		region = config.DefaultCacheMetricsRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", errors.ErrInvalidConfig, err)
	}
	cfg.Region = region
	return NewCollectorWithAPI(cloudwatchlogs.NewFromConfig(awsCfg), cfg, opts...), nil
}

// NewCollectorWithAPI 使用已有客户端创建 Collector
func NewCollectorWithAPI(api LogsAPI, cfg config.CacheMetricsConfig, opts ...CollectorOption) *Collector {
	c := &Collector{
		api:          api,
		logGroup:     cfg.LogGroup,
		region:       cfg.Region,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		now:          time.Now,
		logger:       otel.NewNoopLogger(),
		metrics:      otel.NewNoopMetrics(),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}
	if c.maxWait <= 0 {
		c.maxWait = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch 查询最近 hours 小时的调用日志
//
// 日志组不存在时返回 ErrLogGroupNotFound；查询失败、取消或服务端超时返回
// ErrQueryFailed；在 maxWait 内未完成返回 ErrQueryTimeout。
func (c *Collector) Fetch(ctx context.Context, modelID string, hours int) (*Report, error) {
	if hours <= 0 {
		return nil, config.ErrInvalidHours
	}
	end := c.now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	report := &Report{
		ModelID:  modelID,
		Region:   c.region,
		LogGroup: c.logGroup,
		Start:    start,
		End:      end,
	}

	logger := c.logger.WithContext(ctx)
	started, err := c.api.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(c.logGroup),
		StartTime:    aws.Int64(start.Unix()),
		EndTime:      aws.Int64(end.Unix()),
		QueryString:  aws.String(BuildQuery(modelID)),
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	queryID := aws.ToString(started.QueryId)
	logger.Debug("log query started", "query_id", queryID, "log_group", c.logGroup)

	rows, err := c.wait(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		logger.Info("no invocations in window", "model", modelID, "hours", hours)
		return report, nil
	}

	report.Totals = parseTotals(rows[0])
	if stats, ok := ComputeStats(report.Totals); ok {
		report.HasData = true
		report.Stats = &stats
		stats.Record(ctx, c.metrics, modelID, report.Totals.RequestCount)
	}
	return report, nil
}

// wait 轮询查询结果直到完成
func (c *Collector) wait(ctx context.Context, queryID string) ([][]types.ResultField, error) {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	var waited time.Duration
	for waited < c.maxWait {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		waited += c.pollInterval

		out, err := c.api.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{QueryId: aws.String(queryID)})
		if err != nil {
			return nil, c.mapError(err)
		}
		switch out.Status {
		case types.QueryStatusComplete:
			return out.Results, nil
		case types.QueryStatusFailed, types.QueryStatusCancelled, types.QueryStatusTimeout:
			return nil, fmt.Errorf("%w: status %s", errors.ErrQueryFailed, out.Status)
		}
		timer.Reset(c.pollInterval)
	}
	return nil, fmt.Errorf("%w after %s", errors.ErrQueryTimeout, c.maxWait)
}

func (c *Collector) mapError(err error) error {
	var notFound *types.ResourceNotFoundException
	if stderrors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", errors.ErrLogGroupNotFound, c.logGroup)
	}
	return fmt.Errorf("%w: %v", errors.ErrQueryFailed, err)
}

// parseTotals 解析 stats 行，空值按 0 处理
func parseTotals(row []types.ResultField) Totals {
	values := make(map[string]float64, len(row))
	for _, f := range row {
		v, err := strconv.ParseFloat(aws.ToString(f.Value), 64)
		if err != nil {
			continue
		}
		values[aws.ToString(f.Field)] = v
	}
	return Totals{
		InputTokens:      values["totalInput"],
		CacheReadTokens:  values["totalCacheRead"],
		CacheWriteTokens: values["totalCacheWrite"],
		RequestCount:     int(values["requestCount"]),
	}
}
