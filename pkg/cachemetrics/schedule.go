package cachemetrics

import (
	"context"
	"fmt"
	"io"

	"github.com/robfig/cron/v3"

	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// Scheduler 按 cron 表达式定期输出缓存报告
type Scheduler struct {
	collector *Collector
	spec      string
	modelID   string
	hours     int
	out       io.Writer
	asJSON    bool
	logger    otel.Logger
}

// NewScheduler 创建定时报告
//
// spec 为标准 5 段 cron 表达式，例如 "0 * * * *" 每小时一次。
func NewScheduler(collector *Collector, spec, modelID string, hours int, out io.Writer, asJSON bool) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return &Scheduler{
		collector: collector,
		spec:      spec,
		modelID:   modelID,
		hours:     hours,
		out:       out,
		asJSON:    asJSON,
		logger:    collector.logger,
	}, nil
}

// Run 阻塞运行直到 ctx 取消，退出前等待正在执行的报告完成
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule report: %w", err)
	}
	c.Start()
	s.logger.Info("cache metrics scheduler started", "schedule", s.spec, "model", s.modelID)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("cache metrics scheduler stopped")
	return nil
}

// RunOnce 查询并输出一次报告，错误只记录日志
func (s *Scheduler) RunOnce(ctx context.Context) {
	report, err := s.collector.Fetch(ctx, s.modelID, s.hours)
	if err != nil {
		s.logger.Error("scheduled cache report failed", "error", err)
		return
	}
	if s.asJSON {
		err = WriteJSON(s.out, report)
	} else {
		err = WriteReport(s.out, report)
	}
	if err != nil {
		s.logger.Error("write cache report", "error", err)
	}
}
