// Package cachemetrics 统计 Bedrock prompt caching 的效果
//
// Collector 通过 CloudWatch Logs Insights 汇总模型调用日志中的输入、缓存读取与
// 缓存写入 Token，Stats 计算命中率与成本削减，WriteReport 输出报告。
// experiment.go 中的实验用于产生可供统计的调用。
package cachemetrics

import (
	"context"

	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// 相对普通输入 Token 的计费倍率
const (
	CacheWriteMultiplier = 1.25
	CacheReadMultiplier  = 0.10
	// cacheReadDiscount 缓存读取相对普通输入节省的比例
	cacheReadDiscount = 0.9
)

// Verdict 缓存效果判断
type Verdict string

const (
	// VerdictEffective 命中率超过 50%
	VerdictEffective Verdict = "effective"
	// VerdictPartial 有命中但不超过 50%
	VerdictPartial Verdict = "partial"
	// VerdictNone 没有命中
	VerdictNone Verdict = "none"
)

// Totals 日志查询得到的汇总值
type Totals struct {
	InputTokens      float64 `json:"input_tokens"`
	CacheReadTokens  float64 `json:"cache_read_tokens"`
	CacheWriteTokens float64 `json:"cache_write_tokens"`
	RequestCount     int     `json:"request_count"`
}

// Stats 由 Totals 计算的统计值
type Stats struct {
	// TotalInput 新规输入、缓存读取与缓存写入之和
	TotalInput float64 `json:"total_input"`
	// HitRate 缓存命中率（%）
	HitRate float64 `json:"hit_rate"`
	// CostReduction 输入成本削减率（%）
	CostReduction float64 `json:"cost_reduction"`
	// EffectiveCost 折算为普通输入 Token 的实际成本
	EffectiveCost float64 `json:"effective_cost"`
	// Saved 节省的 Token 当量
	Saved float64 `json:"saved"`
	// SavedPercent 节省占原始成本的比例（%）
	SavedPercent float64 `json:"saved_percent"`
	Verdict      Verdict `json:"verdict"`
}

// ComputeStats 计算统计值，总输入为 0 时返回 false
func ComputeStats(t Totals) (Stats, bool) {
	total := t.InputTokens + t.CacheReadTokens + t.CacheWriteTokens
	if total <= 0 {
		return Stats{Verdict: VerdictNone}, false
	}

	effective := t.InputTokens + t.CacheWriteTokens*CacheWriteMultiplier + t.CacheReadTokens*CacheReadMultiplier
	s := Stats{
		TotalInput:    total,
		HitRate:       t.CacheReadTokens / total * 100,
		CostReduction: t.CacheReadTokens * cacheReadDiscount / total * 100,
		EffectiveCost: effective,
		Saved:         total - effective,
	}
	s.SavedPercent = s.Saved / total * 100

	switch {
	case s.HitRate > 50:
		s.Verdict = VerdictEffective
	case s.HitRate > 0:
		s.Verdict = VerdictPartial
	default:
		s.Verdict = VerdictNone
	}
	return s, true
}

// Record 把统计值写入仪表
func (s Stats) Record(ctx context.Context, metrics otel.Metrics, modelID string, requests int) {
	attr := otel.NewAttr("model", modelID)
	metrics.Gauge(otel.MetricCacheHitRate).Set(ctx, s.HitRate, attr)
	metrics.Gauge(otel.MetricCacheCostReduction).Set(ctx, s.CostReduction, attr)
	metrics.Gauge(otel.MetricCacheInvocations).Set(ctx, float64(requests), attr)
}
