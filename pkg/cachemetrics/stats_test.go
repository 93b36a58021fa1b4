package cachemetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestComputeStats(t *testing.T) {
	s, ok := ComputeStats(Totals{InputTokens: 1000, CacheReadTokens: 8000, CacheWriteTokens: 1000})
	require.True(t, ok)

	assert.InDelta(t, 10000, s.TotalInput, 1e-9)
	assert.InDelta(t, 80, s.HitRate, 1e-9)
	assert.InDelta(t, 72, s.CostReduction, 1e-9)
	// 1000 + 1000*1.25 + 8000*0.10
	assert.InDelta(t, 3050, s.EffectiveCost, 1e-9)
	assert.InDelta(t, 6950, s.Saved, 1e-9)
	assert.InDelta(t, 69.5, s.SavedPercent, 1e-9)
	assert.Equal(t, VerdictEffective, s.Verdict)
}

func TestComputeStats_Verdicts(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   Verdict
	}{
		{"exactly half is partial", Totals{InputTokens: 50, CacheReadTokens: 50}, VerdictPartial},
		{"some reads", Totals{InputTokens: 90, CacheReadTokens: 10}, VerdictPartial},
		{"writes only", Totals{InputTokens: 100, CacheWriteTokens: 2000}, VerdictNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := ComputeStats(tt.totals)
			require.True(t, ok)
			assert.Equal(t, tt.want, s.Verdict)
		})
	}
}

func TestComputeStats_NoData(t *testing.T) {
	s, ok := ComputeStats(Totals{})
	assert.False(t, ok)
	assert.Equal(t, VerdictNone, s.Verdict)
}

func TestStats_Record(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	s, _ := ComputeStats(Totals{InputTokens: 100, CacheReadTokens: 300})

	s.Record(context.Background(), metrics, "model", 4)

	assert.InDelta(t, 75, metrics.GetGaugeValue(otel.MetricCacheHitRate), 1e-9)
	assert.InDelta(t, 67.5, metrics.GetGaugeValue(otel.MetricCacheCostReduction), 1e-9)
	assert.InDelta(t, 4, metrics.GetGaugeValue(otel.MetricCacheInvocations), 1e-9)
}

func TestWriteReport(t *testing.T) {
	totals := Totals{InputTokens: 1000, CacheReadTokens: 8000, CacheWriteTokens: 1000, RequestCount: 5}
	stats, _ := ComputeStats(totals)
	r := &Report{
		ModelID:  "global.anthropic.claude-haiku-4-5-20251001-v1:0",
		Region:   "us-west-2",
		LogGroup: "bedrock-logs",
		Start:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		HasData:  true,
		Totals:   totals,
		Stats:    &stats,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "2025-01-01 09:00:00 UTC")
	assert.Contains(t, out, "Cache read tokens:  8,000")
	assert.Contains(t, out, "Requests:           5")
	assert.Contains(t, out, "Total input tokens: 10,000")
	assert.Contains(t, out, "Cache hit rate:     80.00%")
	assert.Contains(t, out, "Cost reduction:     ~72.0%")
	assert.Contains(t, out, "(69.5%)")
	assert.Contains(t, out, "Caching is effective")
}

func TestWriteReport_NoData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, &Report{ModelID: "m"}))
	assert.Contains(t, buf.String(), "No requests in the selected window.")
}

func TestWriteJSON(t *testing.T) {
	stats, _ := ComputeStats(Totals{InputTokens: 10, CacheReadTokens: 30})
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &Report{ModelID: "m", HasData: true, Stats: &stats}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "m", decoded["model_id"])
	assert.Equal(t, true, decoded["has_data"])
	assert.Equal(t, "effective", decoded["stats"].(map[string]any)["verdict"])
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "0", number(0))
	assert.Equal(t, "999", number(999))
	assert.Equal(t, "1,000", number(1000))
	assert.Equal(t, "1,234,568", number(1234567.6))
	assert.Equal(t, "-12,500", number(-12500))
}

func TestLongSystemPrompt_IsCacheable(t *testing.T) {
	assert.GreaterOrEqual(t, llm.EstimatedCounter{}.Count(LongSystemPrompt), llm.MinCacheableTokens)
	assert.Less(t, llm.EstimatedCounter{}.Count(ShortSystemPrompt), llm.MinCacheableTokens)
}
