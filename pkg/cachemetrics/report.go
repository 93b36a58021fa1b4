package cachemetrics

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const ruleWidth = 70

// WriteReport 输出文本报告
func WriteReport(w io.Writer, r *Report) error {
	p := &printer{w: w}
	rule := strings.Repeat("=", ruleWidth)
	thin := strings.Repeat("-", ruleWidth)

	p.line(rule)
	p.line("Prompt caching metrics (from Bedrock invocation logs)")
	p.line(rule)
	p.printf("Window:    %s UTC\n", r.Start.Format("2006-01-02 15:04:05"))
	p.printf("        ~  %s UTC\n", r.End.Format("2006-01-02 15:04:05"))
	p.printf("Region:    %s\n", r.Region)
	p.printf("Log group: %s\n", r.LogGroup)
	p.printf("Model:     %s\n", r.ModelID)
	p.line("")

	if !r.HasData || r.Stats == nil {
		p.line("No requests in the selected window.")
		p.line("Run `bedrock-agent cache test` and retry after a few minutes.")
		p.line(rule)
		return p.err
	}

	t, s := r.Totals, r.Stats
	p.printf("Input tokens:       %s\n", number(t.InputTokens))
	p.printf("Cache read tokens:  %s\n", number(t.CacheReadTokens))
	p.printf("Cache write tokens: %s\n", number(t.CacheWriteTokens))
	p.printf("Requests:           %d\n", t.RequestCount)
	p.line(thin)
	p.printf("Total input tokens: %s\n", number(s.TotalInput))
	p.printf("Cache hit rate:     %.2f%%\n", s.HitRate)
	p.printf("Cost reduction:     ~%.1f%%\n", s.CostReduction)
	p.line("")
	p.line("Cost breakdown (input token equivalents)")
	p.line(thin)
	p.printf("New input:    %12s x 1.00 = %12s\n", number(t.InputTokens), number(t.InputTokens))
	p.printf("Cache write:  %12s x 1.25 = %12s\n", number(t.CacheWriteTokens), number(t.CacheWriteTokens*CacheWriteMultiplier))
	p.printf("Cache read:   %12s x 0.10 = %12s\n", number(t.CacheReadTokens), number(t.CacheReadTokens*CacheReadMultiplier))
	p.line(thin)
	p.printf("Effective cost: %12s\n", number(s.EffectiveCost))
	p.printf("Original cost:  %12s\n", number(s.TotalInput))
	p.printf("Saved:          %12s (%.1f%%)\n", number(s.Saved), s.SavedPercent)
	p.line("")
	p.line(verdictText(s.Verdict))
	p.line(rule)
	return p.err
}

// WriteJSON 输出 JSON 报告
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func verdictText(v Verdict) string {
	switch v {
	case VerdictEffective:
		return "Caching is effective: most input tokens are served from cache."
	case VerdictPartial:
		return "Caching is partially effective. Keep the system prompt above 1,024 tokens."
	default:
		return "No cache hits yet. The first request only writes the cache."
	}
}

// number 取整并加千分位
func number(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	p.printf("%s\n", s)
}
