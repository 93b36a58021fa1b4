package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// DefaultReportPath 默认报告文件
const DefaultReportPath = "evaluation_report.json"

// CaseResult 单个用例的评估结果
type CaseResult struct {
	Index          int            `json:"index"`
	Input          string         `json:"input"`
	ExpectedOutput string         `json:"expected_output,omitempty"`
	ActualOutput   string         `json:"actual_output"`
	TraceID        string         `json:"trace_id,omitempty"`
	Metrics        []MetricResult `json:"metrics"`
	Error          string         `json:"error,omitempty"`
	Duration       time.Duration  `json:"duration"`
}

// Passed 用例执行成功且所有指标均通过
func (c CaseResult) Passed() bool {
	if c.Error != "" {
		return false
	}
	for _, m := range c.Metrics {
		if !m.Success {
			return false
		}
	}
	return true
}

// MetricSummary 单项指标在全部用例上的汇总
type MetricSummary struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
	Average   float64 `json:"average"`
	Passed    int     `json:"passed"`
	// Measured 成功打分的用例数，平均分只统计这些用例
	Measured int `json:"measured"`
	Errors   int `json:"errors"`
}

// Report 一次评估运行的报告
type Report struct {
	RunID      string          `json:"run_id"`
	Agent      string          `json:"agent"`
	Judge      string          `json:"judge"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Cases      []CaseResult    `json:"cases"`
	Summary    []MetricSummary `json:"summary"`
}

// Summarize 按指标顺序汇总各用例结果
func (r *Report) Summarize(metricSet []Metric) {
	byName := make(map[string]*MetricSummary, len(metricSet))
	order := make([]string, 0, len(metricSet))
	for _, m := range metricSet {
		byName[m.Name()] = &MetricSummary{Name: m.Name(), Threshold: m.Threshold()}
		order = append(order, m.Name())
	}
	for _, c := range r.Cases {
		for _, mr := range c.Metrics {
			s, ok := byName[mr.Name]
			if !ok {
				s = &MetricSummary{Name: mr.Name, Threshold: mr.Threshold}
				byName[mr.Name] = s
				order = append(order, mr.Name)
			}
			if mr.Error != "" {
				s.Errors++
				continue
			}
			s.Average += mr.Score
			s.Measured++
			if mr.Success {
				s.Passed++
			}
		}
	}

	r.Summary = make([]MetricSummary, 0, len(order))
	for _, name := range order {
		s := byName[name]
		if s.Measured > 0 {
			s.Average /= float64(s.Measured)
		}
		r.Summary = append(r.Summary, *s)
	}
}

// Passed 通过的用例数
func (r *Report) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Passed() {
			n++
		}
	}
	return n
}

// WriteFile 以缩进 JSON 写入报告文件
func (r *Report) WriteFile(path string) error {
	if path == "" {
		path = DefaultReportPath
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadReport 读取报告文件
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

// WriteSummary 输出文本摘要
func (r *Report) WriteSummary(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Evaluation %s\n", r.RunID)
	p.printf("Agent: %s\nJudge: %s\n", r.Agent, r.Judge)
	p.printf("Test cases: %d passed / %d total (%s)\n\n",
		r.Passed(), len(r.Cases), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	summary := append([]MetricSummary(nil), r.Summary...)
	sort.SliceStable(summary, func(i, j int) bool { return summary[i].Name < summary[j].Name })
	for _, s := range summary {
		p.printf("  %-28s avg %.2f  threshold %.2f  passed %d/%d", s.Name, s.Average, s.Threshold, s.Passed, s.Measured)
		if s.Errors > 0 {
			p.printf("  errors %d", s.Errors)
		}
		p.printf("\n")
	}

	for _, c := range r.Cases {
		if c.Error != "" {
			p.printf("\nTest case %d failed: %s\n", c.Index+1, c.Error)
		}
	}
	return p.err
}

// printer 记录第一个写入错误
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
