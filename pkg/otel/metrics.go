package otel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Metrics 指标工厂，按名称返回同一个仪表
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// Counter 单调递增计数
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attr)
}

// Histogram 记录分布（耗时、分数等）
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attr)
}

// Gauge 记录最新值（命中率、成本节省等）
type Gauge interface {
	Set(ctx context.Context, value float64, attrs ...Attr)
}

// Attr 指标标签
type Attr struct {
	Key   string
	Value interface{}
}

// NewAttr 创建指标标签
func NewAttr(key string, value interface{}) Attr {
	return Attr{Key: key, Value: value}
}

// InMemoryMetrics 进程内指标，按标签组合分序列保存
//
// 用于测试和 metrics_exporter=memory。查询方法传入的标签是过滤条件：
// 只统计包含全部给定标签的序列，不传标签时统计所有序列。
type InMemoryMetrics struct {
	mu         sync.Mutex
	seq        uint64
	counters   map[string]map[string]*cell
	gauges     map[string]map[string]*cell
	histograms map[string][]observation
}

// cell 一个标签组合的累计值或最新值
type cell struct {
	labels map[string]string
	value  float64
	seq    uint64
}

type observation struct {
	labels map[string]string
	value  float64
}

// NewInMemoryMetrics 创建进程内指标
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]map[string]*cell),
		gauges:     make(map[string]map[string]*cell),
		histograms: make(map[string][]observation),
	}
}

// Counter 返回计数器
func (m *InMemoryMetrics) Counter(name string) Counter { return memCounter{m: m, name: name} }

// Histogram 返回直方图
func (m *InMemoryMetrics) Histogram(name string) Histogram { return memHistogram{m: m, name: name} }

// Gauge 返回仪表
func (m *InMemoryMetrics) Gauge(name string) Gauge { return memGauge{m: m, name: name} }

// CounterValue 返回匹配序列的计数之和
func (m *InMemoryMetrics) CounterValue(name string, filter ...Attr) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64
	for _, c := range m.counters[name] {
		if matches(c.labels, filter) {
			total += c.value
		}
	}
	return int64(total)
}

// GaugeValue 返回匹配序列中最近一次设置的值
func (m *InMemoryMetrics) GaugeValue(name string, filter ...Attr) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *cell
	for _, c := range m.gauges[name] {
		if matches(c.labels, filter) && (latest == nil || c.seq > latest.seq) {
			latest = c
		}
	}
	if latest == nil {
		return 0
	}
	return latest.value
}

// HistogramValues 按记录顺序返回匹配的观测值
func (m *InMemoryMetrics) HistogramValues(name string, filter ...Attr) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []float64
	for _, o := range m.histograms[name] {
		if matches(o.labels, filter) {
			out = append(out, o.value)
		}
	}
	return out
}

// GetCounterValue 返回计数器在所有序列上的总和
func (m *InMemoryMetrics) GetCounterValue(name string) int64 { return m.CounterValue(name) }

// GetGaugeValue 返回仪表最近一次设置的值
func (m *InMemoryMetrics) GetGaugeValue(name string) float64 { return m.GaugeValue(name) }

// GetHistogramValues 返回直方图的全部观测值
func (m *InMemoryMetrics) GetHistogramValues(name string) []float64 {
	return m.HistogramValues(name)
}

// Series 返回某个计数器或仪表的所有标签组合，格式为 k=v,k=v，已排序
func (m *InMemoryMetrics) Series(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.counters[name] {
		keys = append(keys, k)
	}
	for k := range m.gauges[name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *InMemoryMetrics) update(table map[string]map[string]*cell, name string, attrs []Attr, apply func(*cell)) {
	labels, key := labelSet(attrs)

	m.mu.Lock()
	defer m.mu.Unlock()

	series, ok := table[name]
	if !ok {
		series = make(map[string]*cell)
		table[name] = series
	}
	c, ok := series[key]
	if !ok {
		c = &cell{labels: labels}
		series[key] = c
	}
	m.seq++
	c.seq = m.seq
	apply(c)
}

type memCounter struct {
	m    *InMemoryMetrics
	name string
}

func (c memCounter) Add(_ context.Context, value int64, attrs ...Attr) {
	c.m.update(c.m.counters, c.name, attrs, func(x *cell) { x.value += float64(value) })
}

type memGauge struct {
	m    *InMemoryMetrics
	name string
}

func (g memGauge) Set(_ context.Context, value float64, attrs ...Attr) {
	g.m.update(g.m.gauges, g.name, attrs, func(x *cell) { x.value = value })
}

type memHistogram struct {
	m    *InMemoryMetrics
	name string
}

func (h memHistogram) Record(_ context.Context, value float64, attrs ...Attr) {
	labels, _ := labelSet(attrs)
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.histograms[h.name] = append(h.m.histograms[h.name], observation{labels: labels, value: value})
}

// labelSet 把标签转成 map 和稳定的序列键，同名标签后者覆盖前者
func labelSet(attrs []Attr) (map[string]string, string) {
	labels := make(map[string]string, len(attrs))
	for _, a := range attrs {
		labels[a.Key] = fmt.Sprint(a.Value)
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k + "=" + labels[k])
	}
	return labels, sb.String()
}

func matches(labels map[string]string, filter []Attr) bool {
	for _, f := range filter {
		if v, ok := labels[f.Key]; !ok || v != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// NoopMetrics 丢弃所有指标
type NoopMetrics struct{}

// NewNoopMetrics 创建空指标
func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (NoopMetrics) Counter(string) Counter     { return noopInstrument{} }
func (NoopMetrics) Histogram(string) Histogram { return noopInstrument{} }
func (NoopMetrics) Gauge(string) Gauge         { return noopInstrument{} }

type noopInstrument struct{}

func (noopInstrument) Add(context.Context, int64, ...Attr)      {}
func (noopInstrument) Record(context.Context, float64, ...Attr) {}
func (noopInstrument) Set(context.Context, float64, ...Attr)    {}

var (
	_ Metrics = (*InMemoryMetrics)(nil)
	_ Metrics = (*NoopMetrics)(nil)
)
