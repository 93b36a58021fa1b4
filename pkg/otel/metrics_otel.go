package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 基于 OpenTelemetry Meter 的指标实现
type OTelMetrics struct {
	meter      metric.Meter
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
	onError    func(error)
	mu         sync.Mutex
}

// NewOTelMetrics 创建 OTel 指标
func NewOTelMetrics(meter metric.Meter) *OTelMetrics {
	return &OTelMetrics{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
		onError:    func(error) {},
	}
}

// Counter 返回或创建计数器
func (m *OTelMetrics) Counter(name string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return otelCounter{c}
	}
	c, err := m.meter.Int64Counter(name, metric.WithDescription(describe(name)), metric.WithUnit(unitOf(name)))
	if err != nil {
		m.onError(fmt.Errorf("create counter %s: %w", name, err))
		return noopInstrument{}
	}
	m.counters[name] = c
	return otelCounter{c}
}

// Histogram 返回或创建直方图
func (m *OTelMetrics) Histogram(name string) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return otelHistogram{h}
	}
	h, err := m.meter.Float64Histogram(name, metric.WithDescription(describe(name)), metric.WithUnit(unitOf(name)))
	if err != nil {
		m.onError(fmt.Errorf("create histogram %s: %w", name, err))
		return noopInstrument{}
	}
	m.histograms[name] = h
	return otelHistogram{h}
}

// Gauge 返回或创建仪表
func (m *OTelMetrics) Gauge(name string) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[name]; ok {
		return otelGauge{g}
	}
	g, err := m.meter.Float64Gauge(name, metric.WithDescription(describe(name)), metric.WithUnit(unitOf(name)))
	if err != nil {
		m.onError(fmt.Errorf("create gauge %s: %w", name, err))
		return noopInstrument{}
	}
	m.gauges[name] = g
	return otelGauge{g}
}

func unitOf(name string) string {
	for _, d := range PredefinedMetrics {
		if d.Name == name {
			return string(d.Unit)
		}
	}
	return string(UnitNone)
}

// toAttributes 把 Attr 转换为 OTel 属性
func toAttributes(attrs []Attr) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			kvs = append(kvs, attribute.String(a.Key, v))
		case bool:
			kvs = append(kvs, attribute.Bool(a.Key, v))
		case int:
			kvs = append(kvs, attribute.Int(a.Key, v))
		case int64:
			kvs = append(kvs, attribute.Int64(a.Key, v))
		case float64:
			kvs = append(kvs, attribute.Float64(a.Key, v))
		default:
			kvs = append(kvs, attribute.String(a.Key, fmt.Sprint(v)))
		}
	}
	return kvs
}

type otelCounter struct{ c metric.Int64Counter }

func (c otelCounter) Add(ctx context.Context, value int64, attrs ...Attr) {
	c.c.Add(ctx, value, metric.WithAttributes(toAttributes(attrs)...))
}

type otelHistogram struct{ h metric.Float64Histogram }

func (h otelHistogram) Record(ctx context.Context, value float64, attrs ...Attr) {
	h.h.Record(ctx, value, metric.WithAttributes(toAttributes(attrs)...))
}

type otelGauge struct{ g metric.Float64Gauge }

func (g otelGauge) Set(ctx context.Context, value float64, attrs ...Attr) {
	g.g.Record(ctx, value, metric.WithAttributes(toAttributes(attrs)...))
}

var _ Metrics = (*OTelMetrics)(nil)
