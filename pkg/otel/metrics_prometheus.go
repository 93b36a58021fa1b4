package otel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics 基于 Prometheus 客户端的指标实现
//
// 指标名中的点号转换为下划线并加上命名空间前缀。
// 标签集合在首次使用时确定，之后缺失的标签填空字符串，多余的标签被忽略。
type PrometheusMetrics struct {
	registry   *prometheus.Registry
	namespace  string
	counters   map[string]*promCounter
	histograms map[string]*promHistogram
	gauges     map[string]*promGauge
	mu         sync.Mutex
}

// NewPrometheusMetrics 创建 Prometheus 指标，registry 为 nil 时新建
func NewPrometheusMetrics(registry *prometheus.Registry, namespace string) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &PrometheusMetrics{
		registry:   registry,
		namespace:  namespace,
		counters:   make(map[string]*promCounter),
		histograms: make(map[string]*promHistogram),
		gauges:     make(map[string]*promGauge),
	}
}

// Registry 返回底层注册表（供 promhttp 暴露）
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Counter 返回或创建计数器
func (m *PrometheusMetrics) Counter(name string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &promCounter{owner: m, name: name}
	m.counters[name] = c
	return c
}

// Histogram 返回或创建直方图
func (m *PrometheusMetrics) Histogram(name string) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h
	}
	h := &promHistogram{owner: m, name: name}
	m.histograms[name] = h
	return h
}

// Gauge 返回或创建仪表
func (m *PrometheusMetrics) Gauge(name string) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[name]; ok {
		return g
	}
	g := &promGauge{owner: m, name: name}
	m.gauges[name] = g
	return g
}

// PromName 把点分指标名转换为 Prometheus 名称
func PromName(namespace, name string) string {
	name = strings.NewReplacer(".", "_", "-", "_").Replace(name)
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}

func describe(name string) string {
	for _, d := range PredefinedMetrics {
		if d.Name == name {
			return d.Description
		}
	}
	return name
}

// promLabels 固定的标签名和按顺序取值
type promLabels []string

func newPromLabels(attrs []Attr) promLabels {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Key)
	}
	sort.Strings(names)
	return names
}

func (l promLabels) values(attrs []Attr) []string {
	byKey := make(map[string]string, len(attrs))
	for _, a := range attrs {
		byKey[a.Key] = fmt.Sprint(a.Value)
	}
	vals := make([]string, len(l))
	for i, k := range l {
		vals[i] = byKey[k]
	}
	return vals
}

type promCounter struct {
	owner  *PrometheusMetrics
	name   string
	once   sync.Once
	labels promLabels
	vec    *prometheus.CounterVec
}

func (c *promCounter) Add(ctx context.Context, value int64, attrs ...Attr) {
	c.once.Do(func() {
		c.labels = newPromLabels(attrs)
		c.vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: PromName(c.owner.namespace, c.name) + "_total",
			Help: describe(c.name),
		}, c.labels)
		c.owner.registry.MustRegister(c.vec)
	})
	if value < 0 {
		return
	}
	c.vec.WithLabelValues(c.labels.values(attrs)...).Add(float64(value))
}

type promHistogram struct {
	owner  *PrometheusMetrics
	name   string
	once   sync.Once
	labels promLabels
	vec    *prometheus.HistogramVec
}

func (h *promHistogram) Record(ctx context.Context, value float64, attrs ...Attr) {
	h.once.Do(func() {
		h.labels = newPromLabels(attrs)
		h.vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    PromName(h.owner.namespace, h.name),
			Help:    describe(h.name),
			Buckets: prometheus.ExponentialBuckets(5, 2, 14),
		}, h.labels)
		h.owner.registry.MustRegister(h.vec)
	})
	h.vec.WithLabelValues(h.labels.values(attrs)...).Observe(value)
}

type promGauge struct {
	owner  *PrometheusMetrics
	name   string
	once   sync.Once
	labels promLabels
	vec    *prometheus.GaugeVec
}

func (g *promGauge) Set(ctx context.Context, value float64, attrs ...Attr) {
	g.once.Do(func() {
		g.labels = newPromLabels(attrs)
		g.vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: PromName(g.owner.namespace, g.name),
			Help: describe(g.name),
		}, g.labels)
		g.owner.registry.MustRegister(g.vec)
	})
	g.vec.WithLabelValues(g.labels.values(attrs)...).Set(value)
}

var _ Metrics = (*PrometheusMetrics)(nil)
