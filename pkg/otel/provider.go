package otel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// 指标后端
const (
	MetricsBackendMemory     = "memory"
	MetricsBackendPrometheus = "prometheus"
)

// Provider 可观测性提供者
//
// 管理追踪、指标和日志的生命周期。
type Provider struct {
	config         Config
	tracer         Tracer
	tracerProvider trace.TracerProvider
	metrics        Metrics
	logger         Logger
	registry       *prometheus.Registry
	spanExporter   sdktrace.SpanExporter
	flush          []func(context.Context) error
	shutdown       []func(context.Context) error
	mu             sync.RWMutex
}

// ProviderOption 提供者配置选项
type ProviderOption func(*Provider)

// WithSpanExporter 使用指定的 Span 导出器（测试时注入 tracetest.InMemoryExporter）
func WithSpanExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(p *Provider) {
		p.spanExporter = exp
	}
}

// WithProviderLogger 设置日志器
func WithProviderLogger(logger Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithRegistry 设置 Prometheus 注册表
func WithRegistry(registry *prometheus.Registry) ProviderOption {
	return func(p *Provider) {
		p.registry = registry
	}
}

// NewProvider 创建可观测性提供者
func NewProvider(cfg Config, opts ...ProviderOption) (*Provider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{config: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = NewSlogLogger(slog.Default())
	}

	if !cfg.Enabled {
		p.tracer = NewNoopTracer()
		p.tracerProvider = noop.NewTracerProvider()
		p.metrics = NewNoopMetrics()
		return p, nil
	}

	res := p.resource()

	// 初始化追踪
	if cfg.Tracing.Enabled {
		if err := p.initTracing(res); err != nil {
			return nil, err
		}
	} else {
		p.tracer = NewNoopTracer()
		p.tracerProvider = noop.NewTracerProvider()
	}

	// 初始化指标
	if cfg.Metrics.Enabled {
		if err := p.initMetrics(res); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, err
		}
	} else {
		p.metrics = NewNoopMetrics()
	}

	return p, nil
}

// resource 构建服务资源描述
func (p *Provider) resource() *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", p.config.ServiceName),
		attribute.String("service.version", p.config.ServiceVersion),
		attribute.String("deployment.environment", p.config.Environment),
	)
}

// initTracing 初始化追踪
func (p *Provider) initTracing(res *resource.Resource) error {
	exp := p.spanExporter
	if exp == nil {
		var err error
		exp, err = NewTraceExporter(context.Background(), p.traceExporterConfig())
		if err != nil {
			return err
		}
	}

	var sampler sdktrace.Sampler
	switch rate := p.config.Tracing.SampleRate; {
	case rate >= 1:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	switch {
	case p.spanExporter != nil:
		// 注入的导出器同步导出，测试可立即读取
		opts = append(opts, sdktrace.WithSyncer(exp))
	case exp != nil:
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithExportTimeout(p.config.Tracing.Timeout)))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	// 设置全局 TracerProvider
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.flush = append(p.flush, tp.ForceFlush)
	p.shutdown = append(p.shutdown, tp.Shutdown)

	p.tracerProvider = tp
	p.tracer = NewTracer(tp.Tracer(p.config.ServiceName))

	return nil
}

// traceExporterConfig 根据追踪配置生成导出器配置
func (p *Provider) traceExporterConfig() ExporterConfig {
	tc := p.config.Tracing
	if tc.Exporter == ExporterLangfuse {
		return LangfuseExporterConfig(tc.Langfuse, tc.Timeout)
	}
	return ExporterConfig{
		Type:     tc.Exporter,
		Endpoint: tc.Endpoint,
		Insecure: tc.Insecure,
		Timeout:  tc.Timeout,
	}
}

// initMetrics 初始化指标
func (p *Provider) initMetrics(res *resource.Resource) error {
	mc := p.config.Metrics
	switch mc.Backend {
	case MetricsBackendMemory:
		p.metrics = NewInMemoryMetrics()
	case MetricsBackendPrometheus:
		prom := NewPrometheusMetrics(p.registry, mc.Namespace)
		p.registry = prom.Registry()
		p.metrics = prom
	case string(ExporterNone):
		p.metrics = NewNoopMetrics()
	default:
		exp, err := NewMetricExporter(context.Background(), ExporterConfig{
			Type:     ExporterType(mc.Backend),
			Endpoint: mc.Endpoint,
			Insecure: mc.Insecure,
		})
		if err != nil {
			return err
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(mc.Interval))),
		)
		otel.SetMeterProvider(mp)
		p.flush = append(p.flush, mp.ForceFlush)
		p.shutdown = append(p.shutdown, mp.Shutdown)
		m := NewOTelMetrics(mp.Meter(p.config.ServiceName))
		m.onError = func(err error) { p.logger.Warn("metric instrument unavailable", "error", err) }
		p.metrics = m
	}
	return nil
}

// Tracer 返回追踪器
func (p *Provider) Tracer() Tracer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracer
}

// TracerProvider 返回底层的 OpenTelemetry TracerProvider
func (p *Provider) TracerProvider() trace.TracerProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracerProvider
}

// Metrics 返回指标收集器
func (p *Provider) Metrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

// Registry 返回 Prometheus 注册表，未使用 Prometheus 后端时为 nil
func (p *Provider) Registry() *prometheus.Registry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry
}

// Logger 返回日志器
func (p *Provider) Logger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Config 返回生效的配置
func (p *Provider) Config() Config {
	return p.config
}

// ForceFlush 立即导出缓冲中的追踪和指标
func (p *Provider) ForceFlush(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var errs []error
	for _, fn := range p.flush {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown 优雅关闭
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.flush = nil
	p.shutdown = nil
	return errors.Join(errs...)
}
