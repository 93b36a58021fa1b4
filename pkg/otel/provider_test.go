package otel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := otel.NewProvider(otel.DefaultConfig())
	require.NoError(t, err)

	assert.IsType(t, &otel.NoopTracer{}, p.Tracer())
	assert.IsType(t, &otel.NoopMetrics{}, p.Metrics())
	assert.Nil(t, p.Registry())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := otel.DefaultConfig()
	cfg.Enabled = true
	cfg.Tracing.Enabled = true
	_, err := otel.NewProvider(cfg)
	assert.ErrorIs(t, err, otel.ErrMissingCredentials)
}

func enabledConfig() otel.Config {
	cfg := otel.DefaultConfig()
	cfg.Enabled = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Langfuse.PublicKey = "pk"
	cfg.Tracing.Langfuse.SecretKey = "sk"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Backend = otel.MetricsBackendPrometheus
	return cfg
}

func TestNewProvider_NoExporterKeepsTraceIDs(t *testing.T) {
	cfg := otel.DefaultConfig()
	cfg.Enabled = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = otel.ExporterNone
	p, err := otel.NewProvider(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.Tracer().Start(context.Background(), "work")
	span.End()
	assert.Len(t, span.SpanContext().TraceID, 32)
}

func TestNewProvider_WithInjectedExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := otel.NewProvider(enabledConfig(), otel.WithSpanExporter(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.Tracer().Start(context.Background(), "work")
	span.End()
	require.NoError(t, p.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "work", spans[0].Name)
	assert.NotNil(t, p.Registry())
	assert.IsType(t, &otel.PrometheusMetrics{}, p.Metrics())
}

type stubProvider struct {
	resp   llm.Response
	err    error
	chunks []llm.StreamChunk
}

func (s *stubProvider) Generate(context.Context, llm.Request) (llm.Response, error) {
	return s.resp, s.err
}

func (s *stubProvider) GenerateStream(ctx context.Context, _ llm.Request) (<-chan llm.StreamChunk, <-chan error) {
	ch := make(chan llm.StreamChunk, len(s.chunks))
	errCh := make(chan error, 1)
	for _, c := range s.chunks {
		ch <- c
	}
	if s.err != nil {
		errCh <- s.err
	}
	close(ch)
	close(errCh)
	return ch, errCh
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }
func (s *stubProvider) Close() error  { return nil }

func TestTracedProvider_Generate(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := otel.NewProvider(enabledConfig(), otel.WithSpanExporter(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	metrics := otel.NewInMemoryMetrics()
	traced := otel.NewTracedProvider(&stubProvider{resp: llm.Response{
		ID:         "req-1",
		Content:    "hi",
		TokenUsage: message.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CacheReadTokens: 8},
	}}, otel.WithTracedProviderTracer(p.Tracer()), otel.WithTracedProviderMetrics(metrics))

	resp, err := traced.Generate(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)

	assert.Equal(t, int64(1), metrics.GetCounterValue(otel.MetricLLMRequests))
	assert.Equal(t, int64(10), metrics.GetCounterValue(otel.MetricLLMTokensPrompt))
	assert.Equal(t, int64(8), metrics.GetCounterValue(otel.MetricLLMTokensCacheRead))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.generate", spans[0].Name)
}

func TestTracedProvider_GenerateError(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	traced := otel.NewTracedProvider(&stubProvider{err: errors.New("boom")}, otel.WithTracedProviderMetrics(metrics))

	_, err := traced.Generate(context.Background(), llm.Request{})
	require.Error(t, err)
	assert.Equal(t, int64(1), metrics.GetCounterValue(otel.MetricLLMErrors))
}

func TestTracedProvider_GenerateStream(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	traced := otel.NewTracedProvider(&stubProvider{chunks: []llm.StreamChunk{
		{Content: "he"},
		{Content: "llo"},
		{Done: true, TokenUsage: &message.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}},
	}}, otel.WithTracedProviderMetrics(metrics))

	chunks, errs := traced.GenerateStream(context.Background(), llm.Request{})
	var text string
	for c := range chunks {
		text += c.Content
	}
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, "hello", text)
	assert.Equal(t, int64(5), metrics.GetCounterValue(otel.MetricLLMTokensTotal))
	assert.Equal(t, "stub", traced.Name())
	assert.Equal(t, "stub-model", traced.Model())
}
