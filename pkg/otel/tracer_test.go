package otel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

func TestNoopTracer(t *testing.T) {
	tracer := otel.NewNoopTracer()
	ctx := context.Background()

	newCtx, span := tracer.Start(ctx, "noop", otel.WithSpanKind(otel.SpanKindClient))
	assert.Equal(t, ctx, newCtx)
	assert.NotPanics(t, func() {
		span.SetStatus(otel.StatusError, "x")
		span.RecordError(errors.New("x"))
		span.End()
	})
	assert.Equal(t, otel.SpanContext{}, tracer.SpanFromContext(ctx).SpanContext())
}

func TestOTelTracer_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := otel.NewTracer(tp.Tracer("test"))
	ctx, span := tracer.Start(context.Background(), "parent",
		otel.WithSpanKind(otel.SpanKindServer),
		otel.WithAttributes(otel.AgentName("chat")),
	)
	_, child := tracer.Start(ctx, "child")
	child.Fail(errors.New("boom"))
	child.End()
	span.SetStatus(otel.StatusOK, "")
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	sc := tracer.SpanFromContext(ctx).SpanContext()
	assert.Equal(t, spans[1].SpanContext.TraceID().String(), sc.TraceID)
}

func TestLoggerWithContext(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger := otel.NewSlogLogger(nil)
	assert.NotSame(t, logger, logger.WithContext(ctx))
	assert.Same(t, logger, logger.WithContext(context.Background()))

	zl := otel.NewZapLogger(nil)
	assert.NotSame(t, zl, zl.WithContext(ctx))
	assert.NotNil(t, otel.SpanFromContext(ctx))
	assert.Nil(t, otel.SpanFromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", otel.ParseLevel("DEBUG").String())
	assert.Equal(t, "warn", otel.ParseLevel("warning").String())
	assert.Equal(t, "error", otel.ParseLevel("error").String())
	assert.Equal(t, "info", otel.ParseLevel("whatever").String())
}

func TestNewZap(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := otel.NewZap(otel.LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(otel.ParseLevel("debug")))
	}
}
