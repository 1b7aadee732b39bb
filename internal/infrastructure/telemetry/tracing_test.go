package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		out[string(a.Key)] = a.Value.AsInterface()
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	recorder := setupRecorder(t)

	_, span := StartServiceSpan(context.Background(), "inbox_poller", "process",
		WithAttribute(SpanAttrBatch, 1),
	)
	SetAttributes(span, SpanAttrEventCount, 3, SpanAttrEventID, "42", 7, "skipped")
	AddEvent(span, "ack", SpanAttrEventID, "42")
	SetOK(span)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "inbox_poller.process", ended[0].Name())
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, int64(1), attrs[SpanAttrBatch])
	assert.Equal(t, int64(3), attrs[SpanAttrEventCount])
	assert.Equal(t, "42", attrs[SpanAttrEventID])
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestRecordError(t *testing.T) {
	recorder := setupRecorder(t)

	_, span := StartSpan(context.Background(), "order.fetch")
	RecordError(span, errors.New("HTTP 502"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "HTTP 502", ended[0].Status().Description)
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "k", "v")
		AddEvent(nil, "e")
		SetOK(nil)
		RecordError(nil, errors.New("x"))
	})
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}
