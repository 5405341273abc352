package swarmtrace

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTracerVariants(t *testing.T) {
	tests := []struct {
		name   string
		config TraceConfig
	}{
		{"with endpoint", TraceConfig{ServiceName: "test-swarm", Endpoint: "localhost:4317", EnableInsecure: true}},
		{"without endpoint (no-op)", TraceConfig{ServiceName: "test-swarm"}},
		{"with sampling", TraceConfig{ServiceName: "test-swarm", SamplingRate: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, shutdown := NewTracer(tt.config)
			defer func() { _ = shutdown(context.Background()) }()

			if tracer == nil {
				t.Fatal("NewTracer() returned nil")
			}
			if tracer.tracer == nil {
				t.Error("tracer.tracer is nil")
			}
		})
	}
}

func TestTracerStart(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	ctx := context.Background()
	_, span := tracer.Start(ctx, "test-operation")
	defer span.End()

	if span == nil {
		t.Fatal("Start() returned nil span")
	}
}

func TestStartSpan(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	span := tracer.StartSpan(context.Background(), "test-operation")
	defer span.End()

	if span == nil {
		t.Fatal("StartSpan() returned nil")
	}
}

func TestTracerRecordError(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "test-operation")
	tracer.RecordError(span, errors.New("boom"))
	span.End()

	// Nil error must be a no-op.
	_, span2 := tracer.Start(context.Background(), "test-operation")
	defer span2.End()
	tracer.RecordError(span2, nil)
}

func TestSetAttributes(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	tracer.SetAttributes(span,
		"swarm.id", "sw-1",
		"task.attempt", 2,
		"task.depth", int64(3),
		"confidence", 0.9,
		"blocked", false,
	)

	// Odd arg count and non-string key must be tolerated, not panic.
	tracer.SetAttributes(span, "key1", "value1", "key2")
	tracer.SetAttributes(span, 123, "value")
}

func TestAddEvent(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	tracer.AddEvent(span, "task-dispatched", "task.id", "t1", "attempt", 1)
}

func TestTracePhase(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.TracePhase(context.Background(), "sw-1", "dispatch")
	defer span.End()

	if span == nil {
		t.Fatal("TracePhase() returned nil span")
	}
}

func TestTraceSubagentSpawn(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.TraceSubagentSpawn(context.Background(), "sub-1", "worker", 1)
	defer span.End()

	if span == nil {
		t.Fatal("TraceSubagentSpawn() returned nil span")
	}
}

func TestTraceDispatchTask(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.TraceDispatchTask(context.Background(), "t1", 1)
	defer span.End()

	if span == nil {
		t.Fatal("TraceDispatchTask() returned nil span")
	}
}

func TestTraceCriticReview(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.TraceCriticReview(context.Background(), "sw-1", 1)
	defer span.End()

	if span == nil {
		t.Fatal("TraceCriticReview() returned nil span")
	}
}

func TestInjectExtractContext(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	carrier := make(MapCarrier)
	tracer.InjectContext(ctx, carrier)

	newCtx := tracer.ExtractContext(context.Background(), carrier)
	if newCtx == nil {
		t.Error("ExtractContext returned nil")
	}
}

func TestSpanFromContextAndContextWithSpan(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	if SpanFromContext(ctx) == nil {
		t.Error("SpanFromContext returned nil")
	}
	if SpanFromContext(context.Background()) == nil {
		t.Error("SpanFromContext should return a non-nil no-op span")
	}

	newCtx := ContextWithSpan(context.Background(), span)
	if SpanFromContext(newCtx) == nil {
		t.Error("expected span in new context")
	}
}

func TestWithSpan(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	ctx := context.Background()

	err := WithSpan(ctx, tracer, "test-operation", func(ctx context.Context, span trace.Span) error {
		if span == nil {
			t.Error("expected non-nil span in callback")
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithSpan returned error: %v", err)
	}

	testErr := errors.New("test error")
	err = WithSpan(ctx, tracer, "test-operation", func(context.Context, trace.Span) error { return testErr })
	if err != testErr {
		t.Errorf("expected error to propagate, got %v", err)
	}
}

func TestGetTraceIDAndSpanID(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	_ = GetTraceID(ctx)
	_ = GetSpanID(ctx)

	if GetTraceID(context.Background()) != "" {
		t.Error("expected empty trace ID for context without span")
	}
	if GetSpanID(context.Background()) != "" {
		t.Error("expected empty span ID for context without span")
	}
}

func TestMapCarrier(t *testing.T) {
	carrier := make(MapCarrier)
	carrier.Set("key1", "value1")
	carrier.Set("key2", "value2")

	if carrier.Get("key1") != "value1" {
		t.Error("MapCarrier.Get failed")
	}
	if carrier.Get("nonexistent") != "" {
		t.Error("MapCarrier.Get should return empty string for missing key")
	}
	if len(carrier.Keys()) != 2 {
		t.Errorf("expected 2 keys, got %d", len(carrier.Keys()))
	}
}

func TestAttributeFromValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"string", "str_key", "v"},
		{"int", "int_key", 42},
		{"int64", "int64_key", int64(123)},
		{"float64", "float_key", 3.14},
		{"bool", "bool_key", true},
		{"string slice", "str_slice_key", []string{"a", "b"}},
		{"other", "other_key", struct{ Field string }{"value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := attributeFromValue(tt.key, tt.value)
			if attr.Key != attribute.Key(tt.key) {
				t.Errorf("expected key %s, got %s", tt.key, attr.Key)
			}
		})
	}
}

func TestNestedSpans(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})
	defer func() { _ = shutdown(context.Background()) }()

	ctx := context.Background()
	parentCtx, parentSpan := tracer.TracePhase(ctx, "sw-1", "dispatch")
	defer parentSpan.End()

	childCtx, childSpan := tracer.TraceDispatchTask(parentCtx, "t1", 1)
	defer childSpan.End()

	if childCtx == nil || parentCtx == nil {
		t.Error("expected valid parent and child contexts")
	}
}

func TestTracerShutdown(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-swarm"})

	_, span := tracer.Start(context.Background(), "test-operation")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown returned error: %v", err)
	}
}
