package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func tracedContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	if err != nil {
		t.Fatalf("trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	if err != nil {
		t.Fatalf("span id: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestInjectTraceHeaders_AppendsToExistingHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte("evt-1")},
		{Key: "event_type", Value: []byte("prediction.risk.scored.v1")},
	}
	out := InjectTraceHeaders(tracedContext(t), headers)

	if HeaderValue(out, "traceparent") == "" {
		t.Fatalf("traceparent header missing after inject; headers=%v", out)
	}
	if HeaderValue(out, "event_id") != "evt-1" || HeaderValue(out, "event_type") == "" {
		t.Fatalf("existing headers lost: %v", out)
	}
}

func TestInjectTraceHeaders_OverwritesStaleValue(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	headers := []kafka.Header{{Key: "traceparent", Value: []byte("stale")}}
	out := InjectTraceHeaders(tracedContext(t), headers)

	if got := HeaderValue(out, "traceparent"); got == "stale" || got == "" {
		t.Fatalf("stale traceparent not replaced: %q", got)
	}
	count := 0
	for _, h := range out {
		if h.Key == "traceparent" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one traceparent header, got %d", count)
	}
}

func TestTraceContext_RoundTripsThroughMessage(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	ctx := tracedContext(t)
	msg := kafka.Message{Headers: InjectTraceHeaders(ctx, nil)}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	want := trace.SpanContextFromContext(ctx)
	if got.TraceID() != want.TraceID() {
		t.Fatalf("trace id lost in transit: got %s want %s", got.TraceID(), want.TraceID())
	}
}
